package application

import (
	"context"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/domain"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments []domain.Attachment) error
}

type QRRenderer interface {
	Render(text string) ([]byte, error)
}

// DeliveryStore tracks which idempotency keys have been handled. Claim takes
// a short exclusive lease so two workers never send the same notification at
// once; MarkDelivered is permanent and releases the claim.
type DeliveryStore interface {
	Delivered(ctx context.Context, key string) (bool, error)
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	MarkDelivered(ctx context.Context, key string, outcome domain.Outcome) error
}

// ReceiptRepository is the durable record of handled notifications. Get
// returns an error wrapping apperr.ErrNotFound when key has no receipt.
type ReceiptRepository interface {
	Save(ctx context.Context, r domain.Receipt) error
	Get(ctx context.Context, key string) (domain.Receipt, error)
}
