package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/domain"
	pg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/postgres"
)

type ReceiptRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewReceiptRepository(log *slog.Logger, pool *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{log: log, pool: pool}
}

// Save records r once; a second receipt for the same key is ignored.
func (r *ReceiptRepository) Save(ctx context.Context, rc domain.Receipt) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO notification_receipts
			(idempotency_key, reservation_id, event, recipient, subject, attachment, qr_seed, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, rc.Key, rc.ReservationID, rc.Event, rc.Recipient, rc.Subject, rc.Attachment, rc.QRSeed, rc.Outcome, rc.SentAt)
	if err != nil {
		return fmt.Errorf("save receipt %s: %w", rc.Key, pg.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		r.log.Debug("receipt already recorded", "key", rc.Key)
	}
	return nil
}

func (r *ReceiptRepository) Get(ctx context.Context, key string) (domain.Receipt, error) {
	rc, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM notification_receipts WHERE idempotency_key = $1`, key))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("receipt %s: %w", key, pg.MapError(err))
	}
	return rc, nil
}

func (r *ReceiptRepository) ListByReservation(ctx context.Context, reservationID string) ([]domain.Receipt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+` FROM notification_receipts
		WHERE reservation_id = $1 ORDER BY sent_at`, reservationID)
	if err != nil {
		return nil, pg.MapError(err)
	}
	defer rows.Close()

	var out []domain.Receipt
	for rows.Next() {
		rc, err := scan(rows)
		if err != nil {
			return nil, pg.MapError(err)
		}
		out = append(out, rc)
	}
	return out, pg.MapError(rows.Err())
}

const columns = `idempotency_key, reservation_id, event, recipient, subject, attachment, qr_seed, status, sent_at`

func scan(row pgx.Row) (domain.Receipt, error) {
	var rc domain.Receipt
	err := row.Scan(&rc.Key, &rc.ReservationID, &rc.Event, &rc.Recipient, &rc.Subject, &rc.Attachment, &rc.QRSeed, &rc.Outcome, &rc.SentAt)
	return rc, err
}
