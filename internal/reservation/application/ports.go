package application

import (
	"context"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type Filter struct {
	UserID string
	Status domain.Status
}

type ReservationRepository interface {
	// Create inserts r and the outbox rows for evs in one transaction.
	// A duplicate id fails with apperr.ErrConflict.
	Create(ctx context.Context, r domain.Reservation, evs ...events.Event) error
	Get(ctx context.Context, id string) (domain.Reservation, error)
	// Transition stores r only if the row is still in status from, writing
	// evs in the same transaction. A moved row fails with apperr.ErrConflict.
	Transition(ctx context.Context, r domain.Reservation, from domain.Status, evs ...events.Event) error
	List(ctx context.Context, f Filter) ([]domain.Reservation, error)
	CountActive(ctx context.Context, userID string) (int, error)
	// ActiveRank is the 1-based position of id among the user's active
	// reservations ordered by (reserve_date, id), or 0 when id is not active.
	ActiveRank(ctx context.Context, userID, id string) (int, error)
}

type Availability struct {
	StallID   string
	Available bool
	Status    string
	Message   string
}

type StallClient interface {
	CheckAvailability(ctx context.Context, stallID string) (Availability, error)
	// ReleaseFor frees stallID only while it is still linked to reservationID.
	ReleaseFor(ctx context.Context, stallID, reservationID string) error
}
