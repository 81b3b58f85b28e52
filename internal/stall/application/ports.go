package application

import (
	"context"
	"time"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type Filter struct {
	Status     domain.Status
	Size       domain.Size
	ReservedBy string
	MinPrice   *float64
	MaxPrice   *float64
}

type StallRepository interface {
	// Create fails with apperr.ErrConflict when the name is taken.
	Create(ctx context.Context, s domain.Stall) error
	Get(ctx context.Context, id string) (domain.Stall, error)
	List(ctx context.Context, f Filter) ([]domain.Stall, error)
	CountReserved(ctx context.Context, userID string) (int, error)
	// Reserve moves the stall from AVAILABLE to RESERVED setting both link
	// fields, and writes evs in the same transaction. A stall that is not
	// AVAILABLE fails with apperr.ErrNotAvailable.
	Reserve(ctx context.Context, id, userID, reservationID string, at time.Time, evs ...events.Event) (domain.Stall, error)
	// Release moves the stall from RESERVED to AVAILABLE clearing both link
	// fields, only while it is linked to reservationID. Otherwise it fails
	// with apperr.ErrNotReserved.
	Release(ctx context.Context, id, reservationID string, at time.Time, evs ...events.Event) (domain.Stall, error)
	// SetStatus changes status from one non-reserved state to another.
	// A stall not in from fails with apperr.ErrInvalidTransition.
	SetStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) (domain.Stall, error)
}

// Tombstones remember cancelled reservations so a late creation event does
// not reserve a stall for them.
type Tombstones interface {
	MarkCancelled(ctx context.Context, reservationID string) error
	IsCancelled(ctx context.Context, reservationID string) (bool, error)
}
