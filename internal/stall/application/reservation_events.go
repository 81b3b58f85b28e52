package application

import (
	"context"
	"errors"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

// HandleReservationEvent applies a reservation event to the stall it names.
// Business rejections are logged and swallowed so the message is acked;
// only transient failures are returned for redelivery.
func (a *Allocator) HandleReservationEvent(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.ReservationCreated:
		return a.onCreated(ctx, e)
	case events.ReservationCancelled:
		return a.onCancelled(ctx, e)
	default:
		return nil
	}
}

func (a *Allocator) onCreated(ctx context.Context, e events.ReservationCreated) error {
	cancelled, err := a.tombs.IsCancelled(ctx, e.ReservationID)
	if err != nil {
		return apperr.Transient(err)
	}
	if cancelled {
		a.log.Info("skipping reserve for cancelled reservation", "reservation_id", e.ReservationID, "stall_id", e.StallID)
		return nil
	}

	_, err = a.Reserve(ctx, e.StallID, e.UserID, e.ReservationID)
	if err == nil || apperr.IsRetryable(err) {
		return err
	}
	a.log.Warn("reserve rejected", "reservation_id", e.ReservationID, "stall_id", e.StallID, "kind", apperr.KindOf(err), "err", err)
	return nil
}

func (a *Allocator) onCancelled(ctx context.Context, e events.ReservationCancelled) error {
	if err := a.tombs.MarkCancelled(ctx, e.ReservationID); err != nil {
		return apperr.Transient(err)
	}

	_, err := a.ReleaseFor(ctx, e.StallID, e.ReservationID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrNotReserved), errors.Is(err, apperr.ErrNotFound):
		a.log.Info("nothing to release", "reservation_id", e.ReservationID, "stall_id", e.StallID)
		return nil
	case apperr.IsRetryable(err):
		return err
	default:
		a.log.Warn("release rejected", "reservation_id", e.ReservationID, "stall_id", e.StallID, "err", err)
		return nil
	}
}
