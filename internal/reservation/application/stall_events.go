package application

import (
	"context"
	"errors"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

// HandleStallEvent reacts to the stall service's outcome. A stall reserved
// for a reservation that is already cancelled, or that names another stall,
// is released again.
func (s *Service) HandleStallEvent(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.StallReserved:
		return s.onStallReserved(ctx, e)
	case events.StallReleased:
		s.log.Debug("stall released", "stall_id", e.StallID, "reservation_id", e.ReservationID)
		return nil
	default:
		s.log.Debug("ignoring event", "kind", ev.Kind())
		return nil
	}
}

func (s *Service) onStallReserved(ctx context.Context, e events.StallReserved) error {
	r, err := s.repo.Get(ctx, e.ReservationID)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Warn("stall reserved for unknown reservation", "stall_id", e.StallID, "reservation_id", e.ReservationID)
		return nil
	}
	if err != nil {
		return err
	}
	if r.Status != domain.StatusCancelled && r.StallID == e.StallID {
		s.log.Info("stall reservation acknowledged", "reservation_id", r.ID, "stall_id", e.StallID)
		return nil
	}

	if s.stalls == nil {
		s.log.Error("cannot compensate without stall client", "reservation_id", r.ID, "stall_id", e.StallID)
		return nil
	}
	err = s.stalls.ReleaseFor(ctx, e.StallID, e.ReservationID)
	switch {
	case err == nil:
		s.log.Info("released stall held by cancelled reservation", "reservation_id", r.ID, "stall_id", e.StallID)
		return nil
	case errors.Is(err, apperr.ErrNotReserved), errors.Is(err, apperr.ErrNotFound):
		return nil
	default:
		return err
	}
}
