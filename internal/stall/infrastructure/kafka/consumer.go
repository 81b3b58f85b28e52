package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type ReservationEventHandler interface {
	HandleReservationEvent(ctx context.Context, ev events.Event) error
}

// Handler feeds reservation.* messages into the allocator.
type Handler struct {
	log *slog.Logger
	svc ReservationEventHandler
}

func NewHandler(log *slog.Logger, svc ReservationEventHandler) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}
	h.log.Debug("reservation event received", "kind", ev.Kind(), "key", ev.IdempotencyKey(), "partition", msg.Partition, "offset", msg.Offset)
	return h.svc.HandleReservationEvent(ctx, ev)
}
