package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type StallEventHandler interface {
	HandleStallEvent(ctx context.Context, ev events.Event) error
}

// Handler adapts the reservation service to messaging.Handler for the
// stall.* topics.
type Handler struct {
	log *slog.Logger
	svc StallEventHandler
}

func NewHandler(log *slog.Logger, svc StallEventHandler) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}
	h.log.Debug("stall event received", "kind", ev.Kind(), "key", ev.IdempotencyKey(), "offset", msg.Offset)
	return h.svc.HandleStallEvent(ctx, ev)
}
