package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type EventNotifier interface {
	Handle(ctx context.Context, ev events.Event) error
}

type Handler struct {
	log      *slog.Logger
	notifier EventNotifier
}

func NewHandler(log *slog.Logger, notifier EventNotifier) *Handler {
	return &Handler{log: log, notifier: notifier}
}

func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}
	h.log.Debug("notification event received", "kind", ev.Kind(), "key", ev.IdempotencyKey(), "offset", msg.Offset)
	return h.notifier.Handle(ctx, ev)
}
