package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type recorder struct{ keys []string }

func (r *recorder) Handle(_ context.Context, ev events.Event) error {
	r.keys = append(r.keys, ev.IdempotencyKey())
	return nil
}

func TestHandlerForwardsDecodedEvents(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), rec)

	payload, err := events.Encode(events.ReservationCancelled{Reservation: events.Reservation{
		ReservationID: "r-1", UserID: "u-1", StallID: "s-1", Status: "CANCELLED", Amount: 10, ReserveDate: time.Now(),
	}})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), kafka.Message{Value: payload}))
	assert.Equal(t, []string{"r-1:RESERVATION_CANCELLED"}, rec.keys)

	err = h.Handle(context.Background(), kafka.Message{Value: []byte(`{}`)})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
