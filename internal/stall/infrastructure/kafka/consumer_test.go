package kafka

import (
	"context"
	"errors"
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

type recorder struct {
	got []events.Event
	err error
}

func (r *recorder) HandleReservationEvent(_ context.Context, ev events.Event) error {
	r.got = append(r.got, ev)
	return r.err
}

func created() events.ReservationCreated {
	return events.ReservationCreated{Reservation: events.Reservation{
		ReservationID: "r-1", UserID: "u-1", StallID: "s-1", Status: "PENDING",
		Amount: 500, ReserveDate: time.Now(),
	}}
}

func TestHandlerDecodesReservationEvents(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), rec)

	payload, err := events.Encode(created())
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), kafka.Message{Topic: events.RoutingReservationCreated, Value: payload}))

	require.Len(t, rec.got, 1)
	assert.Equal(t, "r-1:RESERVATION_CREATED", rec.got[0].IdempotencyKey())
}

func TestHandlerPropagatesTransientErrors(t *testing.T) {
	rec := &recorder{err: apperr.Transient(errors.New("db down"))}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), rec)

	payload, err := events.Encode(created())
	require.NoError(t, err)
	err = h.Handle(context.Background(), kafka.Message{Value: payload})
	assert.True(t, apperr.IsRetryable(err))

	err = h.Handle(context.Background(), kafka.Message{Value: []byte("garbage")})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
