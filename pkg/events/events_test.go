package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

var reservedAt = time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC)

func sampleReservation() Reservation {
	return Reservation{
		ReservationID: "r-1",
		UserID:        "u-1",
		Email:         "vendor@example.com",
		StallID:       "s-1",
		Status:        "PENDING",
		Amount:        500,
		ReserveDate:   reservedAt,
		QRSeed:        QRSeed("r-1", "s-1", "u-1"),
	}
}

func TestRoutingKeys(t *testing.T) {
	assert.Equal(t, "reservation.created", ReservationCreatedKind.RoutingKey())
	assert.Equal(t, "reservation.confirmed", ReservationConfirmedKind.RoutingKey())
	assert.Equal(t, "reservation.cancelled", ReservationCancelledKind.RoutingKey())
	assert.Equal(t, "stall.reserved", StallReservedKind.RoutingKey())
	assert.Equal(t, "stall.released", StallReleasedKind.RoutingKey())
	assert.False(t, Kind("RESERVATION_EXPIRED").Valid())
}

func TestEnvelopeWireShape(t *testing.T) {
	data, err := Encode(ReservationCreated{sampleReservation()})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "RESERVATION_CREATED", raw["event"])
	assert.Equal(t, "r-1", raw["reservationId"])
	assert.Equal(t, "vendor@example.com", raw["email"])
	assert.Equal(t, float64(500), raw["amount"])
	assert.Equal(t, "2025-09-01T10:30:00Z", raw["reserveDate"])
	assert.Contains(t, raw, "reserveConfirmDate")
	assert.Nil(t, raw["reserveConfirmDate"])
	assert.Equal(t, "CIBF|reservation=r-1|stall=s-1|user=u-1", raw["qrSeed"])
}

func TestDecodeReservationEvents(t *testing.T) {
	confirmedAt := reservedAt.Add(time.Hour)
	r := sampleReservation()
	r.Status = "CONFIRMED"
	r.ReserveConfirmDate = &confirmedAt

	data, err := Encode(ReservationConfirmed{r})
	require.NoError(t, err)

	ev, err := Decode(data)
	require.NoError(t, err)

	confirmed, ok := ev.(ReservationConfirmed)
	require.True(t, ok, "expected ReservationConfirmed, got %T", ev)
	assert.Equal(t, "r-1:RESERVATION_CONFIRMED", confirmed.IdempotencyKey())
	assert.Equal(t, "vendor@example.com", confirmed.Email)
	require.NotNil(t, confirmed.ReserveConfirmDate)
	assert.True(t, confirmed.ReserveConfirmDate.Equal(confirmedAt))
	assert.True(t, confirmed.ReserveDate.Equal(reservedAt))
}

func TestDecodeStallEvents(t *testing.T) {
	data, err := Encode(StallReserved{StallID: "s-1", UserID: "u-1", ReservationID: "r-1", Price: 1200, ReservedAt: reservedAt})
	require.NoError(t, err)

	ev, err := Decode(data)
	require.NoError(t, err)
	reserved, ok := ev.(StallReserved)
	require.True(t, ok)
	assert.Equal(t, float64(1200), reserved.Price)
	assert.Equal(t, "s-1/r-1:STALL_RESERVED", reserved.IdempotencyKey())
	assert.Equal(t, "s-1", reserved.EntityID())

	data, err = Encode(StallReleased{StallID: "s-1", UserID: "u-1", ReservationID: "r-1", ReleasedAt: reservedAt})
	require.NoError(t, err)
	ev, err = Decode(data)
	require.NoError(t, err)
	assert.IsType(t, StallReleased{}, ev)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown kind", `{"event":"RESERVATION_EXPIRED","reservationId":"r","stallId":"s"}`},
		{"missing stall", `{"event":"RESERVATION_CREATED","reservationId":"r","userId":"u","amount":1,"reserveDate":"2025-09-01T10:30:00Z"}`},
		{"missing amount", `{"event":"RESERVATION_CREATED","reservationId":"r","userId":"u","stallId":"s","reserveDate":"2025-09-01T10:30:00Z"}`},
		{"bad date", `{"event":"RESERVATION_CREATED","reservationId":"r","userId":"u","stallId":"s","amount":1,"reserveDate":"yesterday"}`},
		{"confirmed without confirm date", `{"event":"RESERVATION_CONFIRMED","reservationId":"r","userId":"u","stallId":"s","amount":1,"reserveDate":"2025-09-01T10:30:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}
}
