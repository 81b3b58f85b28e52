package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

func TestNewStall(t *testing.T) {
	s, err := New("s-1", " A12 ", SizeMedium, 9, 25000, 3, 4, "corner", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "A12", s.Name)
	assert.Equal(t, StatusAvailable, s.Status)
	assert.True(t, s.Consistent())
	assert.Equal(t, "Stall is available", s.AvailabilityMessage())

	bad := []func() error{
		func() error { _, err := New("s", "", SizeSmall, 1, 1, 0, 0, "", time.Now()); return err },
		func() error { _, err := New("s", "TOO-LONG-NAME", SizeSmall, 1, 1, 0, 0, "", time.Now()); return err },
		func() error { _, err := New("s", "A1", "HUGE", 1, 1, 0, 0, "", time.Now()); return err },
		func() error { _, err := New("s", "A1", SizeSmall, 0, 1, 0, 0, "", time.Now()); return err },
		func() error { _, err := New("s", "A1", SizeSmall, 1, -1, 0, 0, "", time.Now()); return err },
	}
	for i, f := range bad {
		assert.ErrorIs(t, f(), apperr.ErrInvalid, "case %d", i)
	}
}

func TestConsistent(t *testing.T) {
	tests := []struct {
		st   Stall
		want bool
	}{
		{Stall{Status: StatusReserved, ReservedBy: "u", ReservationID: "r"}, true},
		{Stall{Status: StatusReserved, ReservedBy: "u"}, false},
		{Stall{Status: StatusAvailable}, true},
		{Stall{Status: StatusAvailable, ReservationID: "r"}, false},
		{Stall{Status: StatusMaintenance}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.st.Consistent(), "%+v", tt.st)
	}
	assert.True(t, Stall{Status: StatusReserved, ReservationID: "r"}.LinkedTo("r"))
	assert.False(t, Stall{Status: StatusAvailable}.LinkedTo(""))
}
