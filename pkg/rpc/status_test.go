package rpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

func TestStatusRoundTrip(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{apperr.ErrNotFound, codes.NotFound},
		{apperr.ErrNotAvailable, codes.FailedPrecondition},
		{apperr.ErrNotReserved, codes.FailedPrecondition},
		{apperr.ErrQuotaExceeded, codes.ResourceExhausted},
		{apperr.ErrInvalid, codes.InvalidArgument},
		{apperr.ErrConflict, codes.AlreadyExists},
		{apperr.ErrTransient, codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("stall s-1: %w", tt.err)
			st := ToStatus(wrapped)
			assert.Equal(t, tt.code, status.Code(st))
			assert.ErrorIs(t, FromStatus(st), tt.err)
		})
	}
}

func TestFromStatusTransportError(t *testing.T) {
	err := FromStatus(errors.New("connection refused"))
	assert.True(t, apperr.IsRetryable(err))
}

func TestCodecName(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(map[string]string{"stallId": "s-1"})
	assert.NoError(t, err)
	var out map[string]string
	assert.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, "s-1", out["stallId"])
	assert.Equal(t, "json", c.Name())
}
