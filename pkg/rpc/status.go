package rpc

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

// ToStatus maps an application error onto a gRPC status.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}
	var code codes.Code
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		code = codes.NotFound
	case apperr.KindInvalid:
		code = codes.InvalidArgument
	case apperr.KindNotAvailable, apperr.KindNotReserved, apperr.KindInvalidTransition:
		code = codes.FailedPrecondition
	case apperr.KindQuotaExceeded:
		code = codes.ResourceExhausted
	case apperr.KindConflict:
		code = codes.AlreadyExists
	case apperr.KindTransient:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// FromStatus turns a gRPC error back into the matching apperr kind so callers
// can use errors.Is across the wire.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return apperr.Transient(err)
	}
	var kind error
	switch st.Code() {
	case codes.NotFound:
		kind = apperr.ErrNotFound
	case codes.InvalidArgument:
		kind = apperr.ErrInvalid
	case codes.ResourceExhausted:
		kind = apperr.ErrQuotaExceeded
	case codes.AlreadyExists:
		kind = apperr.ErrConflict
	case codes.FailedPrecondition:
		kind = preconditionKind(st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		kind = apperr.ErrTransient
	default:
		return fmt.Errorf("rpc: %s", st.Message())
	}
	return fmt.Errorf("rpc: %s: %w", st.Message(), kind)
}

func preconditionKind(msg string) error {
	for _, k := range []error{apperr.ErrNotAvailable, apperr.ErrNotReserved, apperr.ErrInvalidTransition} {
		if strings.Contains(msg, k.Error()) {
			return k
		}
	}
	return apperr.ErrInvalidTransition
}
