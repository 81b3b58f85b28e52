// Package apperr holds the error kinds shared by every service. Callers wrap a
// kind with context using fmt.Errorf("...: %w", kind) and classify with KindOf.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrNotAvailable      = errors.New("not available")
	ErrNotReserved       = errors.New("not reserved")
	ErrConflict          = errors.New("conflict")
	ErrInvalid           = errors.New("invalid input")
	ErrTransient         = errors.New("transient io")
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindNotAvailable      Kind = "not_available"
	KindNotReserved       Kind = "not_reserved"
	KindConflict          Kind = "conflict"
	KindInvalid           Kind = "invalid_input"
	KindTransient         Kind = "transient_io"
	KindInternal          Kind = "internal_error"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrQuotaExceeded, KindQuotaExceeded},
	{ErrNotAvailable, KindNotAvailable},
	{ErrNotReserved, KindNotReserved},
	{ErrConflict, KindConflict},
	{ErrInvalid, KindInvalid},
	{ErrTransient, KindTransient},
}

// KindOf classifies err. Context deadlines count as transient because the
// operation may or may not have committed.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindInternal
}

// Transient marks err as retryable store/broker/mail unavailability.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsRetryable reports whether a consumer or caller should try again.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
