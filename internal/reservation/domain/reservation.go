package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// CancelReasonQuota marks a reservation the quota backstop cancelled right
// after it was created.
const CancelReasonQuota = "QUOTA_EXCEEDED"

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("reservation status %q: %w", s, apperr.ErrInvalid)
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	}
	return false
}

type Reservation struct {
	ID                 string
	UserID             string
	Email              string
	StallID            string
	Amount             float64
	Status             Status
	ReserveDate        time.Time
	ReserveConfirmDate *time.Time
	QRSeed             string
	CancelReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func New(id, userID, email, stallID string, amount float64, now time.Time) (Reservation, error) {
	switch {
	case id == "":
		return Reservation{}, fmt.Errorf("reservation id required: %w", apperr.ErrInvalid)
	case userID == "":
		return Reservation{}, fmt.Errorf("user id required: %w", apperr.ErrInvalid)
	case stallID == "":
		return Reservation{}, fmt.Errorf("stall id required: %w", apperr.ErrInvalid)
	case amount < 0:
		return Reservation{}, fmt.Errorf("amount must not be negative: %w", apperr.ErrInvalid)
	}
	return Reservation{
		ID:          id,
		UserID:      userID,
		Email:       email,
		StallID:     stallID,
		Amount:      amount,
		Status:      StatusPending,
		ReserveDate: now,
		QRSeed:      events.QRSeed(id, stallID, userID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r Reservation) Active() bool {
	return r.Status != StatusCancelled
}

// Confirm returns the confirmed copy of r.
func (r Reservation) Confirm(now time.Time) (Reservation, error) {
	if !r.Status.CanTransitionTo(StatusConfirmed) {
		return Reservation{}, r.illegal(StatusConfirmed)
	}
	r.Status = StatusConfirmed
	r.ReserveConfirmDate = &now
	r.UpdatedAt = now
	return r, nil
}

// Cancel returns the cancelled copy of r. A confirm date is kept.
func (r Reservation) Cancel(now time.Time) (Reservation, error) {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return Reservation{}, r.illegal(StatusCancelled)
	}
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return r, nil
}

// CancelOverQuota is Cancel recording that the user's quota was exceeded.
func (r Reservation) CancelOverQuota(now time.Time) (Reservation, error) {
	next, err := r.Cancel(now)
	if err != nil {
		return Reservation{}, err
	}
	next.CancelReason = CancelReasonQuota
	return next, nil
}

func (r Reservation) illegal(next Status) error {
	return fmt.Errorf("reservation %s is %s, cannot become %s: %w", r.ID, r.Status, next, apperr.ErrInvalidTransition)
}

// Snapshot is the event payload view of r.
func (r Reservation) Snapshot() events.Reservation {
	return events.Reservation{
		ReservationID:      r.ID,
		UserID:             r.UserID,
		Email:              r.Email,
		StallID:            r.StallID,
		Status:             string(r.Status),
		Amount:             r.Amount,
		ReserveDate:        r.ReserveDate,
		ReserveConfirmDate: r.ReserveConfirmDate,
		QRSeed:             r.QRSeed,
	}
}
