package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

type Size string

const (
	SizeSmall  Size = "SMALL"
	SizeMedium Size = "MEDIUM"
	SizeLarge  Size = "LARGE"
)

func ParseSize(s string) (Size, error) {
	switch sz := Size(strings.ToUpper(s)); sz {
	case SizeSmall, SizeMedium, SizeLarge:
		return sz, nil
	}
	return "", fmt.Errorf("stall size %q: %w", s, apperr.ErrInvalid)
}

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusReserved    Status = "RESERVED"
	StatusMaintenance Status = "MAINTENANCE"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusAvailable, StatusReserved, StatusMaintenance:
		return st, nil
	}
	return "", fmt.Errorf("stall status %q: %w", s, apperr.ErrInvalid)
}

const (
	maxNameLen        = 10
	maxDescriptionLen = 500
)

// Stall is one bookable space on the floor plan. ReservedBy and
// ReservationID are empty unless Status is RESERVED.
type Stall struct {
	ID            string
	Name          string
	Size          Size
	Dimension     float64
	Price         float64
	PositionX     int
	PositionY     int
	Description   string
	Status        Status
	ReservedBy    string
	ReservationID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, name string, size Size, dimension, price float64, x, y int, description string, now time.Time) (Stall, error) {
	name = strings.TrimSpace(name)
	switch {
	case id == "":
		return Stall{}, fmt.Errorf("stall id required: %w", apperr.ErrInvalid)
	case name == "" || utf8.RuneCountInString(name) > maxNameLen:
		return Stall{}, fmt.Errorf("stall name must be 1-%d characters: %w", maxNameLen, apperr.ErrInvalid)
	case dimension <= 0:
		return Stall{}, fmt.Errorf("stall dimension must be positive: %w", apperr.ErrInvalid)
	case price < 0:
		return Stall{}, fmt.Errorf("stall price must not be negative: %w", apperr.ErrInvalid)
	case utf8.RuneCountInString(description) > maxDescriptionLen:
		return Stall{}, fmt.Errorf("stall description too long: %w", apperr.ErrInvalid)
	}
	if _, err := ParseSize(string(size)); err != nil {
		return Stall{}, err
	}
	return Stall{
		ID:          id,
		Name:        name,
		Size:        size,
		Dimension:   dimension,
		Price:       price,
		PositionX:   x,
		PositionY:   y,
		Description: description,
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Consistent reports whether the reservation pair matches the status.
func (s Stall) Consistent() bool {
	linked := s.ReservedBy != "" && s.ReservationID != ""
	unlinked := s.ReservedBy == "" && s.ReservationID == ""
	if s.Status == StatusReserved {
		return linked
	}
	return unlinked
}

// LinkedTo reports whether s is currently reserved for reservationID.
func (s Stall) LinkedTo(reservationID string) bool {
	return s.Status == StatusReserved && s.ReservationID == reservationID
}

func (s Stall) Available() bool {
	return s.Status == StatusAvailable
}

// AvailabilityMessage is the human-readable availability line.
func (s Stall) AvailabilityMessage() string {
	switch s.Status {
	case StatusAvailable:
		return "Stall is available"
	case StatusReserved:
		return "Stall is reserved"
	default:
		return "Stall is under maintenance"
	}
}
