package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

// Envelope is the JSON document published for every event kind.
type Envelope struct {
	Event              Kind     `json:"event"`
	ReservationID      string   `json:"reservationId"`
	UserID             string   `json:"userId"`
	Email              *string  `json:"email"`
	Status             string   `json:"status"`
	Amount             *float64 `json:"amount"`
	StallID            string   `json:"stallId"`
	ReserveDate        *string  `json:"reserveDate"`
	ReserveConfirmDate *string  `json:"reserveConfirmDate"`
	QRSeed             *string  `json:"qrSeed"`
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(e.Envelope())
}

// Decode parses a wire envelope into its concrete event type, checking that
// the fields the kind requires are present.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w: %v", apperr.ErrInvalid, err)
	}
	return FromEnvelope(env)
}

func FromEnvelope(env Envelope) (Event, error) {
	if !env.Event.Valid() {
		return nil, fmt.Errorf("unknown event kind %q: %w", env.Event, apperr.ErrInvalid)
	}
	if env.StallID == "" {
		return nil, invalid(env.Event, "stallId")
	}
	if env.ReservationID == "" {
		return nil, invalid(env.Event, "reservationId")
	}

	switch env.Event {
	case ReservationCreatedKind, ReservationConfirmedKind, ReservationCancelledKind:
		r, err := reservationFromEnvelope(env)
		if err != nil {
			return nil, err
		}
		switch env.Event {
		case ReservationCreatedKind:
			return ReservationCreated{r}, nil
		case ReservationConfirmedKind:
			if r.ReserveConfirmDate == nil {
				return nil, invalid(env.Event, "reserveConfirmDate")
			}
			return ReservationConfirmed{r}, nil
		default:
			return ReservationCancelled{r}, nil
		}
	case StallReservedKind:
		if env.UserID == "" {
			return nil, invalid(env.Event, "userId")
		}
		at, err := parseTime(env.ReserveDate)
		if err != nil {
			return nil, err
		}
		ev := StallReserved{
			StallID:       env.StallID,
			UserID:        env.UserID,
			ReservationID: env.ReservationID,
		}
		if at != nil {
			ev.ReservedAt = *at
		}
		if env.Amount != nil {
			ev.Price = *env.Amount
		}
		return ev, nil
	default:
		at, err := parseTime(env.ReserveDate)
		if err != nil {
			return nil, err
		}
		ev := StallReleased{
			StallID:       env.StallID,
			UserID:        env.UserID,
			ReservationID: env.ReservationID,
		}
		if at != nil {
			ev.ReleasedAt = *at
		}
		return ev, nil
	}
}

func reservationFromEnvelope(env Envelope) (Reservation, error) {
	if env.UserID == "" {
		return Reservation{}, invalid(env.Event, "userId")
	}
	if env.Amount == nil {
		return Reservation{}, invalid(env.Event, "amount")
	}
	reserveDate, err := parseTime(env.ReserveDate)
	if err != nil {
		return Reservation{}, err
	}
	if reserveDate == nil {
		return Reservation{}, invalid(env.Event, "reserveDate")
	}
	confirmDate, err := parseTime(env.ReserveConfirmDate)
	if err != nil {
		return Reservation{}, err
	}

	r := Reservation{
		ReservationID:      env.ReservationID,
		UserID:             env.UserID,
		StallID:            env.StallID,
		Status:             env.Status,
		Amount:             *env.Amount,
		ReserveDate:        *reserveDate,
		ReserveConfirmDate: confirmDate,
	}
	if env.Email != nil {
		r.Email = *env.Email
	}
	if env.QRSeed != nil {
		r.QRSeed = *env.QRSeed
	}
	return r, nil
}

func parseTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", *s, apperr.ErrInvalid)
	}
	return &t, nil
}

func invalid(kind Kind, field string) error {
	return fmt.Errorf("%s missing %s: %w", kind, field, apperr.ErrInvalid)
}
