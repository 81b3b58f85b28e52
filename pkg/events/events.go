// Package events defines the domain events exchanged between the reservation,
// stall and notification services. On the wire every event is a flat JSON
// Envelope; in code each kind is its own type carrying only what it needs.
package events

import (
	"fmt"
	"time"
)

type Kind string

const (
	ReservationCreatedKind   Kind = "RESERVATION_CREATED"
	ReservationConfirmedKind Kind = "RESERVATION_CONFIRMED"
	ReservationCancelledKind Kind = "RESERVATION_CANCELLED"
	StallReservedKind        Kind = "STALL_RESERVED"
	StallReleasedKind        Kind = "STALL_RELEASED"
)

// Routing keys double as Kafka topic names.
const (
	RoutingReservationCreated   = "reservation.created"
	RoutingReservationConfirmed = "reservation.confirmed"
	RoutingReservationCancelled = "reservation.cancelled"
	RoutingStallReserved        = "stall.reserved"
	RoutingStallReleased        = "stall.released"
)

var routing = map[Kind]string{
	ReservationCreatedKind:   RoutingReservationCreated,
	ReservationConfirmedKind: RoutingReservationConfirmed,
	ReservationCancelledKind: RoutingReservationCancelled,
	StallReservedKind:        RoutingStallReserved,
	StallReleasedKind:        RoutingStallReleased,
}

// ReservationTopics are consumed by the notifier and the stall service.
var ReservationTopics = []string{
	RoutingReservationCreated,
	RoutingReservationConfirmed,
	RoutingReservationCancelled,
}

// StallTopics are consumed by the reservation service.
var StallTopics = []string{
	RoutingStallReserved,
	RoutingStallReleased,
}

func (k Kind) RoutingKey() string {
	return routing[k]
}

func (k Kind) Valid() bool {
	_, ok := routing[k]
	return ok
}

// Event is implemented by every concrete event type.
type Event interface {
	Kind() Kind
	EntityID() string
	IdempotencyKey() string
	Envelope() Envelope
}

// QRSeed is the canonical informational payload encoded into QR passes.
func QRSeed(reservationID, stallID, userID string) string {
	return fmt.Sprintf("CIBF|reservation=%s|stall=%s|user=%s", reservationID, stallID, userID)
}

// Reservation is the snapshot shared by the three reservation events.
type Reservation struct {
	ReservationID      string
	UserID             string
	Email              string
	StallID            string
	Status             string
	Amount             float64
	ReserveDate        time.Time
	ReserveConfirmDate *time.Time
	QRSeed             string
}

func (r Reservation) envelope(kind Kind) Envelope {
	amount := r.Amount
	env := Envelope{
		Event:              kind,
		ReservationID:      r.ReservationID,
		UserID:             r.UserID,
		Email:              optional(r.Email),
		Status:             r.Status,
		Amount:             &amount,
		StallID:            r.StallID,
		ReserveDate:        formatTime(&r.ReserveDate),
		ReserveConfirmDate: formatTime(r.ReserveConfirmDate),
		QRSeed:             optional(r.QRSeed),
	}
	return env
}

type ReservationCreated struct{ Reservation }

func (ReservationCreated) Kind() Kind               { return ReservationCreatedKind }
func (e ReservationCreated) EntityID() string       { return e.ReservationID }
func (e ReservationCreated) IdempotencyKey() string { return key(e.ReservationID, e.Kind()) }
func (e ReservationCreated) Envelope() Envelope     { return e.envelope(e.Kind()) }

type ReservationConfirmed struct{ Reservation }

func (ReservationConfirmed) Kind() Kind               { return ReservationConfirmedKind }
func (e ReservationConfirmed) EntityID() string       { return e.ReservationID }
func (e ReservationConfirmed) IdempotencyKey() string { return key(e.ReservationID, e.Kind()) }
func (e ReservationConfirmed) Envelope() Envelope     { return e.envelope(e.Kind()) }

type ReservationCancelled struct{ Reservation }

func (ReservationCancelled) Kind() Kind               { return ReservationCancelledKind }
func (e ReservationCancelled) EntityID() string       { return e.ReservationID }
func (e ReservationCancelled) IdempotencyKey() string { return key(e.ReservationID, e.Kind()) }
func (e ReservationCancelled) Envelope() Envelope     { return e.envelope(e.Kind()) }

// StallReserved is emitted after the allocator links a stall to a reservation.
type StallReserved struct {
	StallID       string
	UserID        string
	ReservationID string
	Price         float64
	ReservedAt    time.Time
}

func (StallReserved) Kind() Kind         { return StallReservedKind }
func (e StallReserved) EntityID() string { return e.StallID }

// IdempotencyKey includes the reservation because one stall is reserved many
// times over its lifetime.
func (e StallReserved) IdempotencyKey() string {
	return key(e.StallID+"/"+e.ReservationID, e.Kind())
}

func (e StallReserved) Envelope() Envelope {
	price := e.Price
	return Envelope{
		Event:         e.Kind(),
		ReservationID: e.ReservationID,
		UserID:        e.UserID,
		Status:        "RESERVED",
		Amount:        &price,
		StallID:       e.StallID,
		ReserveDate:   formatTime(&e.ReservedAt),
		QRSeed:        optional(QRSeed(e.ReservationID, e.StallID, e.UserID)),
	}
}

// StallReleased carries the link that was cleared.
type StallReleased struct {
	StallID       string
	UserID        string
	ReservationID string
	ReleasedAt    time.Time
}

func (StallReleased) Kind() Kind         { return StallReleasedKind }
func (e StallReleased) EntityID() string { return e.StallID }

func (e StallReleased) IdempotencyKey() string {
	return key(e.StallID+"/"+e.ReservationID, e.Kind())
}

func (e StallReleased) Envelope() Envelope {
	return Envelope{
		Event:         e.Kind(),
		ReservationID: e.ReservationID,
		UserID:        e.UserID,
		Status:        "AVAILABLE",
		StallID:       e.StallID,
		ReserveDate:   formatTime(&e.ReleasedAt),
	}
}

func key(entityID string, kind Kind) string {
	return entityID + ":" + string(kind)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
