package outbox

import (
	"time"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

const (
	HeaderEventType      = "event_type"
	HeaderIdempotencyKey = "idempotency_key"
	HeaderSource         = "source"
)

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	RoutingKey    string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}

// FromDomain builds the outbox row for a domain event.
func FromDomain(aggregateType, source string, ev events.Event, traceparent string) (Event, error) {
	payload, err := events.Encode(ev)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   ev.EntityID(),
		Type:          string(ev.Kind()),
		RoutingKey:    ev.Kind().RoutingKey(),
		Payload:       payload,
		Headers: map[string]string{
			HeaderIdempotencyKey: ev.IdempotencyKey(),
			HeaderSource:         source,
		},
		Traceparent: traceparent,
		Status:      StatusPending,
	}, nil
}
