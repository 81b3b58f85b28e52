package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	attempts uint64
	wait     time.Duration
}

// NewDispatcher publishes outbox rows. Rows without a routing key go to
// fallbackTopic.
func NewDispatcher(log *slog.Logger, producer Producer, fallbackTopic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: fallbackTopic, attempts: 3, wait: 200 * time.Millisecond}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := make([]kafka.Header, 0, len(event.Headers)+2)

	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)})
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: tracing.TraceparentHeader, Value: []byte(event.Traceparent)})
	}

	topic := event.RoutingKey
	if topic == "" {
		topic = d.topic
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(d.wait), d.attempts-1), ctx)
	err := backoff.Retry(func() error {
		return d.producer.WriteMessages(ctx, msg)
	}, b)
	if err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "topic", topic, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type, "topic", topic)
	return nil
}
