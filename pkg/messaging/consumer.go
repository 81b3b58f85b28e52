// Package messaging runs Kafka consumer loops with offset dedupe, retry of
// transient failures and dead-lettering.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/idempotency"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/metrics"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

const (
	HeaderError         = "x-error"
	HeaderOriginalTopic = "x-original-topic"
	HeaderAttempts      = "x-attempts"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Handler processes one message. Errors wrapping apperr.ErrTransient are
// retried; any other error dead-letters the message at once.
type Handler func(ctx context.Context, msg kafka.Message) error

type Options struct {
	Name            string
	MaxAttempts     int
	InitialBackoff  time.Duration
	DeadLetterTopic string
}

type Consumer struct {
	log      *slog.Logger
	reader   Reader
	dlq      Producer
	idem     *idempotency.Store
	handler  Handler
	opts     Options
	tracer   trace.Tracer
	maxDelay time.Duration
}

// NewConsumer wires a consumer loop. idem may be nil, in which case offsets
// are not deduplicated and handlers must be idempotent on their own.
func NewConsumer(log *slog.Logger, reader Reader, dlq Producer, idem *idempotency.Store, handler Handler, opts Options) *Consumer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.DeadLetterTopic == "" {
		opts.DeadLetterTopic = "cibf.dead-letter"
	}
	return &Consumer{
		log:      log.With("consumer", opts.Name),
		reader:   reader,
		dlq:      dlq,
		idem:     idem,
		handler:  handler,
		opts:     opts,
		tracer:   tracing.Tracer("messaging"),
		maxDelay: 30 * time.Second,
	}
}

// Run consumes until ctx is cancelled. An offset is committed only after the
// handler succeeded, the message was skipped as a duplicate, or it was
// written to the dead-letter topic.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("commit failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	start := time.Now()
	defer func() {
		metrics.ConsumerHandleDuration.WithLabelValues(c.opts.Name, msg.Topic).Observe(time.Since(start).Seconds())
	}()

	var key string
	if c.idem != nil {
		key = c.idem.OffsetKey(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Exists(ctx, key)
		if err != nil {
			c.log.Warn("offset dedupe unavailable", "err", err)
		} else if seen {
			c.log.Info("duplicate message skipped", "key", key)
			metrics.ConsumerMessagesTotal.WithLabelValues(c.opts.Name, msg.Topic, "duplicate").Inc()
			return nil
		}
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "consume "+msg.Topic, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	attempts, err := c.handleWithRetry(msgCtx, msg)
	if err == nil {
		metrics.ConsumerMessagesTotal.WithLabelValues(c.opts.Name, msg.Topic, "handled").Inc()
		if key != "" {
			if err := c.idem.Mark(ctx, key, "1"); err != nil {
				c.log.Warn("offset mark failed", "key", key, "err", err)
			}
		}
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.log.Error("message dead-lettered", "topic", msg.Topic, "offset", msg.Offset, "attempts", attempts, "err", err)
	metrics.ConsumerMessagesTotal.WithLabelValues(c.opts.Name, msg.Topic, "dead_lettered").Inc()
	return c.deadLetter(ctx, msg, attempts, err)
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) (int, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.InitialBackoff
	eb.MaxInterval = c.maxDelay
	eb.MaxElapsedTime = 0

	attempts := 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.opts.MaxAttempts-1)), ctx)
	err := backoff.Retry(func() error {
		attempts++
		err := c.handler(ctx, msg)
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.log.Warn("handler failed, retrying", "topic", msg.Topic, "attempt", attempts, "err", err)
		return err
	}, b)
	return attempts, err
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, attempts int, cause error) error {
	if c.dlq == nil {
		return errors.New("no dead-letter producer configured")
	}
	headers := make([]kafka.Header, 0, len(msg.Headers)+3)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderError, Value: []byte(cause.Error())},
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
	)
	dl := kafka.Message{
		Topic:   c.opts.DeadLetterTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.Retry(func() error {
		return c.dlq.WriteMessages(ctx, dl)
	}, b)
}
