package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/idempotency"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeProducer struct {
	msgs []kafka.Message
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func message(offset int64) kafka.Message {
	return kafka.Message{Topic: "reservation.created", Partition: 0, Offset: offset, Key: []byte("r-1"), Value: []byte(`{}`)}
}

func opts() Options {
	return Options{Name: "test", MaxAttempts: 3, InitialBackoff: time.Millisecond, DeadLetterTopic: "dlq"}
}

func TestConsumerCommitsAfterSuccess(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{message(1), message(2)}}
	var handled []int64
	c := NewConsumer(discard(), r, &fakeProducer{}, nil, func(_ context.Context, m kafka.Message) error {
		handled = append(handled, m.Offset)
		return nil
	}, opts())

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []int64{1, 2}, handled)
	assert.Equal(t, []int64{1, 2}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumerRetriesTransientThenSucceeds(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{message(1)}}
	dlq := &fakeProducer{}
	calls := 0
	c := NewConsumer(discard(), r, dlq, nil, func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return apperr.Transient(errors.New("smtp down"))
		}
		return nil
	}, opts())

	_ = c.Run(context.Background())
	assert.Equal(t, 3, calls)
	assert.Empty(t, dlq.msgs)
	assert.Equal(t, []int64{1}, r.committed)
}

func TestConsumerDeadLettersAfterMaxAttempts(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{message(7)}}
	dlq := &fakeProducer{}
	calls := 0
	c := NewConsumer(discard(), r, dlq, nil, func(context.Context, kafka.Message) error {
		calls++
		return apperr.Transient(errors.New("smtp down"))
	}, opts())

	_ = c.Run(context.Background())
	assert.Equal(t, 3, calls)
	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, "dlq", dl.Topic)
	assert.Equal(t, "reservation.created", headerValue(dl, HeaderOriginalTopic))
	assert.Equal(t, "3", headerValue(dl, HeaderAttempts))
	assert.Contains(t, headerValue(dl, HeaderError), "smtp down")
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumerDeadLettersPermanentErrorsImmediately(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{message(1)}}
	dlq := &fakeProducer{}
	calls := 0
	c := NewConsumer(discard(), r, dlq, nil, func(context.Context, kafka.Message) error {
		calls++
		return fmt.Errorf("decode: %w", apperr.ErrInvalid)
	}, opts())

	_ = c.Run(context.Background())
	assert.Equal(t, 1, calls)
	assert.Len(t, dlq.msgs, 1)
	assert.Equal(t, "1", headerValue(dlq.msgs[0], HeaderAttempts))
}

func TestConsumerSkipsSeenOffsets(t *testing.T) {
	mr := miniredis.RunT(t)
	idem := idempotency.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", time.Hour)

	r := &fakeReader{queue: []kafka.Message{message(1), message(1)}}
	calls := 0
	c := NewConsumer(discard(), r, &fakeProducer{}, idem, func(context.Context, kafka.Message) error {
		calls++
		return nil
	}, opts())

	_ = c.Run(context.Background())
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int64{1, 1}, r.committed)
}

func TestConsumerStopsQuietlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeReader{queue: []kafka.Message{message(1)}}
	c := NewConsumer(discard(), r, &fakeProducer{}, nil, func(context.Context, kafka.Message) error { return nil }, opts())
	assert.NoError(t, c.Run(ctx))
	assert.Empty(t, r.committed)
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
