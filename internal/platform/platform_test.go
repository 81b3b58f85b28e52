package platform

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/config"
)

type queueReader struct {
	queue     []kafka.Message
	committed []int64
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
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

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *queueReader) Close() error { return nil }

func newApp(t *testing.T, service string, rdb *redis.Client) *App {
	t.Helper()
	cfg := config.Default(service)
	cfg.IdempotencyTTL = time.Hour
	cfg.Consumer.InitialBackoff = time.Millisecond
	return &App{
		Config: cfg,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Redis:  rdb,
	}
}

func TestConsumerGroupsSharingRedisEachHandleEveryOffset(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	created := kafka.Message{Topic: "reservation.created", Partition: 0, Offset: 7, Value: []byte(`{}`)}
	calls := map[string]int{}

	for _, service := range []string{"stall-service", "notification-service"} {
		app := newApp(t, service, rdb)
		r := &queueReader{queue: []kafka.Message{created, created}}
		c := app.consumer(service, r, func(context.Context, kafka.Message) error {
			calls[service]++
			return nil
		})
		err := c.Run(context.Background())
		require.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []int64{7, 7}, r.committed, service)
	}

	// Each group handles the offset once and skips its own redelivery.
	assert.Equal(t, map[string]int{"stall-service": 1, "notification-service": 1}, calls)
}

func TestOffsetsNamespacedByGroup(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := newApp(t, "stall-service", rdb)
	app.Config.Consumer.GroupID = "stall-blue"

	assert.Equal(t, "idem:offsets:stall-blue:reservation.created:0:7",
		app.Offsets().OffsetKey("reservation.created", 0, 7))
}
