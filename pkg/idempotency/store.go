package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records processed work in Redis. Keys are namespaced so the same
// Redis can back offset dedupe, delivery records and tombstones at once.
type Store struct {
	rdb       redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewStore(rdb redis.UniversalClient, namespace string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (s *Store) Key(parts ...string) string {
	return "idem:" + s.namespace + ":" + strings.Join(parts, ":")
}

func (s *Store) OffsetKey(topic string, partition int, offset int64) string {
	return s.Key(topic, fmt.Sprint(partition), fmt.Sprint(offset))
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Mark(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, s.ttl).Err()
}

// Value returns the stored value, or "" when key is absent.
func (s *Store) Value(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// Claim takes a short-lived exclusive lease on key. A claim that is never
// released expires after lease so a crashed worker does not block redelivery.
func (s *Store) Claim(ctx context.Context, key string, lease time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key+":claim", "1", lease).Result()
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key+":claim").Err()
}
