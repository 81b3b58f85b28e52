package redis

import (
	"context"
	"time"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/idempotency"
)

const DefaultClaimLease = 2 * time.Minute

// DeliveryStore keeps delivery records in Redis, keyed by event idempotency key.
type DeliveryStore struct {
	store *idempotency.Store
	lease time.Duration
}

func NewDeliveryStore(store *idempotency.Store, lease time.Duration) *DeliveryStore {
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	return &DeliveryStore{store: store, lease: lease}
}

func (d *DeliveryStore) key(k string) string {
	return d.store.Key("delivered", k)
}

func (d *DeliveryStore) Delivered(ctx context.Context, key string) (bool, error) {
	return d.store.Exists(ctx, d.key(key))
}

func (d *DeliveryStore) Claim(ctx context.Context, key string) (bool, error) {
	return d.store.Claim(ctx, d.key(key), d.lease)
}

func (d *DeliveryStore) Release(ctx context.Context, key string) error {
	return d.store.Release(ctx, d.key(key))
}

func (d *DeliveryStore) MarkDelivered(ctx context.Context, key string, outcome domain.Outcome) error {
	if err := d.store.Mark(ctx, d.key(key), string(outcome)); err != nil {
		return err
	}
	return d.store.Release(ctx, d.key(key))
}

// Outcome returns the recorded outcome for key, or "" if none.
func (d *DeliveryStore) Outcome(ctx context.Context, key string) (domain.Outcome, error) {
	v, err := d.store.Value(ctx, d.key(key))
	if err != nil || v == "" {
		return "", err
	}
	return domain.ParseOutcome(v)
}
