package redis

import (
	"context"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/idempotency"
)

// Tombstones records cancelled reservation ids in Redis with the store's TTL.
type Tombstones struct {
	store *idempotency.Store
}

func NewTombstones(store *idempotency.Store) *Tombstones {
	return &Tombstones{store: store}
}

func (t *Tombstones) MarkCancelled(ctx context.Context, reservationID string) error {
	return t.store.Mark(ctx, t.store.Key("cancelled", reservationID), "1")
}

func (t *Tombstones) IsCancelled(ctx context.Context, reservationID string) (bool, error) {
	return t.store.Exists(ctx, t.store.Key("cancelled", reservationID))
}
