// Package limit enforces per-user caps on active reservations and reserved
// stalls. Counts are always read fresh; nothing is cached between decisions.
package limit

import (
	"context"
	"fmt"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

const DefaultMax = 3

// Counter returns the number of active items held by a user.
type Counter interface {
	CountActive(ctx context.Context, userID string) (int, error)
}

type CounterFunc func(ctx context.Context, userID string) (int, error)

func (f CounterFunc) CountActive(ctx context.Context, userID string) (int, error) {
	return f(ctx, userID)
}

type Guard struct {
	counter Counter
	max     int
	what    string
}

// New builds a guard. what names the counted thing in error messages.
func New(counter Counter, max int, what string) *Guard {
	if max <= 0 {
		max = DefaultMax
	}
	return &Guard{counter: counter, max: max, what: what}
}

func (g *Guard) Max() int { return g.max }

// Count is the user's current active count.
func (g *Guard) Count(ctx context.Context, userID string) (int, error) {
	n, err := g.counter.CountActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count %s for user %s: %w", g.what, userID, err)
	}
	return n, nil
}

func (g *Guard) CanReserve(ctx context.Context, userID string) (bool, error) {
	n, err := g.Count(ctx, userID)
	if err != nil {
		return false, err
	}
	return n < g.max, nil
}

func (g *Guard) AssertWithinLimit(ctx context.Context, userID string) error {
	n, err := g.Count(ctx, userID)
	if err != nil {
		return err
	}
	if n >= g.max {
		return fmt.Errorf("user %s already holds %d of %d %s: %w", userID, n, g.max, g.what, apperr.ErrQuotaExceeded)
	}
	return nil
}

// Remaining is max minus the current count, never negative.
func (g *Guard) Remaining(ctx context.Context, userID string) (int, error) {
	n, err := g.Count(ctx, userID)
	if err != nil {
		return 0, err
	}
	return max(g.max-n, 0), nil
}
