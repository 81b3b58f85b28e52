package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type memRepo struct {
	mu     sync.Mutex
	rows   map[string]domain.Stall
	outbox []events.Event
	getErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]domain.Stall{}}
}

func (m *memRepo) Create(_ context.Context, s domain.Stall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Name == s.Name {
			return apperr.ErrConflict
		}
	}
	m.rows[s.ID] = s
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (domain.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Stall{}, m.getErr
	}
	s, ok := m.rows[id]
	if !ok {
		return domain.Stall{}, fmt.Errorf("stall %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]domain.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Stall
	for _, s := range m.rows {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.MinPrice != nil && s.Price < *f.MinPrice {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memRepo) CountReserved(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.rows {
		if s.Status == domain.StatusReserved && s.ReservedBy == userID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) Reserve(_ context.Context, id, userID, reservationID string, at time.Time, evs ...events.Event) (domain.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.Status != domain.StatusAvailable {
		return domain.Stall{}, apperr.ErrNotAvailable
	}
	s.Status, s.ReservedBy, s.ReservationID, s.UpdatedAt = domain.StatusReserved, userID, reservationID, at
	m.rows[id] = s
	m.outbox = append(m.outbox, evs...)
	return s, nil
}

func (m *memRepo) Release(_ context.Context, id, reservationID string, at time.Time, evs ...events.Event) (domain.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || !s.LinkedTo(reservationID) {
		return domain.Stall{}, apperr.ErrNotReserved
	}
	s.Status, s.ReservedBy, s.ReservationID, s.UpdatedAt = domain.StatusAvailable, "", "", at
	m.rows[id] = s
	m.outbox = append(m.outbox, evs...)
	return s, nil
}

func (m *memRepo) SetStatus(_ context.Context, id string, from, to domain.Status, at time.Time) (domain.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return domain.Stall{}, apperr.ErrNotFound
	}
	if s.Status != from {
		return domain.Stall{}, apperr.ErrInvalidTransition
	}
	s.Status, s.UpdatedAt = to, at
	m.rows[id] = s
	return s, nil
}

type memTombs struct {
	mu   sync.Mutex
	dead map[string]bool
}

func (t *memTombs) MarkCancelled(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dead[id] = true
	return nil
}

func (t *memTombs) IsCancelled(_ context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dead[id], nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAllocator(t *testing.T) (*Allocator, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	clk := clock.NewFixed(time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC))
	a := NewAllocator(discard(), repo, limit.New(limit.CounterFunc(repo.CountReserved), 3, "stalls"), clk, &memTombs{dead: map[string]bool{}})
	return a, repo
}

func addStall(t *testing.T, a *Allocator, name string, price float64) domain.Stall {
	t.Helper()
	s, err := a.Create(context.Background(), CreateInput{Name: name, Size: domain.SizeSmall, Dimension: 4, Price: price})
	require.NoError(t, err)
	return s
}

func assertConsistent(t *testing.T, repo *memRepo) {
	t.Helper()
	for _, s := range repo.rows {
		assert.True(t, s.Consistent(), "stall %s inconsistent: %+v", s.ID, s)
	}
}

func TestReserveAndRelease(t *testing.T) {
	a, repo := newAllocator(t)
	ctx := context.Background()
	s := addStall(t, a, "A1", 1200)

	reserved, err := a.Reserve(ctx, s.ID, "u-1", "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserved, reserved.Status)
	assert.Equal(t, "u-1", reserved.ReservedBy)
	assert.Equal(t, "r-1", reserved.ReservationID)

	_, err = a.Reserve(ctx, s.ID, "u-2", "r-2")
	assert.ErrorIs(t, err, apperr.ErrNotAvailable)

	again, err := a.Reserve(ctx, s.ID, "u-1", "r-1")
	require.NoError(t, err, "re-applying the same reservation is a no-op")
	assert.Equal(t, "r-1", again.ReservationID)

	released, err := a.Release(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, released.Status)
	assert.Empty(t, released.ReservedBy)

	_, err = a.Release(ctx, s.ID)
	assert.ErrorIs(t, err, apperr.ErrNotReserved)

	require.Len(t, repo.outbox, 2)
	ev := repo.outbox[0].(events.StallReserved)
	assert.Equal(t, float64(1200), ev.Price)
	rel := repo.outbox[1].(events.StallReleased)
	assert.Equal(t, "r-1", rel.ReservationID)
	assert.Equal(t, "u-1", rel.UserID)
	assertConsistent(t, repo)
}

func TestConcurrentReserveHasOneWinner(t *testing.T) {
	a, repo := newAllocator(t)
	s := addStall(t, a, "B2", 500)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := a.Reserve(context.Background(), s.ID, fmt.Sprintf("u-%d", i), fmt.Sprintf("r-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrNotAvailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 19, rejected)
	assert.Len(t, repo.outbox, 1)
	assertConsistent(t, repo)
}

func TestReserveEnforcesStallQuota(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s := addStall(t, a, fmt.Sprintf("C%d", i), 100)
		_, err := a.Reserve(ctx, s.ID, "u-1", fmt.Sprintf("r-%d", i))
		require.NoError(t, err)
	}
	can, err := a.CanUserReserveMore(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, can)

	s := addStall(t, a, "C9", 100)
	_, err = a.Reserve(ctx, s.ID, "u-1", "r-9")
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
}

func TestReleaseForChecksLink(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	s := addStall(t, a, "D1", 100)
	_, err := a.Reserve(ctx, s.ID, "u-1", "r-1")
	require.NoError(t, err)

	_, err = a.ReleaseFor(ctx, s.ID, "r-other")
	assert.ErrorIs(t, err, apperr.ErrNotReserved)

	_, err = a.ReleaseFor(ctx, s.ID, "r-1")
	assert.NoError(t, err)
}

func TestCreateAndQueries(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	s := addStall(t, a, "E1", 100)
	addStall(t, a, "E2", 900)

	_, err := a.Create(ctx, CreateInput{Name: "E1", Size: domain.SizeLarge, Dimension: 1, Price: 1})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	av, err := a.CheckAvailability(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, av.Available)
	assert.Equal(t, "Stall is available", av.Message)

	_, err = a.Reserve(ctx, s.ID, "u-1", "r-1")
	require.NoError(t, err)
	av, err = a.CheckAvailability(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, av.Available)
	assert.Equal(t, "Stall is reserved", av.Message)

	minPrice := 500.0
	list, err := a.List(ctx, Filter{MinPrice: &minPrice})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	maxPrice := 100.0
	_, err = a.List(ctx, Filter{MinPrice: &minPrice, MaxPrice: &maxPrice})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestMaintenance(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	s := addStall(t, a, "F1", 100)

	st, err := a.SetMaintenance(ctx, s.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMaintenance, st.Status)

	_, err = a.Reserve(ctx, s.ID, "u-1", "r-1")
	assert.ErrorIs(t, err, apperr.ErrNotAvailable)

	_, err = a.SetMaintenance(ctx, s.ID, false)
	require.NoError(t, err)
	_, err = a.Reserve(ctx, s.ID, "u-1", "r-1")
	require.NoError(t, err)

	_, err = a.SetMaintenance(ctx, s.ID, true)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func reservationEvent(resID, stallID string) events.Reservation {
	return events.Reservation{ReservationID: resID, UserID: "u-1", StallID: stallID, Status: "PENDING", Amount: 100, ReserveDate: time.Now()}
}

func TestReservationEventsDriveAllocation(t *testing.T) {
	a, repo := newAllocator(t)
	ctx := context.Background()
	s := addStall(t, a, "G1", 100)

	created := events.ReservationCreated{Reservation: reservationEvent("r-1", s.ID)}
	require.NoError(t, a.HandleReservationEvent(ctx, created))
	require.NoError(t, a.HandleReservationEvent(ctx, created), "redelivery is a no-op")
	assert.Equal(t, "r-1", repo.rows[s.ID].ReservationID)
	assert.Len(t, repo.outbox, 1)

	other := events.ReservationCreated{Reservation: reservationEvent("r-2", s.ID)}
	require.NoError(t, a.HandleReservationEvent(ctx, other), "business rejection is acked")

	cancelled := events.ReservationCancelled{Reservation: reservationEvent("r-1", s.ID)}
	require.NoError(t, a.HandleReservationEvent(ctx, cancelled))
	require.NoError(t, a.HandleReservationEvent(ctx, cancelled))
	assert.Equal(t, domain.StatusAvailable, repo.rows[s.ID].Status)
	assert.Len(t, repo.outbox, 2)
	assertConsistent(t, repo)
}

func TestCancellationBeforeCreationWins(t *testing.T) {
	a, repo := newAllocator(t)
	ctx := context.Background()
	s := addStall(t, a, "H1", 100)

	require.NoError(t, a.HandleReservationEvent(ctx, events.ReservationCancelled{Reservation: reservationEvent("r-1", s.ID)}))
	require.NoError(t, a.HandleReservationEvent(ctx, events.ReservationCreated{Reservation: reservationEvent("r-1", s.ID)}))

	assert.Equal(t, domain.StatusAvailable, repo.rows[s.ID].Status)
	assert.Empty(t, repo.outbox)
}

func TestTransientErrorsAreReturned(t *testing.T) {
	a, repo := newAllocator(t)
	repo.getErr = apperr.Transient(errors.New("db down"))

	err := a.HandleReservationEvent(context.Background(), events.ReservationCreated{Reservation: reservationEvent("r-1", "s-1")})
	assert.True(t, apperr.IsRetryable(err))
}
