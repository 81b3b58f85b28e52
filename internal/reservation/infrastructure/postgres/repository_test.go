package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/migrations"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

func newTestRepo(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, migrations.Apply(ctx, pool, migrations.Reservation))

	return NewRepository(slog.New(slog.NewTextHandler(io.Discard, nil)), pool), pool
}

func TestRepositoryLifecycle(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	r, err := domain.New(uuid.NewString(), user, "", "s-1", 1250.5, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, r, events.ReservationCreated{Reservation: r.Snapshot()}))

	err = repo.Create(ctx, r)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 1250.5, got.Amount)
	assert.Empty(t, got.Email)

	confirmed, err := got.Confirm(now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, confirmed, domain.StatusPending))
	assert.ErrorIs(t, repo.Transition(ctx, confirmed, domain.StatusPending), apperr.ErrConflict)

	n, err := repo.CountActive(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rank, err := repo.ActiveRank(ctx, user, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	list, err := repo.List(ctx, application.Filter{UserID: user, Status: domain.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].ReserveConfirmDate)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND routing_key = 'reservation.created'`, r.ID).Scan(&outboxRows))
	assert.Equal(t, 1, outboxRows)

	over, err := list[0].CancelOverQuota(now.Add(2 * time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, over, domain.StatusConfirmed))
	got, err = repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, domain.CancelReasonQuota, got.CancelReason)

	_, err = repo.Get(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
