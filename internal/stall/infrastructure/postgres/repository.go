package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/outbox"
	pg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

const (
	aggregateType = "stall"
	source        = "stall-service"
)

const columns = `id, name, size, dimension, price, position_x, position_y, description, status,
	COALESCE(reserved_by, ''), COALESCE(reservation_id, ''), created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, s domain.Stall) error {
	_, err := pg.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stalls (id, name, size, dimension, price, position_x, position_y, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, s.Name, s.Size, s.Dimension, s.Price, s.PositionX, s.PositionY, s.Description, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert stall %s: %w", s.Name, pg.MapError(err))
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Stall, error) {
	s, err := scan(pg.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+columns+` FROM stalls WHERE id = $1`, id))
	if err != nil {
		return domain.Stall{}, fmt.Errorf("stall %s: %w", id, pg.MapError(err))
	}
	return s, nil
}

func (r *Repository) List(ctx context.Context, f application.Filter) ([]domain.Stall, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Size != "" {
		add("size = $%d", f.Size)
	}
	if f.ReservedBy != "" {
		add("reserved_by = $%d", f.ReservedBy)
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}

	q := `SELECT ` + columns + ` FROM stalls`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY name`

	rows, err := pg.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, pg.MapError(err)
	}
	defer rows.Close()

	var out []domain.Stall
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, pg.MapError(err)
		}
		out = append(out, s)
	}
	return out, pg.MapError(rows.Err())
}

func (r *Repository) CountReserved(ctx context.Context, userID string) (int, error) {
	var n int
	err := pg.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM stalls WHERE reserved_by = $1 AND status = 'RESERVED'`, userID).Scan(&n)
	return n, pg.MapError(err)
}

// Reserve is a single conditional UPDATE, so two reservers of one stall can
// never both succeed.
func (r *Repository) Reserve(ctx context.Context, id, userID, reservationID string, at time.Time, evs ...events.Event) (domain.Stall, error) {
	var out domain.Stall
	err := pg.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := pg.TxFromContext(ctx)
		s, err := scan(tx.QueryRow(ctx, `
			UPDATE stalls
			SET status = 'RESERVED', reserved_by = $2, reservation_id = $3, updated_at = $4
			WHERE id = $1 AND status = 'AVAILABLE'
			RETURNING `+columns, id, userID, reservationID, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("stall %s: %w", id, apperr.ErrNotAvailable)
		}
		if err != nil {
			return pg.MapError(err)
		}
		out = s
		return writeOutbox(ctx, tx, evs)
	})
	return out, err
}

func (r *Repository) Release(ctx context.Context, id, reservationID string, at time.Time, evs ...events.Event) (domain.Stall, error) {
	var out domain.Stall
	err := pg.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := pg.TxFromContext(ctx)
		s, err := scan(tx.QueryRow(ctx, `
			UPDATE stalls
			SET status = 'AVAILABLE', reserved_by = NULL, reservation_id = NULL, updated_at = $3
			WHERE id = $1 AND status = 'RESERVED' AND reservation_id = $2
			RETURNING `+columns, id, reservationID, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("stall %s not reserved for %s: %w", id, reservationID, apperr.ErrNotReserved)
		}
		if err != nil {
			return pg.MapError(err)
		}
		out = s
		return writeOutbox(ctx, tx, evs)
	})
	return out, err
}

func (r *Repository) SetStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) (domain.Stall, error) {
	s, err := scan(pg.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE stalls SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+columns, id, from, to, at))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return domain.Stall{}, getErr
		}
		return domain.Stall{}, fmt.Errorf("stall %s is not %s: %w", id, from, apperr.ErrInvalidTransition)
	}
	if err != nil {
		return domain.Stall{}, pg.MapError(err)
	}
	return s, nil
}

func writeOutbox(ctx context.Context, tx pgx.Tx, evs []events.Event) error {
	traceparent := tracing.Traceparent(ctx)
	for _, ev := range evs {
		row, err := outbox.FromDomain(aggregateType, source, ev, traceparent)
		if err != nil {
			return err
		}
		if err := outbox.Insert(ctx, tx, row); err != nil {
			return pg.MapError(err)
		}
	}
	return nil
}

func scan(row pgx.Row) (domain.Stall, error) {
	var s domain.Stall
	err := row.Scan(&s.ID, &s.Name, &s.Size, &s.Dimension, &s.Price, &s.PositionX, &s.PositionY,
		&s.Description, &s.Status, &s.ReservedBy, &s.ReservationID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
