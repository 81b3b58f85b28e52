package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/outbox"
	pg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

const (
	aggregateType = "reservation"
	source        = "reservation-service"
)

const selectColumns = `id, user_id, COALESCE(email, ''), stall_id, amount, status, reserve_date,
	reserve_confirm_date, COALESCE(qr_seed, ''), COALESCE(cancel_reason, ''), created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, res domain.Reservation, evs ...events.Event) error {
	return pg.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := pg.TxFromContext(ctx)
		_, err := tx.Exec(ctx, `
			INSERT INTO reservations (id, user_id, email, stall_id, amount, status, reserve_date,
				reserve_confirm_date, qr_seed, created_at, updated_at)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
		`, res.ID, res.UserID, res.Email, res.StallID, res.Amount, res.Status, res.ReserveDate,
			res.ReserveConfirmDate, res.QRSeed, res.CreatedAt, res.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert reservation %s: %w", res.ID, pg.MapError(err))
		}
		return writeOutbox(ctx, tx, evs)
	})
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Reservation, error) {
	row := pg.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+selectColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scan(row)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reservation %s: %w", id, pg.MapError(err))
	}
	return res, nil
}

func (r *Repository) Transition(ctx context.Context, res domain.Reservation, from domain.Status, evs ...events.Event) error {
	return pg.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := pg.TxFromContext(ctx)
		tag, err := tx.Exec(ctx, `
			UPDATE reservations
			SET status = $2, reserve_confirm_date = $3, cancel_reason = NULLIF($6, ''), updated_at = $4
			WHERE id = $1 AND status = $5
		`, res.ID, res.Status, res.ReserveConfirmDate, res.UpdatedAt, from, res.CancelReason)
		if err != nil {
			return fmt.Errorf("update reservation %s: %w", res.ID, pg.MapError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("reservation %s no longer %s: %w", res.ID, from, apperr.ErrConflict)
		}
		return writeOutbox(ctx, tx, evs)
	})
}

func (r *Repository) List(ctx context.Context, f application.Filter) ([]domain.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + selectColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY reserve_date, id`

	rows, err := pg.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, pg.MapError(err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scan(rows)
		if err != nil {
			return nil, pg.MapError(err)
		}
		out = append(out, res)
	}
	return out, pg.MapError(rows.Err())
}

func (r *Repository) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	err := pg.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = $1 AND status <> 'CANCELLED'`, userID).Scan(&n)
	return n, pg.MapError(err)
}

func (r *Repository) ActiveRank(ctx context.Context, userID, id string) (int, error) {
	var rank int
	err := pg.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT rank FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY reserve_date, id) AS rank
			FROM reservations
			WHERE user_id = $1 AND status <> 'CANCELLED'
		) ranked
		WHERE id = $2
	`, userID, id).Scan(&rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return rank, pg.MapError(err)
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

func scan(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(&res.ID, &res.UserID, &res.Email, &res.StallID, &res.Amount, &res.Status,
		&res.ReserveDate, &res.ReserveConfirmDate, &res.QRSeed, &res.CancelReason, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}
