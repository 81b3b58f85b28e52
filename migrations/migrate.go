package migrations

import (
	"context"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed common/*.sql reservation/*.sql stall/*.sql notification/*.sql
var migrationFiles embed.FS

// Set names the schema owned by one service database.
type Set string

const (
	Reservation  Set = "reservation"
	Stall        Set = "stall"
	Notification Set = "notification"
)

// Sets returns every known set.
func Sets() []Set {
	return []Set{Reservation, Stall, Notification}
}

func ParseSet(s string) (Set, error) {
	for _, set := range Sets() {
		if string(set) == s {
			return set, nil
		}
	}
	return "", fmt.Errorf("unknown migration set %q", s)
}

// dirs lists the directories applied for a set, in order.
func (s Set) dirs() []string {
	switch s {
	case Reservation, Stall:
		return []string{"common", string(s)}
	default:
		return []string{string(s)}
	}
}

// Files lists the migration names for a set in apply order.
func Files(set Set) ([]string, error) {
	var names []string
	for _, dir := range set.dirs() {
		entries, err := migrationFiles.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read migrations %s: %w", dir, err)
		}
		dirNames := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
				continue
			}
			dirNames = append(dirNames, path.Join(dir, e.Name()))
		}
		sort.Strings(dirNames)
		names = append(names, dirNames...)
	}
	return names, nil
}

// Apply runs the embedded SQL migrations of set under an advisory lock,
// recording each in schema_migrations.
func Apply(ctx context.Context, pool *pgxpool.Pool, set Set) error {
	names, err := Files(set)
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	const advisoryLockID int64 = 731_450_001
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockID)
	}()

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, name := range names {
		var applied bool
		if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		sqlBytes, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		sql := strings.TrimSpace(string(sqlBytes))
		if sql == "" {
			continue
		}
		if _, err := conn.Exec(ctx, sql); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := conn.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}
