package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/config"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/logging"
	pg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/shutdown"
)

var (
	dbURL    string
	jsonOut  bool
	logLevel string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cibfctl",
		Short: "Admin tool for the CIBF stall reservation services",
		Long: `cibfctl manages the stall reservation databases directly: it applies
schema migrations, creates and lists stalls, and prints a user's
reservation summary.

The database comes from --db, then PG_URL, then CONFIG_FILE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&dbURL, "db", "", "postgres connection url")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(newMigrateCmd(), newStallCmd(), newReservationCmd())
	return cmd
}

func Execute() error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

func logger() *slog.Logger {
	return logging.New("cibfctl", logLevel)
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	url := dbURL
	if url == "" {
		cfg, err := config.Load("cibfctl")
		if err != nil {
			return nil, err
		}
		url = cfg.PostgresURL
	}
	return pg.Connect(ctx, logger(), url)
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(out(cmd), format, a...)
}
