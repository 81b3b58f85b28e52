package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/application"
	respg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
)

func newReservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservation",
		Short: "Inspect reservations",
	}
	cmd.AddCommand(newSummaryCmd())
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var quota int
	cmd := &cobra.Command{
		Use:   "summary <user-id>",
		Short: "Print a user's reservations and remaining quota",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger()
			repo := respg.NewRepository(log, pool)
			svc := application.NewService(log, repo, limit.New(repo, quota, "reservations"), clock.NewSystem())
			s, err := svc.Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out(cmd), s)
			}
			writeSummary(cmd, s)
			return nil
		},
	}
	cmd.Flags().IntVar(&quota, "max", limit.DefaultMax, "per-user reservation limit")
	return cmd
}

func writeSummary(cmd *cobra.Command, s application.Summary) {
	printf(cmd, "user %s: %d active of %d allowed, %d remaining\n", s.UserID, s.Active, s.Max, s.Remaining)
	if !s.CanCreateNew {
		yellow.Fprintln(out(cmd), "limit reached")
	}
	tw := table(out(cmd))
	fmt.Fprintln(tw, "RESERVATION\tSTALL\tAMOUNT\tSTATUS\tRESERVED")
	for _, r := range s.Reservations {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", r.ID, r.StallID, r.Amount, paintStatus(string(r.Status)), r.ReserveDate.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}
