package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	stallpg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
)

func newStallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stall",
		Short: "Create and list stalls",
	}
	cmd.AddCommand(newStallCreateCmd(), newStallListCmd())
	return cmd
}

func newStallCreateCmd() *cobra.Command {
	var (
		in   application.CreateInput
		size string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an AVAILABLE stall",
		RunE: func(cmd *cobra.Command, args []string) error {
			sz, err := domain.ParseSize(size)
			if err != nil {
				return err
			}
			in.Size = sz

			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger()
			repo := stallpg.NewRepository(log, pool)
			alloc := application.NewAllocator(log, repo, limit.New(limit.CounterFunc(repo.CountReserved), 0, "stalls"), clock.NewSystem(), nil)
			st, err := alloc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out(cmd), st)
			}
			printSuccess(out(cmd), "stall %s created with id %s", st.Name, st.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "stall name, at most 10 characters")
	f.StringVar(&size, "size", "", "SMALL, MEDIUM or LARGE")
	f.Float64Var(&in.Dimension, "dimension", 0, "floor area")
	f.Float64Var(&in.Price, "price", 0, "price")
	f.IntVar(&in.PositionX, "x", 0, "map position x")
	f.IntVar(&in.PositionY, "y", 0, "map position y")
	f.StringVar(&in.Description, "description", "", "free text")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newStallListCmd() *cobra.Command {
	var status, size, reservedBy string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stalls",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f application.Filter
			if status != "" {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				f.Status = st
			}
			if size != "" {
				sz, err := domain.ParseSize(size)
				if err != nil {
					return err
				}
				f.Size = sz
			}
			f.ReservedBy = reservedBy

			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			stalls, err := stallpg.NewRepository(logger(), pool).List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out(cmd), stalls)
			}
			writeStalls(cmd, stalls)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&size, "size", "", "filter by size")
	cmd.Flags().StringVar(&reservedBy, "reserved-by", "", "filter by user id")
	return cmd
}

func writeStalls(cmd *cobra.Command, stalls []domain.Stall) {
	tw := table(out(cmd))
	fmt.Fprintln(tw, "NAME\tSIZE\tPRICE\tSTATUS\tRESERVED BY\tID")
	for _, s := range stalls {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\n", s.Name, s.Size, s.Price, paintStatus(string(s.Status)), s.ReservedBy, s.ID)
	}
	_ = tw.Flush()
}
