package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/migrations"
)

func newMigrateCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "migrate [set...]",
		Short: "Apply schema migrations",
		Long: `Apply the embedded migrations for one or more schema sets
(reservation, stall, notification). Applying a set twice is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := parseSets(args, all)
			if err != nil {
				return err
			}
			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			for _, s := range sets {
				if err := migrations.Apply(cmd.Context(), pool, s); err != nil {
					return fmt.Errorf("migrate %s: %w", s, err)
				}
				printSuccess(out(cmd), "%s schema up to date", s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "apply every set")
	return cmd
}

func parseSets(args []string, all bool) ([]migrations.Set, error) {
	if all {
		return migrations.Sets(), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("name at least one set or pass --all")
	}
	sets := make([]migrations.Set, 0, len(args))
	for _, a := range args {
		s, err := migrations.ParseSet(a)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, nil
}
