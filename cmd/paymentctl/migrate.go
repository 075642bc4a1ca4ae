package main

import (
	"github.com/spf13/cobra"

	pg "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/postgres"
)

func migrateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back ledger schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pg.Migrate(rt.log, rt.cfg.PGURL)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return pg.MigrateDown(rt.log, rt.cfg.PGURL, steps)
		},
	}
	down.Flags().IntP("steps", "n", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
