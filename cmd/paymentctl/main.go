package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	commapp "github.com/dmehra2102/payment-engine/internal/commission/application"
	commdomain "github.com/dmehra2102/payment-engine/internal/commission/domain"
	"github.com/dmehra2102/payment-engine/internal/config"
	pg "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/payment-engine/pkg/logging"
)

var Version = "dev"

// runtime holds what most subcommands need; it is built lazily so that
// "token" works without a database.
type runtime struct {
	cfg    config.Config
	log    *slog.Logger
	pool   *pgxpool.Pool
	repo   *pg.Repository
	engine *commapp.Engine
}

func (rt *runtime) connect(ctx context.Context) error {
	if rt.pool != nil {
		return nil
	}
	pool, err := pgxpool.New(ctx, rt.cfg.PGURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	calc, err := commdomain.NewCalculator(rt.cfg.Rate)
	if err != nil {
		pool.Close()
		return err
	}
	rt.pool = pool
	rt.repo = pg.NewRepository(rt.log, pool)
	rt.engine = commapp.NewEngine(rt.log, calc, rt.repo, rt.repo)
	return nil
}

func (rt *runtime) close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}

func main() {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operator tooling for the payment engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.log = logging.New(cfg.LogLevel)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close()
		},
	}

	rootCmd.AddCommand(migrateCmd(rt))
	rootCmd.AddCommand(reconcileCmd(rt))
	rootCmd.AddCommand(statsCmd(rt))
	rootCmd.AddCommand(showCmd(rt))
	rootCmd.AddCommand(accountCmd(rt))
	rootCmd.AddCommand(tokenCmd(rt))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		rt.close()
		os.Exit(1)
	}
}
