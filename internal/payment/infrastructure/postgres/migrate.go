package postgres

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newMigrator(pgURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, migrateURL(pgURL))
}

// Migrate applies all pending up migrations.
func Migrate(log *slog.Logger, pgURL string) error {
	m, err := newMigrator(pgURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer closeMigrator(log, m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(log *slog.Logger, pgURL string, steps int) error {
	m, err := newMigrator(pgURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer closeMigrator(log, m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func closeMigrator(log *slog.Logger, m *migrate.Migrate) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		log.Warn("closing migrator", "source_err", srcErr, "db_err", dbErr)
	}
}

// migrateURL rewrites a libpq URL to the scheme the pgx/v5 migrate driver registers.
func migrateURL(pgURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(pgURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(pgURL, prefix)
		}
	}
	return pgURL
}
