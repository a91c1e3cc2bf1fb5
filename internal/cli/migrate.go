package cli

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"arith-live-service/internal/config"
	pgmigrations "arith-live-service/internal/infra/postgres/migrations"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

var errNoPostgres = errors.New("session results need postgres.url or POSTGRES_URL")

// NewMigrateCmd brings the session_results schema up to date.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the session_results table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return migrateResults(cmd.Context(), cfg)
		},
	}
}

// migrateResults applies pending result-store migrations. The start command calls it
// too whenever Postgres is configured, so a fresh database works without a separate step.
func migrateResults(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return errNoPostgres
	}

	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL))), pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		slog.Info("session results schema already current")
		return nil
	}
	slog.Info("session results schema migrated", "group", group.String())
	return nil
}
