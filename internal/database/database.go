// Package database runs the embedded goose migrations that create the
// category and rule tables. Table names carry the environment prefix, which
// is substituted into the SQL through goose ENVSUB.
package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// prefixEnvVar is referenced as ${CANOPY_TABLE_PREFIX} inside the migration files
const prefixEnvVar = "CANOPY_TABLE_PREFIX"

// VersionTable returns the goose bookkeeping table for a prefix, so
// environments sharing a database migrate independently.
func VersionTable(tablePrefix string) string {
	return tablePrefix + "goose_db_version"
}

// Migrate applies all pending migrations using the pool's connection settings.
// Migrations are embedded at compile time so no external files are needed at runtime.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tablePrefix string, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := configure(tablePrefix); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("goose version: %w", err)
	}

	logger.Info("database migrations applied", "version", version, "table_prefix", tablePrefix)
	return nil
}

// Reset rolls every migration back, dropping the prefixed tables.
func Reset(ctx context.Context, pool *pgxpool.Pool, tablePrefix string, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := configure(tablePrefix); err != nil {
		return err
	}

	if err := goose.DownToContext(ctx, db, "migrations", 0); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}

	logger.Warn("database migrations rolled back", "table_prefix", tablePrefix)
	return nil
}

// configure points goose at the embedded files and the prefixed version table
func configure(tablePrefix string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName(VersionTable(tablePrefix))
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := os.Setenv(prefixEnvVar, tablePrefix); err != nil {
		return fmt.Errorf("set %s: %w", prefixEnvVar, err)
	}

	return nil
}

