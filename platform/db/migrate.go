package db

import (
	"context"
	"database/sql"
	"fmt"

	"plumbing_backend/migrations"
	"plumbing_backend/platform/config"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig) error {
	sqlDB, err := openSQL(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrationStatus reports the applied state of every embedded migration.
func MigrationStatus(ctx context.Context, cfg config.DatabaseConfig) ([]*goose.MigrationStatus, error) {
	sqlDB, err := openSQL(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sqlDB.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider.Status(ctx)
}

func openSQL(cfg config.DatabaseConfig) (*sql.DB, error) {
	connConfig, err := pgxConnConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*connConfig), nil
}
