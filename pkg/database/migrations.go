package database

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/migrations"
)

// MigrationsTable keeps golang-migrate's bookkeeping separate from both the
// managed tables and the engine registry.
const MigrationsTable = "engine_schema_migrations"

// RunMigrations applies the embedded bootstrap migrations that create the
// engine's registry tables. It is idempotent and safe to call on every
// startup - only pending versions are executed. The runtime reconciliation
// of managed domain tables happens elsewhere; this only bootstraps the
// bookkeeping schema it needs.
func RunMigrations(db *DB, logger *zap.Logger) error {
	source, err := iofs.New(migrations.FS(), ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	stdDB := stdlib.OpenDBFromPool(db.Pool)
	defer func() {
		if err := stdDB.Close(); err != nil {
			logger.Warn("Failed to close migration adapter", zap.Error(err))
		}
	}()

	driver, err := postgres.WithInstance(stdDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if err == migrate.ErrNoChange {
		logger.Debug("Registry tables up-to-date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Bootstrapped registry tables", zap.Uint("version", newVersion))
	return nil
}
