package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/logging"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/schema"
)

// Applier executes DDL for one table per transaction. Statements run inside
// savepoints so a failing statement is skipped without aborting the rest of
// the batch; everything that succeeded commits together.
type Applier struct {
	pool    *pgxpool.Pool
	dialect *schema.Dialect
	logger  *zap.Logger
}

// NewApplier creates an Applier using the given dialect for statement
// generation.
func NewApplier(pool *pgxpool.Pool, dialect *schema.Dialect, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{
		pool:    pool,
		dialect: dialect,
		logger:  logger.Named("schema-applier"),
	}
}

// CreateTable creates a table verbatim from its definition, including all
// declared columns, the primary key, foreign keys, and indexes. A failure
// of the CREATE TABLE itself is fatal for the table; index failures are
// logged and skipped.
func (a *Applier) CreateTable(ctx context.Context, table *schema.Table) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", table.Name, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	stmt := a.dialect.CreateTable(table)
	if _, err := tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table.Name, err)
	}

	for _, idx := range table.Indexes {
		a.execIsolated(ctx, tx, table.Name, a.dialect.CreateIndex(table.Name, &idx))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create of %s: %w", table.Name, err)
	}

	a.logger.Info("Created table",
		zap.String("table", table.Name),
		zap.Int("columns", len(table.Columns)),
		zap.Int("indexes", len(table.Indexes)))
	return nil
}

// Apply executes a change-set for an existing table: column additions first,
// then removals (only when removalEnabled), then index creations. Detected
// foreign keys are reported upstream but not applied here. Returns the number
// of statements that actually succeeded.
func (a *Applier) Apply(ctx context.Context, table *schema.Table, cs *ChangeSet, removalEnabled bool) (int, error) {
	if cs.Empty() {
		return 0, nil
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction for %s: %w", table.Name, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	applied := 0

	for _, col := range cs.NewColumns {
		if a.execIsolated(ctx, tx, table.Name, a.dialect.AddColumn(table.Name, &col)) {
			applied++
		}
	}

	for _, name := range cs.RemovedColumns {
		if !removalEnabled {
			a.logger.Info("Column removal disabled, skipping",
				zap.String("table", table.Name),
				zap.String("column", name))
			continue
		}
		if a.execIsolated(ctx, tx, table.Name, a.dialect.DropColumn(table.Name, name)) {
			applied++
		}
	}

	for _, idx := range cs.NewIndexes {
		if a.execIsolated(ctx, tx, table.Name, a.dialect.CreateIndex(table.Name, idx)) {
			applied++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit changes for %s: %w", table.Name, err)
	}

	if len(cs.NewForeignKeys) > 0 {
		// Constraint addition on existing tables is detected but not
		// executed; surfaced here so operators can apply it manually.
		for _, fk := range cs.NewForeignKeys {
			a.logger.Warn("Detected missing foreign key (not applied)",
				zap.String("table", table.Name),
				zap.String("column", fk.Column),
				zap.String("references", fk.RefTable+"."+fk.RefColumn))
		}
	}

	a.logger.Info("Applied schema changes",
		zap.String("table", table.Name),
		zap.Int("applied", applied),
		zap.Int("detected", cs.TotalChanges()))
	return applied, nil
}

// execIsolated runs one statement inside a savepoint. On failure the
// savepoint rolls back, the error is logged, and the surrounding transaction
// stays usable. Reports whether the statement succeeded.
func (a *Applier) execIsolated(ctx context.Context, tx pgx.Tx, table, stmt string) bool {
	nested, err := tx.Begin(ctx)
	if err != nil {
		a.logger.Warn("Failed to open savepoint, skipping statement",
			zap.String("table", table),
			zap.String("statement", logging.SanitizeStatement(stmt)),
			zap.Error(err))
		return false
	}

	if _, err := nested.Exec(ctx, stmt); err != nil {
		_ = nested.Rollback(ctx)
		a.logger.Warn("Statement failed, skipping",
			zap.String("table", table),
			zap.String("statement", logging.SanitizeStatement(stmt)),
			zap.Error(err))
		return false
	}

	if err := nested.Commit(ctx); err != nil {
		a.logger.Warn("Failed to release savepoint, skipping statement",
			zap.String("table", table),
			zap.String("statement", logging.SanitizeStatement(stmt)),
			zap.Error(err))
		return false
	}

	a.logger.Debug("Executed",
		zap.String("table", table),
		zap.String("statement", logging.SanitizeStatement(stmt)))
	return true
}
