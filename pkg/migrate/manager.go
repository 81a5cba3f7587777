package migrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/models"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/schema"
)

// lockName seeds the advisory lock key that guards against two processes
// migrating the same database at once.
const lockName = "mindmesh-engine:schema-migration"

var migrationLockKey = advisoryLockKey(lockName)

// advisoryLockKey produces a stable positive int64 from a name (FNV-1a).
func advisoryLockKey(name string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return int64(h & 0x7FFFFFFFFFFFFFFF)
}

// Options control a single migration run.
type Options struct {
	// AllowColumnRemoval permits DROP COLUMN for live columns that are no
	// longer declared. Off by default; protected columns are never dropped.
	AllowColumnRemoval bool
	// Seed invokes the injected Seeder once migration has finished.
	Seed bool
}

// Seeder populates default rows after a successful run. Implemented by the
// services layer; the migration pipeline only triggers it.
type Seeder interface {
	Seed(ctx context.Context) error
}

// Table actions reported in a Summary.
const (
	ActionCreated  = "created"
	ActionMigrated = "migrated"
	ActionVerified = "verified"
	ActionFailed   = "failed"
)

// TableResult is the outcome of processing one managed table.
type TableResult struct {
	TableName string `json:"table_name"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Changes   int    `json:"changes"`
	// FixupError records a failed data fixup. The table is still considered
	// structurally migrated.
	FixupError string `json:"fixup_error,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Summary aggregates one migration run. Per-table failures land in Errors
// rather than aborting the run; the caller decides whether they are fatal.
type Summary struct {
	Created    int           `json:"created"`
	Migrated   int           `json:"migrated"`
	Verified   int           `json:"verified"`
	Tables     []TableResult `json:"tables"`
	Errors     []string      `json:"errors,omitempty"`
	DurationMS int64         `json:"duration_ms"`
}

// Manager runs the migration pipeline: introspect, detect, apply, record.
// Tables are processed sequentially in dependency order; parallel DDL over a
// shared pool risks lock contention and foreign keys referencing tables that
// do not exist yet.
type Manager struct {
	db            *database.DB
	registry      *schema.Registry
	records       repositories.RegistryRepository
	dialect       *schema.Dialect
	intro         *Introspector
	applier       *Applier
	vector        *VectorManager
	seeder        Seeder
	vectorEnabled bool
	logger        *zap.Logger
}

// NewManager creates a migration Manager. seeder may be nil when the caller
// never requests seeding. vectorEnabled switches embedding columns from JSONB
// placeholders to real vector columns and enables HNSW index management.
func NewManager(
	db *database.DB,
	registry *schema.Registry,
	records repositories.RegistryRepository,
	seeder Seeder,
	vectorEnabled bool,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("schema-manager")

	dialect := schema.NewPostgresDialect(vectorEnabled)
	intro := NewIntrospector(db.Pool)

	return &Manager{
		db:            db,
		registry:      registry,
		records:       records,
		dialect:       dialect,
		intro:         intro,
		applier:       NewApplier(db.Pool, dialect, logger),
		vector:        NewVectorManager(db.Pool, intro, logger),
		seeder:        seeder,
		vectorEnabled: vectorEnabled,
		logger:        logger,
	}
}

// Run executes one migration run under an advisory lock. Returns
// apperrors.ErrMigrationLocked when another process holds the lock. Fatal
// errors (lock, bootstrap, catalog reads) abort the run; per-table errors are
// collected into the Summary and processing continues.
func (m *Manager) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()

	conn, err := m.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for migration lock: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, migrationLockKey).Scan(&locked); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !locked {
		return nil, apperrors.ErrMigrationLocked
	}
	defer func() {
		// Advisory locks are session scoped, so the database drops the lock
		// if this connection dies; explicit unlock keeps the session clean.
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			m.logger.Warn("Failed to release migration lock", zap.Error(err))
		}
	}()

	m.logger.Info("Starting schema migration",
		zap.Int("tables", m.registry.Len()),
		zap.Bool("allow_column_removal", opts.AllowColumnRemoval),
		zap.Bool("vector_enabled", m.vectorEnabled))

	// The registry bookkeeping tables must exist before any status writes.
	if err := database.RunMigrations(m.db, m.logger); err != nil {
		return nil, fmt.Errorf("bootstrap registry tables: %w", err)
	}

	ordered, err := m.registry.Ordered()
	if err != nil {
		return nil, fmt.Errorf("order table definitions: %w", err)
	}

	m.intro.Refresh()
	if _, err := m.intro.TableNames(ctx); err != nil {
		// Unreadable catalog means no safe default; abort the run.
		return nil, fmt.Errorf("introspect schema: %w", err)
	}

	detector := NewDetector(opts.AllowColumnRemoval, m.logger)
	summary := &Summary{}

	for _, table := range ordered {
		result, err := m.migrateTable(ctx, table, detector, opts)
		if err != nil {
			return nil, fmt.Errorf("migrate %s: %w", table.Name, err)
		}

		summary.Tables = append(summary.Tables, result)
		switch result.Action {
		case ActionCreated:
			summary.Created++
		case ActionMigrated:
			summary.Migrated++
		case ActionVerified:
			summary.Verified++
		case ActionFailed:
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", result.TableName, result.Error))
		}
	}

	if m.vectorEnabled {
		m.vector.Ensure(ctx)
	}

	if opts.Seed {
		if m.seeder == nil {
			summary.Errors = append(summary.Errors, "seeding requested but no seeder configured")
		} else if err := m.seeder.Seed(ctx); err != nil {
			m.logger.Error("Seeding failed", zap.Error(err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("seed: %s", err))
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	m.logger.Info("Schema migration finished",
		zap.Int("created", summary.Created),
		zap.Int("migrated", summary.Migrated),
		zap.Int("verified", summary.Verified),
		zap.Int("errors", len(summary.Errors)),
		zap.Int64("duration_ms", summary.DurationMS))

	return summary, nil
}

// migrateTable drives one table through the state machine. The returned
// error is reserved for catalog read failures, which abort the whole run;
// everything else is reported through the TableResult.
func (m *Manager) migrateTable(ctx context.Context, table *schema.Table, detector *Detector, opts Options) (TableResult, error) {
	result := TableResult{TableName: table.Name}

	exists, err := m.intro.TableExists(ctx, table.Name)
	if err != nil {
		return result, err
	}

	record := &models.TableRecord{
		TableName:     table.Name,
		ModelName:     table.Model,
		Description:   table.Description,
		SchemaVersion: table.Version,
	}
	if err := m.records.UpsertRecord(ctx, record); err != nil {
		result.Action = ActionFailed
		result.Status = models.TableStatusError
		result.Error = err.Error()
		return result, nil
	}

	if !exists {
		if err := m.applier.CreateTable(ctx, table); err != nil {
			result.Action = ActionFailed
			result.Status = models.TableStatusError
			result.Error = err.Error()
			m.markError(ctx, record, err)
			return result, nil
		}
		m.intro.Refresh()

		result.Action = ActionCreated
		result.Status = models.TableStatusApplied
		if err := m.records.MarkApplied(ctx, record.ID, table.Version, 0); err != nil {
			result.Error = fmt.Sprintf("record status: %s", err)
		}
	} else {
		live, err := m.intro.Describe(ctx, table.Name)
		if err != nil {
			return result, err
		}

		cs := detector.Detect(table, live)
		if cs.Empty() {
			result.Action = ActionVerified
			result.Status = models.TableStatusVerified
			if err := m.records.MarkVerified(ctx, record.ID); err != nil {
				result.Error = fmt.Sprintf("record status: %s", err)
			}
		} else {
			applied, err := m.applier.Apply(ctx, table, cs, opts.AllowColumnRemoval)
			if err != nil {
				result.Action = ActionFailed
				result.Status = models.TableStatusError
				result.Error = err.Error()
				m.markError(ctx, record, err)
				return result, nil
			}
			m.intro.Refresh()

			result.Action = ActionMigrated
			result.Status = models.TableStatusApplied
			result.Changes = applied
			if err := m.records.MarkApplied(ctx, record.ID, table.Version, applied); err != nil {
				result.Error = fmt.Sprintf("record status: %s", err)
			}
		}
	}

	// Data fixups run only after structural work; a converged table stays
	// verified so repeated runs remain idempotent.
	if table.Fixup != nil && result.Action != ActionVerified {
		if err := table.Fixup(ctx, m.db.Pool, m.logger); err != nil {
			m.logger.Error("Data fixup failed",
				zap.String("table", table.Name),
				zap.Error(err))
			result.FixupError = err.Error()
			if serr := m.records.SetStatusMessage(ctx, record.ID, fmt.Sprintf("data fixup failed: %s", err)); serr != nil {
				m.logger.Warn("Failed to record fixup error",
					zap.String("table", table.Name),
					zap.Error(serr))
			}
		} else {
			result.Status = models.TableStatusMigrated
			if err := m.records.MarkDataMigrated(ctx, record.ID); err != nil {
				m.logger.Warn("Failed to record data migration",
					zap.String("table", table.Name),
					zap.Error(err))
			}
		}
	}

	return result, nil
}

// markError best-effort records a table failure in the status row.
func (m *Manager) markError(ctx context.Context, record *models.TableRecord, cause error) {
	if err := m.records.MarkError(ctx, record.ID, cause.Error()); err != nil {
		m.logger.Warn("Failed to record table error",
			zap.String("table", record.TableName),
			zap.Error(err))
	}
}
