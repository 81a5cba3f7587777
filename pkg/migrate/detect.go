package migrate

import (
	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/schema"
)

// protectedColumns are never candidates for removal regardless of flags.
// Live primary key columns receive the same protection.
var protectedColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// ChangeSet describes the differences between a table's declared definition
// and its live state.
type ChangeSet struct {
	TableName  string
	NewColumns []schema.Column
	// RemovedColumns is only populated when column removal is allowed.
	RemovedColumns []string
	// ModifiedColumns is tracked for reporting but never populated: type
	// changes between the definition and the database are not detected.
	ModifiedColumns []string
	NewIndexes      []schema.Index
	// NewForeignKeys are detected for reporting only; the applier does not
	// add constraints to existing tables.
	NewForeignKeys []schema.ForeignKey
}

// TotalChanges is the number of detected differences across all categories.
func (cs *ChangeSet) TotalChanges() int {
	return len(cs.NewColumns) + len(cs.RemovedColumns) + len(cs.ModifiedColumns) +
		len(cs.NewIndexes) + len(cs.NewForeignKeys)
}

// Empty reports whether no differences were detected.
func (cs *ChangeSet) Empty() bool {
	return cs.TotalChanges() == 0
}

// Detector compares declared table definitions against introspected state.
type Detector struct {
	allowColumnRemoval bool
	logger             *zap.Logger
}

// NewDetector creates a Detector. When allowColumnRemoval is false, extra
// live columns are skipped silently rather than reported as pending changes,
// so orphaned legacy columns do not produce warnings on every run.
func NewDetector(allowColumnRemoval bool, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		allowColumnRemoval: allowColumnRemoval,
		logger:             logger.Named("schema-detector"),
	}
}

// Detect computes the change-set for one table. The live state must come
// from the same run's introspector; callers refresh the cache after DDL.
func (d *Detector) Detect(table *schema.Table, live *LiveTable) *ChangeSet {
	cs := &ChangeSet{TableName: table.Name}

	desired := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		desired[col.Name] = true
		if !live.HasColumn(col.Name) {
			cs.NewColumns = append(cs.NewColumns, col)
		}
	}

	protected := make(map[string]bool, len(protectedColumns))
	for name := range protectedColumns {
		protected[name] = true
	}
	for _, name := range live.PrimaryKeyColumns() {
		protected[name] = true
	}

	for _, col := range live.Columns {
		if desired[col.Name] || protected[col.Name] {
			continue
		}
		if !d.allowColumnRemoval {
			d.logger.Debug("Skipping removal of unmanaged column",
				zap.String("table", table.Name),
				zap.String("column", col.Name))
			continue
		}
		cs.RemovedColumns = append(cs.RemovedColumns, col.Name)
	}

	for _, idx := range table.Indexes {
		if !live.HasIndex(idx.Name) {
			cs.NewIndexes = append(cs.NewIndexes, idx)
		}
	}

	constrained := live.ConstrainedColumns()
	for _, fk := range table.ForeignKeys {
		if !constrained[fk.Column] {
			cs.NewForeignKeys = append(cs.NewForeignKeys, fk)
		}
	}

	return cs
}
