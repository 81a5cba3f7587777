package schema

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Querier is the subset of pgx operations a data fixup may run. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FixupFunc is an optional data migration hook run after a table's structural
// migration succeeds. Fixup failures are recorded on the table's status but
// do not fail the run; the table is still considered structurally migrated.
type FixupFunc func(ctx context.Context, q Querier, logger *zap.Logger) error

// Index declares a secondary index on a managed table.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey declares a reference from one column to another table's column.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Table is the desired schema for one managed entity: its columns, indexes,
// and foreign keys as declared in code. Definitions are immutable at runtime.
type Table struct {
	// Name is the table identifier. When empty, the registry derives it from
	// Model (snake_case, pluralized).
	Name string

	// Model is the originating model's identifier, e.g. "Entity".
	Model string

	Description string

	// Version is the schema version declared by the model. Bump it whenever
	// the definition changes; the migration pipeline records it per table.
	Version int

	Columns     []Column
	Indexes     []Index
	ForeignKeys []ForeignKey

	// Fixup is an optional post-migration data hook.
	Fixup FixupFunc
}

// Column returns the declared column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumns returns the names of all declared primary key columns.
func (t *Table) PrimaryKeyColumns() []string {
	var pks []string
	for i := range t.Columns {
		if t.Columns[i].PrimaryKey {
			pks = append(pks, t.Columns[i].Name)
		}
	}
	return pks
}

// References returns the distinct names of tables this table's foreign keys
// point at, excluding self-references.
func (t *Table) References() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, fk := range t.ForeignKeys {
		if fk.RefTable == t.Name || seen[fk.RefTable] {
			continue
		}
		seen[fk.RefTable] = true
		refs = append(refs, fk.RefTable)
	}
	return refs
}
