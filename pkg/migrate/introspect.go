// Package migrate reconciles the live PostgreSQL schema with the table
// definitions registered in pkg/schema. A run introspects the catalog,
// detects per-table differences, applies additive DDL, and records the
// outcome in the engine's registry tables.
package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LiveColumn is a column as reported by the database catalog.
type LiveColumn struct {
	Name            string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	Default         *string
	OrdinalPosition int
}

// LiveForeignKey is a foreign key constraint as reported by the catalog.
type LiveForeignKey struct {
	ConstraintName string
	Column         string
	RefTable       string
	RefColumn      string
}

// LiveTable is the introspected state of one table. A table that does not
// exist is represented by empty collections, never by an error.
type LiveTable struct {
	Name        string
	Columns     []LiveColumn
	Indexes     []string
	ForeignKeys []LiveForeignKey
}

// Column returns the live column with the given name, or nil.
func (t *LiveTable) Column(name string) *LiveColumn {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the live table has a column with the given name.
func (t *LiveTable) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// HasIndex reports whether an index with the given name exists on the table.
func (t *LiveTable) HasIndex(name string) bool {
	for _, idx := range t.Indexes {
		if idx == name {
			return true
		}
	}
	return false
}

// PrimaryKeyColumns returns the names of the live primary key columns.
func (t *LiveTable) PrimaryKeyColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// ConstrainedColumns returns the set of column names that already carry a
// foreign key constraint.
func (t *LiveTable) ConstrainedColumns() map[string]bool {
	cols := make(map[string]bool, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		cols[fk.Column] = true
	}
	return cols
}

// Introspector reads the live schema of the public namespace. The set of
// existing table names is cached for the duration of a run; callers must
// Refresh after executing DDL so later lookups see the new catalog state.
type Introspector struct {
	pool       *pgxpool.Pool
	tableNames map[string]bool
}

// NewIntrospector creates an Introspector over the given pool.
func NewIntrospector(pool *pgxpool.Pool) *Introspector {
	return &Introspector{pool: pool}
}

// TableNames returns the set of user tables in the public schema, loading
// and caching it on first use.
func (in *Introspector) TableNames(ctx context.Context) (map[string]bool, error) {
	if in.tableNames != nil {
		return in.tableNames, nil
	}

	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := in.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	in.tableNames = names
	return names, nil
}

// TableExists reports whether the table exists in the public schema.
func (in *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	names, err := in.TableNames(ctx)
	if err != nil {
		return false, err
	}
	return names[table], nil
}

// Refresh drops the cached table-name set so the next lookup reloads it.
// Call after any CREATE or ALTER.
func (in *Introspector) Refresh() {
	in.tableNames = nil
}

// Describe returns the live state of one table. A missing table yields a
// LiveTable with empty collections and a nil error.
func (in *Introspector) Describe(ctx context.Context, table string) (*LiveTable, error) {
	live := &LiveTable{Name: table}

	exists, err := in.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return live, nil
	}

	if live.Columns, err = in.columns(ctx, table); err != nil {
		return nil, err
	}
	if live.Indexes, err = in.indexes(ctx, table); err != nil {
		return nil, err
	}
	if live.ForeignKeys, err = in.foreignKeys(ctx, table); err != nil {
		return nil, err
	}
	return live, nil
}

// columns reads column metadata. USER-DEFINED types report their udt_name so
// extension types such as vector are visible to callers.
func (in *Introspector) columns(ctx context.Context, table string) ([]LiveColumn, error) {
	const query = `
		SELECT
			c.column_name,
			CASE WHEN c.data_type = 'USER-DEFINED' THEN c.udt_name ELSE c.data_type END as data_type,
			c.is_nullable = 'YES' as is_nullable,
			COALESCE(pk.is_pk, false) as is_primary_key,
			c.column_default,
			c.ordinal_position
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname as column_name, true as is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = 'public'
			  AND t.relname = $1
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position
	`

	rows, err := in.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []LiveColumn
	for rows.Next() {
		var c LiveColumn
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.Default, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column for %s: %w", table, err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns for %s: %w", table, err)
	}
	return columns, nil
}

func (in *Introspector) indexes(ctx context.Context, table string) ([]string, error) {
	const query = `
		SELECT indexname
		FROM pg_indexes
		WHERE schemaname = 'public' AND tablename = $1
		ORDER BY indexname
	`

	rows, err := in.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query indexes for %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan index for %s: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes for %s: %w", table, err)
	}
	return names, nil
}

func (in *Introspector) foreignKeys(ctx context.Context, table string) ([]LiveForeignKey, error) {
	const query = `
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name as ref_table,
			ccu.column_name as ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = 'public'
		  AND tc.table_name = $1
	`

	rows, err := in.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s: %w", table, err)
	}
	defer rows.Close()

	var fks []LiveForeignKey
	for rows.Next() {
		var fk LiveForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key for %s: %w", table, err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys for %s: %w", table, err)
	}
	return fks, nil
}
