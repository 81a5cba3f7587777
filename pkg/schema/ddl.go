package schema

import (
	"fmt"
	"strings"
)

// Dialect generates PostgreSQL DDL from table definitions. The functions are
// pure: they never touch the database. Identifiers are validated at
// registration time (see Registry.Register), so statements are rendered
// unquoted.
type Dialect struct {
	// vectorEnabled controls how KindVector renders. With pgvector support
	// on, vector columns become VECTOR(n); otherwise they are created as
	// JSONB placeholders that the extension manager later recognizes (by
	// live column type) as not-yet-vector and skips.
	vectorEnabled bool
}

// NewPostgresDialect creates the PostgreSQL DDL generator.
func NewPostgresDialect(vectorEnabled bool) *Dialect {
	return &Dialect{vectorEnabled: vectorEnabled}
}

// VectorEnabled reports whether vector columns render as VECTOR(n).
func (d *Dialect) VectorEnabled() bool {
	return d.vectorEnabled
}

// TypeFor maps a column's semantic kind to its PostgreSQL type. Unrecognized
// kinds fall back to TEXT rather than failing: a definition with a kind this
// generator does not know must not break the whole migration run.
func (d *Dialect) TypeFor(col *Column) string {
	switch col.Kind {
	case KindString:
		if col.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Length)
		}
		return "VARCHAR"
	case KindText:
		return "TEXT"
	case KindInteger:
		return "INTEGER"
	case KindBigInt:
		return "BIGINT"
	case KindSmallInt:
		return "SMALLINT"
	case KindFloat:
		return "FLOAT"
	case KindNumeric:
		if col.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", col.Precision, col.Scale)
		}
		return "NUMERIC"
	case KindBoolean:
		return "BOOLEAN"
	case KindDateTime:
		return "TIMESTAMP WITH TIME ZONE"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindBinary:
		return "BYTEA"
	case KindJSON:
		return "JSONB"
	case KindUUID:
		return "UUID"
	case KindVector:
		if d.vectorEnabled && col.Dimensions > 0 {
			return fmt.Sprintf("VECTOR(%d)", col.Dimensions)
		}
		return "JSONB"
	default:
		return "TEXT"
	}
}

// columnClause renders "name type [NOT NULL] [DEFAULT lit]" for one column.
func (d *Dialect) columnClause(col *Column) string {
	var b strings.Builder
	b.WriteString(col.Name)
	b.WriteString(" ")
	b.WriteString(d.TypeFor(col))

	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if lit, ok := col.Default.Literal(); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}

	return b.String()
}

// AddColumn renders the ALTER TABLE statement adding one column.
func (d *Dialect) AddColumn(table string, col *Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, d.columnClause(col))
}

// DropColumn renders the ALTER TABLE statement removing one column.
func (d *Dialect) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, column)
}

// CreateIndex renders the CREATE INDEX statement for one declared index.
func (d *Dialect) CreateIndex(table string, idx *Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, idx.Name, table, strings.Join(idx.Columns, ", "))
}

// CreateTable renders the full CREATE TABLE statement for a table that does
// not exist yet: all columns, the primary key, and the declared foreign
// keys. Indexes are separate statements (see CreateIndex).
func (d *Dialect) CreateTable(t *Table) string {
	var clauses []string

	pks := t.PrimaryKeyColumns()
	inlinePK := len(pks) == 1

	for i := range t.Columns {
		col := &t.Columns[i]
		clause := d.columnClause(col)
		if inlinePK && col.PrimaryKey {
			clause += " PRIMARY KEY"
		}
		clauses = append(clauses, "    "+clause)
	}

	if len(pks) > 1 {
		clauses = append(clauses, fmt.Sprintf("    PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	for _, fk := range t.ForeignKeys {
		clauses = append(clauses, fmt.Sprintf("    CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			ForeignKeyName(t.Name, fk.Column), fk.Column, fk.RefTable, fk.RefColumn))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.Name, strings.Join(clauses, ",\n"))
}

// ForeignKeyName derives the constraint name used for a declared foreign key.
func ForeignKeyName(table, column string) string {
	return fmt.Sprintf("fk_%s_%s", table, column)
}
