// Package schema holds the declarative table definitions the engine manages:
// column descriptors, index and foreign-key declarations, the model registry
// with dependency ordering, and the PostgreSQL DDL generator. The migration
// pipeline in pkg/migrate consumes these definitions; nothing in this package
// touches the database.
package schema

import (
	"fmt"
	"strconv"
)

// Kind is the semantic column type, independent of any SQL dialect.
// The DDL generator maps each kind to a concrete PostgreSQL type.
type Kind string

const (
	KindString   Kind = "string"
	KindText     Kind = "text"
	KindInteger  Kind = "integer"
	KindBigInt   Kind = "bigint"
	KindSmallInt Kind = "smallint"
	KindFloat    Kind = "float"
	KindNumeric  Kind = "numeric"
	KindBoolean  Kind = "boolean"
	KindDateTime Kind = "datetime"
	KindDate     Kind = "date"
	KindTime     Kind = "time"
	KindBinary   Kind = "binary"
	KindJSON     Kind = "json"
	KindUUID     Kind = "uuid"
	KindVector   Kind = "vector"
)

// Column describes a single column of a managed table.
type Column struct {
	Name string
	Kind Kind

	// Length applies to KindString (VARCHAR(n)); zero renders bare VARCHAR.
	Length int

	// Precision and Scale apply to KindNumeric; zero precision renders bare NUMERIC.
	Precision int
	Scale     int

	// Dimensions applies to KindVector (VECTOR(n)).
	Dimensions int

	Nullable   bool
	PrimaryKey bool

	// Default is nil when the column has no default.
	Default *Default
}

// Default describes a column default value. A static default renders as a SQL
// DEFAULT clause; a dynamic default is computed in-process at insert time and
// produces no DEFAULT clause, since the generator function cannot be pushed
// into the database.
type Default struct {
	// Value is the static literal: string, bool, int, int64, or float64.
	Value any

	// Dynamic, when set, marks the default as computed by application code.
	// Value is ignored and no DEFAULT clause is rendered.
	Dynamic func() any
}

// StaticDefault declares a default rendered as a SQL literal.
func StaticDefault(value any) *Default {
	return &Default{Value: value}
}

// DynamicDefault declares a default computed in-process at insert time.
func DynamicDefault(fn func() any) *Default {
	return &Default{Dynamic: fn}
}

// IsDynamic reports whether the default is computed by application code.
func (d *Default) IsDynamic() bool {
	return d != nil && d.Dynamic != nil
}

// Literal renders the static default as a SQL literal. The second return is
// false for dynamic defaults, which have no SQL representation.
func (d *Default) Literal() (string, bool) {
	if d == nil || d.IsDynamic() {
		return "", false
	}

	switch v := d.Value.(type) {
	case bool:
		if v {
			return "TRUE", true
		}
		return "FALSE", true
	case string:
		return quoteLiteral(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	default:
		// Unrecognized default values cannot be rendered safely; treat them
		// like dynamic defaults and omit the clause.
		return "", false
	}
}

// quoteLiteral single-quotes a string for use in DDL, doubling embedded quotes.
func quoteLiteral(s string) string {
	quoted := make([]byte, 0, len(s)+2)
	quoted = append(quoted, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			quoted = append(quoted, '\'', '\'')
		} else {
			quoted = append(quoted, s[i])
		}
	}
	quoted = append(quoted, '\'')
	return string(quoted)
}

// String implements fmt.Stringer for log output.
func (c Column) String() string {
	return fmt.Sprintf("%s %s", c.Name, c.Kind)
}
