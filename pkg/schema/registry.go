package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
)

// identifierPattern is the shape every table, column, and index name must
// have. Definitions are declared in code, not taken from user input, so a
// registration-time check is enough to keep generated DDL unambiguous
// without identifier quoting.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Registry holds the ordered set of managed table definitions. Registration
// order is preserved, but Ordered re-sorts by declared foreign-key
// dependencies so a table is always processed after every table it
// references, regardless of how callers registered them.
type Registry struct {
	tables []*Table
	byName map[string]*Table
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Table),
	}
}

// Register adds a table definition. When the table name is empty it is
// derived from the model name (snake_case, pluralized), so a model named
// "DocumentChunk" manages the table "document_chunks". Duplicate names and
// malformed identifiers are rejected.
func (r *Registry) Register(t *Table) error {
	if t == nil {
		return fmt.Errorf("cannot register nil table")
	}

	if t.Name == "" {
		if t.Model == "" {
			return fmt.Errorf("table definition needs a name or a model name")
		}
		t.Name = inflection.Plural(toSnakeCase(t.Model))
	}

	if !identifierPattern.MatchString(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("table %q is already registered", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if !identifierPattern.MatchString(col.Name) {
			return fmt.Errorf("table %q: invalid column name %q", t.Name, col.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("table %q: duplicate column %q", t.Name, col.Name)
		}
		seen[col.Name] = true
	}

	for _, idx := range t.Indexes {
		if !identifierPattern.MatchString(idx.Name) {
			return fmt.Errorf("table %q: invalid index name %q", t.Name, idx.Name)
		}
		if len(idx.Columns) == 0 {
			return fmt.Errorf("table %q: index %q has no columns", t.Name, idx.Name)
		}
		for _, col := range idx.Columns {
			if !seen[col] {
				return fmt.Errorf("table %q: index %q references unknown column %q", t.Name, idx.Name, col)
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		if !seen[fk.Column] {
			return fmt.Errorf("table %q: foreign key on unknown column %q", t.Name, fk.Column)
		}
		if !identifierPattern.MatchString(fk.RefTable) || !identifierPattern.MatchString(fk.RefColumn) {
			return fmt.Errorf("table %q: invalid foreign key target %s.%s", t.Name, fk.RefTable, fk.RefColumn)
		}
	}

	r.tables = append(r.tables, t)
	r.byName[t.Name] = t
	return nil
}

// Get returns the definition for a table name.
func (r *Registry) Get(name string) (*Table, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	return len(r.tables)
}

// Tables returns the definitions in registration order.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, len(r.tables))
	copy(out, r.tables)
	return out
}

// Ordered returns the definitions sorted so that every table appears after
// all tables it references via foreign keys (Kahn's algorithm). Registration
// order breaks ties, so the output is deterministic. Foreign keys pointing
// at unregistered tables and reference cycles are errors: running DDL out of
// dependency order fails when a referenced table does not exist yet.
func (r *Registry) Ordered() ([]*Table, error) {
	indegree := make(map[string]int, len(r.tables))
	dependents := make(map[string][]string, len(r.tables))

	for _, t := range r.tables {
		if _, ok := indegree[t.Name]; !ok {
			indegree[t.Name] = 0
		}
		for _, ref := range t.References() {
			if _, ok := r.byName[ref]; !ok {
				return nil, fmt.Errorf("table %q references unregistered table %q", t.Name, ref)
			}
			indegree[t.Name]++
			dependents[ref] = append(dependents[ref], t.Name)
		}
	}

	ordered := make([]*Table, 0, len(r.tables))
	placed := make(map[string]bool, len(r.tables))

	for len(ordered) < len(r.tables) {
		progressed := false
		// Scan in registration order so ties resolve deterministically.
		for _, t := range r.tables {
			if placed[t.Name] || indegree[t.Name] != 0 {
				continue
			}
			ordered = append(ordered, t)
			placed[t.Name] = true
			progressed = true
			for _, dep := range dependents[t.Name] {
				indegree[dep]--
			}
		}
		if !progressed {
			var remaining []string
			for _, t := range r.tables {
				if !placed[t.Name] {
					remaining = append(remaining, t.Name)
				}
			}
			return nil, fmt.Errorf("foreign key cycle among tables: %s", strings.Join(remaining, ", "))
		}
	}

	return ordered, nil
}

// toSnakeCase converts a CamelCase model name to snake_case.
func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := rune(name[i-1])
				if prev < 'A' || prev > 'Z' {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
