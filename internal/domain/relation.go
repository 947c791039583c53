package domain

import "fmt"

// Row holds one relation row keyed by column name.
type Row map[string]any

// Relation is an ordered sequence of uniformly-shaped rows with named
// columns. The column set is validated when the relation is constructed and
// every appended row is checked against it, so downstream consumers can index
// columns without re-validating. Producers treat a relation as immutable once
// handed off.
type Relation struct {
	Name    string
	Columns []string
	Rows    []Row
}

// SchemaMismatchError reports a relation missing an expected column.
type SchemaMismatchError struct {
	Relation string
	Column   string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("relation %s is missing column %s", e.Relation, e.Column)
}

// NewRelation creates an empty relation after validating the column set.
func NewRelation(name string, columns []string) (Relation, error) {
	if len(columns) == 0 {
		return Relation{}, fmt.Errorf("relation %s requires at least one column", name)
	}
	seen := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		if column == "" {
			return Relation{}, fmt.Errorf("relation %s has an empty column name", name)
		}
		if _, ok := seen[column]; ok {
			return Relation{}, fmt.Errorf("relation %s has duplicate column %s", name, column)
		}
		seen[column] = struct{}{}
	}
	return Relation{
		Name:    name,
		Columns: append([]string(nil), columns...),
	}, nil
}

// HasColumn reports whether the relation declares the named column.
func (r Relation) HasColumn(name string) bool {
	for _, column := range r.Columns {
		if column == name {
			return true
		}
	}
	return false
}

// Append adds a row after checking it only uses declared columns. Missing
// columns are allowed and read back as nil.
func (r *Relation) Append(row Row) error {
	for key := range row {
		if !r.HasColumn(key) {
			return fmt.Errorf("relation %s does not declare column %s", r.Name, key)
		}
	}
	copied := make(Row, len(row))
	for key, value := range row {
		copied[key] = value
	}
	r.Rows = append(r.Rows, copied)
	return nil
}

// Project returns the row's values in the given column order.
func (r Relation) Project(row Row, columns []string) []any {
	values := make([]any, len(columns))
	for i, column := range columns {
		values[i] = row[column]
	}
	return values
}

// Clone returns a deep copy so callers can hand out relations without
// aliasing hazards.
func (r Relation) Clone() Relation {
	clone := Relation{
		Name:    r.Name,
		Columns: append([]string(nil), r.Columns...),
		Rows:    make([]Row, 0, len(r.Rows)),
	}
	for _, row := range r.Rows {
		copied := make(Row, len(row))
		for key, value := range row {
			copied[key] = value
		}
		clone.Rows = append(clone.Rows, copied)
	}
	return clone
}
