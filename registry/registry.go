package registry

import (
	"context"
	"errors"
	"sort"

	"github.com/razeghi71/kqlmock/table"
)

// ErrUnknownTable matches any *UnknownTableError with errors.Is.
var ErrUnknownTable = errors.New("unknown table")

// UnknownTableError reports a table name the registry does not hold.
type UnknownTableError struct {
	Name string
}

func (e *UnknownTableError) Error() string {
	return "unknown table: " + e.Name
}

func (e *UnknownTableError) Is(target error) bool {
	return target == ErrUnknownTable
}

// Resolver provides the rows of a named table.
type Resolver interface {
	Resolve(ctx context.Context, name string) ([]*table.Row, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, name string) ([]*table.Row, error)

func (f ResolverFunc) Resolve(ctx context.Context, name string) ([]*table.Row, error) {
	return f(ctx, name)
}

// Column is one column of a table schema.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema describes a table's columns.
type Schema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// Registry is an immutable set of named tables. It is safe for concurrent
// use; Resolve hands out copies so callers cannot reach the stored rows.
type Registry struct {
	tables map[string]*table.Table
	names  []string
}

// New builds a registry. A later table replaces an earlier one of the same name.
func New(tables ...*table.Table) *Registry {
	r := &Registry{tables: make(map[string]*table.Table, len(tables))}
	for _, t := range tables {
		if t == nil {
			continue
		}
		if _, dup := r.tables[t.Name]; !dup {
			r.names = append(r.names, t.Name)
		}
		r.tables[t.Name] = t.Clone()
	}
	sort.Strings(r.names)
	return r
}

// Resolve returns a fresh copy of the named table's rows. Names match exactly.
func (r *Registry) Resolve(_ context.Context, name string) ([]*table.Row, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, &UnknownTableError{Name: name}
	}
	rows := make([]*table.Row, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = row.Clone()
	}
	return rows, nil
}

// Table returns a copy of the named table.
func (r *Registry) Table(name string) (*table.Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, &UnknownTableError{Name: name}
	}
	return t.Clone(), nil
}

// Names returns the table names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Schema describes one table. A column's type is that of its first non-null
// value; columns with no values are reported as string.
func (r *Registry) Schema(name string) (Schema, error) {
	t, ok := r.tables[name]
	if !ok {
		return Schema{}, &UnknownTableError{Name: name}
	}
	return schemaOf(t), nil
}

// Schemas describes every table, sorted by name.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, schemaOf(r.tables[name]))
	}
	return out
}

func schemaOf(t *table.Table) Schema {
	s := Schema{Table: t.Name}
	for _, col := range columnsOf(t) {
		typ := table.TypeString
		for _, row := range t.Rows {
			if v := row.Get(col); !v.IsNull() {
				typ = v.Type
				break
			}
		}
		s.Columns = append(s.Columns, Column{Name: col, Type: typ.String()})
	}
	return s
}

// columnsOf returns the declared columns, or the first row's keys when the
// table was built without a column list.
func columnsOf(t *table.Table) []string {
	if len(t.Columns) > 0 || len(t.Rows) == 0 {
		return t.Columns
	}
	return t.Rows[0].Keys()
}
