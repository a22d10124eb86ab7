package table

import "strings"

// Row maps column names to values and remembers insertion order.
// A missing column reads as null. Rows are filled once when built; pipeline
// stages clone before changing anything.
type Row struct {
	keys []string
	vals map[string]Value
}

// NewRow creates an empty row with room for n columns.
func NewRow(n int) *Row {
	return &Row{
		keys: make([]string, 0, n),
		vals: make(map[string]Value, n),
	}
}

// RowOf builds a row from alternating column names and native values:
// RowOf("name", "Atlantic", "voltage", 48.2).
func RowOf(kv ...any) *Row {
	row := NewRow(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		col, _ := kv[i].(string)
		row.Set(col, FromNative(kv[i+1]))
	}
	return row
}

// Set stores a value, appending the column if it is new.
func (r *Row) Set(col string, v Value) {
	if _, ok := r.vals[col]; !ok {
		r.keys = append(r.keys, col)
	}
	r.vals[col] = v
}

// Get returns the value for col, or null if the row has no such column.
func (r *Row) Get(col string) Value {
	if r == nil {
		return Null()
	}
	v, ok := r.vals[col]
	if !ok {
		return Null()
	}
	return v
}

// Lookup is Get that also reports whether the column exists.
func (r *Row) Lookup(col string) (Value, bool) {
	if r == nil {
		return Null(), false
	}
	v, ok := r.vals[col]
	return v, ok
}

// Has reports whether the row carries col.
func (r *Row) Has(col string) bool {
	_, ok := r.Lookup(col)
	return ok
}

// Keys returns the column names in insertion order.
func (r *Row) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of columns.
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns an independent copy of the row.
func (r *Row) Clone() *Row {
	out := NewRow(r.Len())
	if r == nil {
		return out
	}
	for _, k := range r.keys {
		out.Set(k, r.vals[k])
	}
	return out
}

// Native converts the row into a plain map for encoders.
func (r *Row) Native() map[string]any {
	out := make(map[string]any, r.Len())
	for _, k := range r.Keys() {
		out[k] = r.vals[k].Native()
	}
	return out
}

func (r *Row) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range r.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(":")
		sb.WriteString(r.vals[k].AsString())
	}
	sb.WriteString("}")
	return sb.String()
}
