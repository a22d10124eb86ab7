package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueType represents the type of a Value.
type ValueType int

const (
	TypeNull ValueType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
	TypeTime
	TypeList // aggregation result (make_list, make_set)
)

var typeNames = map[ValueType]string{
	TypeNull: "null", TypeInt: "long", TypeFloat: "real", TypeString: "string",
	TypeBool: "bool", TypeTime: "datetime", TypeList: "dynamic",
}

func (t ValueType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// TimeFormat is the layout used when a time value is rendered as text.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Value is a dynamically-typed cell in a table.
type Value struct {
	Type  ValueType
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Time  time.Time
	List  []Value
}

// Null returns a null value.
func Null() Value {
	return Value{Type: TypeNull}
}

// IntVal creates an integer value.
func IntVal(v int64) Value {
	return Value{Type: TypeInt, Int: v}
}

// FloatVal creates a float value.
func FloatVal(v float64) Value {
	return Value{Type: TypeFloat, Float: v}
}

// StrVal creates a string value.
func StrVal(v string) Value {
	return Value{Type: TypeString, Str: v}
}

// BoolVal creates a boolean value.
func BoolVal(v bool) Value {
	return Value{Type: TypeBool, Bool: v}
}

// TimeVal creates a timestamp value.
func TimeVal(v time.Time) Value {
	return Value{Type: TypeTime, Time: v}
}

// ListVal creates a list value.
func ListVal(vs []Value) Value {
	return Value{Type: TypeList, List: vs}
}

// IsNull returns true if the value is null.
func (v Value) IsNull() bool {
	return v.Type == TypeNull
}

// AsFloat returns the value as float64 when it is an int or float.
func (v Value) AsFloat() (float64, bool) {
	switch v.Type {
	case TypeInt:
		return float64(v.Int), true
	case TypeFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// ToFloat is AsFloat that also parses numeric strings.
func (v Value) ToFloat() (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if v.Type != TypeString {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the textual timestamp forms accepted in rows and literals.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AsTime coerces the value to a point in time. Strings are parsed, numbers
// are read as Unix milliseconds.
func (v Value) AsTime() (time.Time, bool) {
	switch v.Type {
	case TypeTime:
		return v.Time, true
	case TypeString:
		return ParseTime(v.Str)
	case TypeInt:
		return time.UnixMilli(v.Int), true
	case TypeFloat:
		return time.UnixMilli(int64(v.Float)), true
	default:
		return time.Time{}, false
	}
}

// AsString returns the string representation.
func (v Value) AsString() string {
	switch v.Type {
	case TypeNull:
		return "null"
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case TypeString:
		return v.Str
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeTime:
		return v.Time.Format(TimeFormat)
	case TypeList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.AsString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}

// AsBool coerces to boolean. Strings "true"/"false" are accepted.
func (v Value) AsBool() (bool, bool) {
	switch v.Type {
	case TypeBool:
		return v.Bool, true
	case TypeString:
		switch strings.ToLower(v.Str) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// Native converts the value into a plain Go value for encoders.
func (v Value) Native() any {
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeString:
		return v.Str
	case TypeBool:
		return v.Bool
	case TypeTime:
		return v.Time.Format(TimeFormat)
	case TypeList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative wraps a plain Go value. Unknown types are stringified.
func FromNative(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case int:
		return IntVal(int64(val))
	case int32:
		return IntVal(int64(val))
	case int64:
		return IntVal(val)
	case uint32:
		return IntVal(int64(val))
	case float32:
		return FloatVal(float64(val))
	case float64:
		return FloatVal(val)
	case string:
		return StrVal(val)
	case bool:
		return BoolVal(val)
	case time.Time:
		return TimeVal(val)
	case []Value:
		return ListVal(val)
	case []any:
		vs := make([]Value, len(val))
		for i, e := range val {
			vs[i] = FromNative(e)
		}
		return ListVal(vs)
	default:
		return StrVal(fmt.Sprintf("%v", val))
	}
}

// Table is a named, ordered sequence of rows plus its schema column order.
type Table struct {
	Name    string
	Columns []string
	Rows    []*Row
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		Rows:    nil,
	}
}

// ColIndex returns the index of a column by name, or -1.
func (t *Table) ColIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddRow appends a row built from values given in column order.
func (t *Table) AddRow(values []Value) {
	row := NewRow(len(t.Columns))
	for i, c := range t.Columns {
		if i < len(values) {
			row.Set(c, values[i])
		} else {
			row.Set(c, Null())
		}
	}
	t.Rows = append(t.Rows, row)
}

// Append adds an already built row.
func (t *Table) Append(row *Row) {
	t.Rows = append(t.Rows, row)
}

// Get returns the value at a given row and column name.
func (t *Table) Get(row int, col string) Value {
	if row < 0 || row >= len(t.Rows) {
		return Null()
	}
	return t.Rows[row].Get(col)
}

// Clone creates a deep copy of the table structure.
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	rows := make([]*Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone()
	}
	return &Table{Name: t.Name, Columns: cols, Rows: rows}
}
