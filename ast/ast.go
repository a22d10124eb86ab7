package ast

import "time"

// --- Conditions (where clauses) ---

// Cond is a node of a parsed filter condition.
type Cond interface {
	condNode()
}

// OrCond is satisfied when any term is.
type OrCond struct {
	Terms []Cond
}

func (c *OrCond) condNode() {}

// AndCond is satisfied when every term is.
type AndCond struct {
	Terms []Cond
}

func (c *AndCond) condNode() {}

// NotCond negates its operand.
type NotCond struct {
	Operand Cond
}

func (c *NotCond) condNode() {}

// GroupCond is a parenthesized condition.
type GroupCond struct {
	Inner Cond
}

func (c *GroupCond) condNode() {}

// EqualityCond is a case-insensitive string equality: field == "text".
type EqualityCond struct {
	Field   string
	Text    string
	Negated bool // != or !~
}

func (c *EqualityCond) condNode() {}

// ComparisonCond is a numeric comparison: field op value.
type ComparisonCond struct {
	Field string
	Op    string // ==, !=, <, >, <=, >=
	Value string // raw right hand side, parsed as a number at evaluation
}

func (c *ComparisonCond) condNode() {}

// MembershipCond is field in (v1, v2, ...).
type MembershipCond struct {
	Field   string
	Values  []string
	Negated bool // !in
}

func (c *MembershipCond) condNode() {}

// StringMatchCond is a case-insensitive substring, prefix or suffix test.
type StringMatchCond struct {
	Field   string
	Op      string // contains, has, startswith, endswith
	Text    string
	Negated bool
}

func (c *StringMatchCond) condNode() {}

// NullCheckCond is field is null / field is not null.
type NullCheckCond struct {
	Field   string
	Negated bool // is not null
	Empty   bool // isempty(): an empty string also counts as null
}

func (c *NullCheckCond) condNode() {}

// TimeCond compares a field as a point in time. For Op "between" the field
// must fall in [Value, Upper].
type TimeCond struct {
	Field   string
	Op      string // ==, !=, <, >, <=, >=, between
	Value   *TimeExpr
	Upper   *TimeExpr
	Negated bool // !between
}

func (c *TimeCond) condNode() {}

// TruthyCond is a bare field used as a boolean.
type TruthyCond struct {
	Field string
}

func (c *TruthyCond) condNode() {}

// UnrecognizedCond is a predicate no rule matched.
type UnrecognizedCond struct {
	Text   string
	Reason string
}

func (c *UnrecognizedCond) condNode() {}

// TimeExpr is a time-valued function: ago(2h), now(), startofday(ago(1d)),
// datetime(2024-01-01).
type TimeExpr struct {
	Func   string // ago, now, startofday, endofday, startofweek, startofmonth, datetime
	Offset time.Duration
	Arg    *TimeExpr
	At     time.Time
}

// --- Summarize pieces ---

// AggSpec is one aggregation of a summarize: avg(voltage), n = count().
type AggSpec struct {
	Text  string // as written (without the alias)
	Name  string // output column: alias or Text
	Func  string // lower-cased function name
	Args  []string
	Field string // first argument, if any
	Cond  Cond   // countif predicate
}

// GroupKey is one element of a summarize's by clause.
type GroupKey struct {
	Text  string
	Name  string // output column
	Field string
	Bin   *BinExpr
}

// IntervalUnit is the unit of a bin interval.
type IntervalUnit byte

const (
	UnitNone   IntervalUnit = 0 // numeric interval
	UnitDay    IntervalUnit = 'd'
	UnitHour   IntervalUnit = 'h'
	UnitMinute IntervalUnit = 'm'
	UnitSecond IntervalUnit = 's'
)

// Interval is a bin size: either a count of a time unit or a plain number.
type Interval struct {
	Unit  IntervalUnit
	Count float64 // number of units, or the numeric bin size when Unit is UnitNone
}

// Duration returns the interval as a time.Duration (zero for numeric ones).
func (i Interval) Duration() time.Duration {
	switch i.Unit {
	case UnitDay:
		return time.Duration(i.Count * float64(24*time.Hour))
	case UnitHour:
		return time.Duration(i.Count * float64(time.Hour))
	case UnitMinute:
		return time.Duration(i.Count * float64(time.Minute))
	case UnitSecond:
		return time.Duration(i.Count * float64(time.Second))
	}
	return 0
}

// BinExpr is bin(field, interval).
type BinExpr struct {
	Text     string
	Field    string
	Interval Interval
}

// --- Operations (pipeline stages) ---

// Op represents a single operation in the pipeline.
type Op interface {
	opNode()
	// Source returns the stage text the op was parsed from.
	Source() string
}

// Stage carries the raw text of a pipeline stage.
type Stage struct {
	Text string
}

func (s Stage) Source() string { return s.Text }

// FilterOp keeps rows matching a condition.
type FilterOp struct {
	Stage
	Condition string
	Cond      Cond
}

func (o *FilterOp) opNode() {}

// ProjectColumn is one projected column, optionally renamed: name = source.
type ProjectColumn struct {
	Name   string
	Source string
}

// ProjectOp keeps the named columns in the given order.
type ProjectOp struct {
	Stage
	Columns []ProjectColumn
}

func (o *ProjectOp) opNode() {}

// ProjectAwayOp removes columns.
type ProjectAwayOp struct {
	Stage
	Columns []string
}

func (o *ProjectAwayOp) opNode() {}

// SummarizeOp aggregates rows, optionally grouped.
type SummarizeOp struct {
	Stage
	Aggregations []AggSpec
	GroupBy      []GroupKey
}

func (o *SummarizeOp) opNode() {}

// Assignment is "col = expr" in extend. Terms is set when expr is a
// +-joined sum.
type Assignment struct {
	Column string
	Expr   string
	Terms  []string
}

// ExtendOp adds computed columns.
type ExtendOp struct {
	Stage
	Assignments []Assignment
	Invalid     []string // assignments with no '='
}

func (o *ExtendOp) opNode() {}

// DistinctOp drops rows whose key columns were already seen.
type DistinctOp struct {
	Stage
	Columns []string // empty = all columns
}

func (o *DistinctOp) opNode() {}

// OrderBy is a single sort key.
type OrderBy struct {
	Field string
	Desc  bool
}

// TopOp returns the first Count rows, sorted first when OrderBy is set.
type TopOp struct {
	Stage
	Count   int
	OrderBy *OrderBy
}

func (o *TopOp) opNode() {}

// SortOp sorts by one field.
type SortOp struct {
	Stage
	OrderBy OrderBy
}

func (o *SortOp) opNode() {}

// BinOp adds a bin_<field> column.
type BinOp struct {
	Stage
	Bin BinExpr
}

func (o *BinOp) opNode() {}

// JoinKeys are the equi-join columns of an on clause.
type JoinKeys struct {
	Left  string
	Right string
}

// JoinOp joins with another registry table.
type JoinOp struct {
	Stage
	Kind      string
	Table     string
	Condition string    // raw on clause, empty when absent
	On        *JoinKeys // nil: cross product
}

func (o *JoinOp) opNode() {}

// UnionOp appends another registry table.
type UnionOp struct {
	Stage
	Table string
}

func (o *UnionOp) opNode() {}

// CountOp returns a single-row table with the row count.
type CountOp struct {
	Stage
}

func (o *CountOp) opNode() {}

// Query represents a full parsed query: table + pipeline of operations.
type Query struct {
	Table   string
	Ops     []Op
	Dropped []string // stage texts that matched no operation
}
