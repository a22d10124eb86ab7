package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/razeghi71/kqlmock/ast"
	"github.com/razeghi71/kqlmock/table"
)

func (x *execution) execSummarize(o *ast.SummarizeOp, rows []*table.Row) ([]*table.Row, error) {
	if len(o.GroupBy) == 0 {
		out := table.NewRow(len(o.Aggregations))
		if err := x.aggregateInto(out, o.Aggregations, rows); err != nil {
			return nil, err
		}
		return []*table.Row{out}, nil
	}

	// Build groups preserving first-seen order
	type groupEntry struct {
		key  []table.Value
		rows []*table.Row
	}
	var groups []*groupEntry
	keyMap := make(map[string]*groupEntry)

	for _, row := range rows {
		keyVals := make([]table.Value, len(o.GroupBy))
		keyParts := make([]string, len(o.GroupBy))
		for i, g := range o.GroupBy {
			v := row.Get(g.Field)
			if g.Bin != nil {
				v = binValue(v, g.Bin.Interval)
			}
			keyVals[i] = v
			keyParts[i] = v.Type.String() + ":" + v.AsString()
		}
		keyStr := strings.Join(keyParts, "\x00")

		g, ok := keyMap[keyStr]
		if !ok {
			g = &groupEntry{key: keyVals}
			groups = append(groups, g)
			keyMap[keyStr] = g
		}
		g.rows = append(g.rows, row)
	}

	out := make([]*table.Row, 0, len(groups))
	for _, g := range groups {
		r := table.NewRow(len(o.GroupBy) + len(o.Aggregations))
		for i, k := range o.GroupBy {
			r.Set(k.Name, g.key[i])
		}
		if err := x.aggregateInto(r, o.Aggregations, g.rows); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	first := o.GroupBy[0].Name
	sort.SliceStable(out, func(i, j int) bool {
		return compareValues(out[i].Get(first), out[j].Get(first)) < 0
	})
	return out, nil
}

func (x *execution) aggregateInto(out *table.Row, specs []ast.AggSpec, rows []*table.Row) error {
	for _, spec := range specs {
		v, err := x.aggregate(spec, rows)
		if err != nil {
			return err
		}
		out.Set(spec.Name, v)
	}
	return nil
}

// aggregate evaluates one aggregation over a group of rows.
func (x *execution) aggregate(spec ast.AggSpec, rows []*table.Row) (table.Value, error) {
	switch spec.Func {
	case "count":
		return table.IntVal(int64(len(rows))), nil
	case "countif":
		return x.aggCountIf(spec, rows)
	case "sum":
		return aggSum(numbers(rows, spec.Field)), nil
	case "avg":
		nums := numbers(rows, spec.Field)
		if len(nums) == 0 {
			return table.FloatVal(0), nil
		}
		return table.FloatVal(sumOf(nums) / float64(len(nums))), nil
	case "min":
		return aggExtreme(rows, spec.Field, -1), nil
	case "max":
		return aggExtreme(rows, spec.Field, 1), nil
	case "dcount":
		return aggDCount(rows, spec.Field), nil
	case "percentile":
		return x.aggPercentile(spec, rows)
	case "stdev":
		return aggStdev(numbers(rows, spec.Field)), nil
	case "make_list":
		return aggMakeList(rows, spec.Field, false), nil
	case "make_set":
		return aggMakeList(rows, spec.Field, true), nil
	}
	if x.opts.Strict {
		return table.Null(), strictErr("unknown aggregate %q", spec.Text)
	}
	x.log.Warn("unknown aggregate", "aggregate", spec.Text)
	return table.Null(), nil
}

// number is a numeric cell together with its original value.
type number struct {
	f float64
	v table.Value
}

// numbers collects the numeric-parseable values of field, in row order.
func numbers(rows []*table.Row, field string) []number {
	var out []number
	for _, row := range rows {
		v := row.Get(field)
		if f, ok := v.ToFloat(); ok && !math.IsNaN(f) {
			out = append(out, number{f: f, v: v})
		}
	}
	return out
}

func sumOf(nums []number) float64 {
	var s float64
	for _, n := range nums {
		s += n.f
	}
	return s
}

func aggSum(nums []number) table.Value {
	allInt := true
	for _, n := range nums {
		if n.v.Type != table.TypeInt {
			allInt = false
			break
		}
	}
	if allInt {
		var s int64
		for _, n := range nums {
			s += n.v.Int
		}
		return table.IntVal(s)
	}
	return table.FloatVal(sumOf(nums))
}

// aggExtreme returns the smallest (dir < 0) or largest (dir > 0) numeric
// value. With no numeric values it falls back to timestamps, then null.
func aggExtreme(rows []*table.Row, field string, dir int) table.Value {
	nums := numbers(rows, field)
	if len(nums) > 0 {
		best := nums[0]
		for _, n := range nums[1:] {
			if (dir < 0 && n.f < best.f) || (dir > 0 && n.f > best.f) {
				best = n
			}
		}
		return best.v
	}

	best := table.Null()
	for _, row := range rows {
		v := row.Get(field)
		if v.Type != table.TypeTime {
			continue
		}
		if best.IsNull() || v.Time.Compare(best.Time) == dir {
			best = v
		}
	}
	return best
}

func aggDCount(rows []*table.Row, field string) table.Value {
	seen := make(map[string]bool)
	for _, row := range rows {
		v := row.Get(field)
		if !v.IsNull() {
			seen[v.AsString()] = true
		}
	}
	return table.IntVal(int64(len(seen)))
}

func (x *execution) aggPercentile(spec ast.AggSpec, rows []*table.Row) (table.Value, error) {
	if len(spec.Args) != 2 {
		return x.badAggregate(spec, "percentile() takes 2 arguments, got %d", len(spec.Args))
	}
	p, err := strconv.ParseFloat(spec.Args[1], 64)
	if err != nil {
		return x.badAggregate(spec, "percentile(): %q is not a number", spec.Args[1])
	}
	nums := numbers(rows, spec.Field)
	if len(nums) == 0 {
		return table.Null(), nil
	}
	sort.SliceStable(nums, func(i, j int) bool { return nums[i].f < nums[j].f })
	idx := int(math.Floor(p / 100 * float64(len(nums)-1)))
	idx = max(0, min(idx, len(nums)-1))
	return nums[idx].v, nil
}

// aggStdev is the population standard deviation.
func aggStdev(nums []number) table.Value {
	if len(nums) <= 1 {
		return table.FloatVal(0)
	}
	mean := sumOf(nums) / float64(len(nums))
	var ss float64
	for _, n := range nums {
		d := n.f - mean
		ss += d * d
	}
	return table.FloatVal(math.Sqrt(ss / float64(len(nums))))
}

func aggMakeList(rows []*table.Row, field string, dedup bool) table.Value {
	seen := make(map[string]bool)
	list := []table.Value{}
	for _, row := range rows {
		v := row.Get(field)
		if v.IsNull() {
			continue
		}
		if dedup {
			k := v.AsString()
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		list = append(list, v)
	}
	return table.ListVal(list)
}

func (x *execution) aggCountIf(spec ast.AggSpec, rows []*table.Row) (table.Value, error) {
	var n int64
	for _, row := range rows {
		ok, err := x.test(spec.Cond, row)
		if err != nil {
			return table.Null(), err
		}
		if ok {
			n++
		}
	}
	return table.IntVal(n), nil
}

// badAggregate reports a malformed aggregation: an error in strict mode,
// null otherwise.
func (x *execution) badAggregate(spec ast.AggSpec, format string, args ...any) (table.Value, error) {
	msg := fmt.Sprintf(format, args...)
	if x.opts.Strict {
		return table.Null(), strictErr("%s", msg)
	}
	x.log.Warn("malformed aggregate", "aggregate", spec.Text, "reason", msg)
	return table.Null(), nil
}
