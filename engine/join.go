package engine

import (
	"strconv"

	"github.com/razeghi71/kqlmock/ast"
	"github.com/razeghi71/kqlmock/table"
)

// join kinds after alias resolution
const (
	joinInner     = "inner"
	joinLeft      = "left"
	joinRight     = "right"
	joinFull      = "full"
	joinLeftSemi  = "leftsemi"
	joinLeftAnti  = "leftanti"
	joinRightSemi = "rightsemi"
	joinRightAnti = "rightanti"
)

var joinKinds = map[string]string{
	"inner":         joinInner,
	"innerunique":   joinInner,
	"left":          joinLeft,
	"leftouter":     joinLeft,
	"right":         joinRight,
	"rightouter":    joinRight,
	"full":          joinFull,
	"fullouter":     joinFull,
	"outer":         joinFull,
	"leftsemi":      joinLeftSemi,
	"leftanti":      joinLeftAnti,
	"anti":          joinLeftAnti,
	"leftantisemi":  joinLeftAnti,
	"rightsemi":     joinRightSemi,
	"rightanti":     joinRightAnti,
	"rightantisemi": joinRightAnti,
}

func (x *execution) execJoin(o *ast.JoinOp, left []*table.Row) ([]*table.Row, error) {
	right, err := x.reg.Resolve(x.ctx, o.Table)
	if err != nil {
		return nil, err
	}

	kind, ok := joinKinds[o.Kind]
	if !ok {
		if x.opts.Strict {
			return nil, strictErr("unknown join kind %q", o.Kind)
		}
		x.log.Warn("unknown join kind, using inner", "kind", o.Kind)
		kind = joinInner
	}
	if o.On == nil && o.Condition != "" {
		if x.opts.Strict {
			return nil, strictErr("unsupported join condition %q", o.Condition)
		}
		x.log.Warn("unsupported join condition, using cross product", "condition", o.Condition)
	}

	// Full outer is an alias for left outer unless FullOuterJoin is set.
	if kind == joinFull && !x.opts.FullOuterJoin {
		kind = joinLeft
	}

	j := &joiner{keys: o.On, left: left, right: right}
	switch kind {
	case joinLeftSemi:
		return j.semi(left, j.leftMatches, true), nil
	case joinLeftAnti:
		return j.semi(left, j.leftMatches, false), nil
	case joinRightSemi:
		return j.semi(right, j.rightMatches, true), nil
	case joinRightAnti:
		return j.semi(right, j.rightMatches, false), nil
	case joinRight:
		return j.rightOuter(), nil
	default:
		return j.leftDriven(kind), nil
	}
}

// joiner matches left rows with right rows on the key columns. With no
// keys every row matches every row.
type joiner struct {
	keys  *ast.JoinKeys
	left  []*table.Row
	right []*table.Row

	rightIndex map[string][]int
	leftIndex  map[string][]int
}

// keyOf returns the join key of v and whether it can match at all.
func keyOf(v table.Value) (string, bool) {
	if v.IsNull() {
		return "", false
	}
	return v.AsString(), true
}

func buildIndex(rows []*table.Row, col string) map[string][]int {
	idx := make(map[string][]int)
	for i, row := range rows {
		if k, ok := keyOf(row.Get(col)); ok {
			idx[k] = append(idx[k], i)
		}
	}
	return idx
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// leftMatches returns the indices of right rows matching l.
func (j *joiner) leftMatches(l *table.Row) []int {
	if j.keys == nil {
		return allIndices(len(j.right))
	}
	if j.rightIndex == nil {
		j.rightIndex = buildIndex(j.right, j.keys.Right)
	}
	k, ok := keyOf(l.Get(j.keys.Left))
	if !ok {
		return nil
	}
	return j.rightIndex[k]
}

// rightMatches returns the indices of left rows matching r.
func (j *joiner) rightMatches(r *table.Row) []int {
	if j.keys == nil {
		return allIndices(len(j.left))
	}
	if j.leftIndex == nil {
		j.leftIndex = buildIndex(j.left, j.keys.Left)
	}
	k, ok := keyOf(r.Get(j.keys.Right))
	if !ok {
		return nil
	}
	return j.leftIndex[k]
}

func (j *joiner) semi(rows []*table.Row, matches func(*table.Row) []int, keep bool) []*table.Row {
	var out []*table.Row
	for _, row := range rows {
		if (len(matches(row)) > 0) == keep {
			out = append(out, row)
		}
	}
	return out
}

// leftDriven handles inner, left and full joins in left row order. Full
// appends the right rows nothing matched, paired with a null left record.
func (j *joiner) leftDriven(kind string) []*table.Row {
	var out []*table.Row
	matched := make([]bool, len(j.right))
	nullRight := nullRecord(j.right)
	for _, l := range j.left {
		idx := j.leftMatches(l)
		for _, ri := range idx {
			matched[ri] = true
			out = append(out, j.merge(l, j.right[ri]))
		}
		if len(idx) == 0 && kind != joinInner {
			out = append(out, j.merge(l, nullRight))
		}
	}
	if kind == joinFull {
		nullLeft := nullRecord(j.left)
		for ri, r := range j.right {
			if !matched[ri] {
				out = append(out, j.merge(nullLeft, r))
			}
		}
	}
	return out
}

// rightOuter mirrors the left outer join: every right row appears at least
// once, in right row order.
func (j *joiner) rightOuter() []*table.Row {
	var out []*table.Row
	nullLeft := nullRecord(j.left)
	for _, r := range j.right {
		idx := j.rightMatches(r)
		for _, li := range idx {
			out = append(out, j.merge(j.left[li], r))
		}
		if len(idx) == 0 {
			out = append(out, j.merge(nullLeft, r))
		}
	}
	return out
}

// merge builds the joined row: the left columns, then the right ones. A
// shared key column is kept once with its first non-null value; any other
// right column whose name is taken gets a numeric suffix.
func (j *joiner) merge(l, r *table.Row) *table.Row {
	out := table.NewRow(l.Len() + r.Len())
	for _, k := range l.Keys() {
		out.Set(k, l.Get(k))
	}
	for _, k := range r.Keys() {
		v := r.Get(k)
		if j.keys != nil && j.keys.Left == j.keys.Right && k == j.keys.Right {
			if out.Get(k).IsNull() {
				out.Set(k, v)
			}
			continue
		}
		name := k
		for n := 1; out.Has(name); n++ {
			name = k + strconv.Itoa(n)
		}
		out.Set(name, v)
	}
	return out
}

// nullRecord is an all-null row shaped like the first of rows, or an empty
// row when there are none.
func nullRecord(rows []*table.Row) *table.Row {
	if len(rows) == 0 {
		return table.NewRow(0)
	}
	keys := rows[0].Keys()
	out := table.NewRow(len(keys))
	for _, k := range keys {
		out.Set(k, table.Null())
	}
	return out
}
