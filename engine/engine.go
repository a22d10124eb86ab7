package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/razeghi71/kqlmock/ast"
	"github.com/razeghi71/kqlmock/logging"
	"github.com/razeghi71/kqlmock/metrics"
	"github.com/razeghi71/kqlmock/parser"
	"github.com/razeghi71/kqlmock/registry"
	"github.com/razeghi71/kqlmock/table"
)

// ErrStrict is wrapped by every error that only strict mode raises.
var ErrStrict = errors.New("strict mode")

func strictErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStrict, fmt.Sprintf(format, args...))
}

// Options configures an Engine. The zero value is the lenient engine with
// no simulated latency.
type Options struct {
	// Strict turns fail-open situations into errors wrapping ErrStrict.
	Strict bool
	// FullOuterJoin makes kind=full a real full outer join instead of an
	// alias for left outer.
	FullOuterJoin bool
	// Now is the clock used by ago(), now() and friends. Defaults to time.Now.
	Now func() time.Time
	// LatencyMin and LatencyMax bound the simulated round trip Run waits
	// for before executing.
	LatencyMin time.Duration
	LatencyMax time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Result is the output of a query: the rows plus the column list, taken
// from the key set of the first row.
type Result struct {
	Columns []string
	Rows    []*table.Row
}

func newResult(rows []*table.Row) *Result {
	res := &Result{Columns: []string{}, Rows: rows}
	if len(rows) > 0 {
		res.Columns = rows[0].Keys()
	}
	return res
}

// Engine runs queries against a registry. It holds no per-query state and
// is safe for concurrent use.
type Engine struct {
	reg  registry.Resolver
	opts Options
	log  *slog.Logger
}

// New creates an engine over reg.
func New(reg registry.Resolver, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{reg: reg, opts: opts, log: log}
}

// Run parses and executes one query, after waiting out the simulated
// latency. The wait ends early if ctx is done.
func (e *Engine) Run(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	log := e.log.With("query_id", uuid.NewString())

	q := parser.Parse(text)
	log.Debug("query parsed", "table", q.Table, "ops", len(q.Ops))

	res, stats, err := e.run(ctx, q, log)
	elapsed := time.Since(start)

	e.opts.Metrics.AddDropped(len(q.Dropped))
	e.opts.Metrics.AddFailOpen(stats.failOpen)
	if err != nil {
		e.opts.Metrics.ObserveQuery(outcome(err), elapsed, 0)
		log.Info("query failed", "table", q.Table, "duration", elapsed, "error", err)
		return nil, err
	}
	e.opts.Metrics.ObserveQuery(metrics.OutcomeOK, elapsed, len(res.Rows))
	log.Info("query done", "table", q.Table, "rows", len(res.Rows), "duration", elapsed)
	return res, nil
}

func (e *Engine) run(ctx context.Context, q *ast.Query, log *slog.Logger) (*Result, *execution, error) {
	x := e.newExecution(ctx, log)
	if err := e.wait(ctx); err != nil {
		return nil, x, err
	}
	res, err := x.execute(q)
	return res, x, err
}

// Execute runs an already parsed query without simulated latency.
func (e *Engine) Execute(ctx context.Context, q *ast.Query) (*Result, error) {
	return e.newExecution(ctx, e.log).execute(q)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, registry.ErrUnknownTable):
		return metrics.OutcomeUnknownTable
	case errors.Is(err, ErrStrict):
		return metrics.OutcomeStrict
	default:
		return metrics.OutcomeError
	}
}

func (e *Engine) wait(ctx context.Context) error {
	d := e.latency()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) latency() time.Duration {
	lo, hi := e.opts.LatencyMin, e.opts.LatencyMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// execution is the state of one query run.
type execution struct {
	*Engine
	ctx      context.Context
	log      *slog.Logger
	now      time.Time
	failOpen int
}

func (e *Engine) newExecution(ctx context.Context, log *slog.Logger) *execution {
	return &execution{Engine: e, ctx: ctx, log: log, now: e.opts.Now()}
}

func (x *execution) execute(q *ast.Query) (*Result, error) {
	rows, err := x.reg.Resolve(x.ctx, q.Table)
	if err != nil {
		return nil, err
	}

	if len(q.Dropped) > 0 {
		if x.opts.Strict {
			return nil, strictErr("unrecognized stage %q", q.Dropped[0])
		}
		x.log.Warn("stages dropped", "stages", q.Dropped)
	}

	for _, op := range q.Ops {
		in := len(rows)
		rows, err = x.execOp(op, rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.Source(), err)
		}
		x.log.Debug("stage done", "stage", op.Source(), "rows_in", in, "rows_out", len(rows))
	}
	if x.failOpen > 0 {
		x.log.Warn("predicates failed open", "count", x.failOpen)
	}
	return newResult(rows), nil
}

func (x *execution) execOp(op ast.Op, rows []*table.Row) ([]*table.Row, error) {
	switch o := op.(type) {
	case *ast.FilterOp:
		return x.execFilter(o, rows)
	case *ast.ProjectOp:
		return execProject(o, rows), nil
	case *ast.ProjectAwayOp:
		return execProjectAway(o, rows), nil
	case *ast.SummarizeOp:
		return x.execSummarize(o, rows)
	case *ast.ExtendOp:
		return x.execExtend(o, rows)
	case *ast.DistinctOp:
		return execDistinct(o, rows), nil
	case *ast.TopOp:
		return execTop(o, rows), nil
	case *ast.SortOp:
		return sortRows(rows, o.OrderBy), nil
	case *ast.BinOp:
		return execBin(o, rows), nil
	case *ast.JoinOp:
		return x.execJoin(o, rows)
	case *ast.UnionOp:
		return x.execUnion(o, rows)
	case *ast.CountOp:
		return execCount(rows), nil
	default:
		return nil, fmt.Errorf("unknown operation type %T", op)
	}
}

func (x *execution) execFilter(o *ast.FilterOp, rows []*table.Row) ([]*table.Row, error) {
	var out []*table.Row
	for _, row := range rows {
		ok, err := x.test(o.Cond, row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func execProject(o *ast.ProjectOp, rows []*table.Row) []*table.Row {
	out := make([]*table.Row, len(rows))
	for i, row := range rows {
		r := table.NewRow(len(o.Columns))
		for _, c := range o.Columns {
			r.Set(c.Name, row.Get(c.Source))
		}
		out[i] = r
	}
	return out
}

func execProjectAway(o *ast.ProjectAwayOp, rows []*table.Row) []*table.Row {
	drop := make(map[string]bool, len(o.Columns))
	for _, c := range o.Columns {
		drop[c] = true
	}
	out := make([]*table.Row, len(rows))
	for i, row := range rows {
		r := table.NewRow(row.Len())
		for _, k := range row.Keys() {
			if !drop[k] {
				r.Set(k, row.Get(k))
			}
		}
		out[i] = r
	}
	return out
}

func (x *execution) execExtend(o *ast.ExtendOp, rows []*table.Row) ([]*table.Row, error) {
	if len(o.Invalid) > 0 {
		if x.opts.Strict {
			return nil, strictErr("extend assignment %q has no '='", o.Invalid[0])
		}
		x.log.Warn("extend assignments ignored", "assignments", o.Invalid)
	}
	out := make([]*table.Row, len(rows))
	for i, row := range rows {
		r := row.Clone()
		for _, a := range o.Assignments {
			r.Set(a.Column, extendValue(a, r))
		}
		out[i] = r
	}
	return out, nil
}

// extendValue computes an assignment: a +-sum of fields and numeric literals
// (anything non-numeric counts as 0), else a field lookup, else the literal.
func extendValue(a ast.Assignment, row *table.Row) table.Value {
	if a.Terms == nil {
		if v, ok := row.Lookup(a.Expr); ok {
			return v
		}
		return literalValue(a.Expr)
	}
	var sum float64
	allInt := true
	for _, term := range a.Terms {
		v, ok := row.Lookup(term)
		if !ok {
			v = literalValue(term)
		}
		f, ok := v.ToFloat()
		if !ok {
			continue
		}
		if v.Type != table.TypeInt {
			allInt = false
		}
		sum += f
	}
	if allInt {
		return table.IntVal(int64(sum))
	}
	return table.FloatVal(sum)
}

func execDistinct(o *ast.DistinctOp, rows []*table.Row) []*table.Row {
	seen := make(map[string]bool)
	var out []*table.Row
	for _, row := range rows {
		cols := o.Columns
		if len(cols) == 0 {
			cols = row.Keys()
		}
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = row.Get(c).AsString()
		}
		key := strings.Join(parts, "|")
		if !seen[key] {
			seen[key] = true
			out = append(out, row)
		}
	}
	return out
}

func execTop(o *ast.TopOp, rows []*table.Row) []*table.Row {
	if o.OrderBy != nil {
		rows = sortRows(rows, *o.OrderBy)
	}
	n := min(o.Count, len(rows))
	out := make([]*table.Row, n)
	copy(out, rows[:n])
	return out
}

// sortRows returns a stably sorted copy. Nulls go last in both directions.
func sortRows(rows []*table.Row, ob ast.OrderBy) []*table.Row {
	out := make([]*table.Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Get(ob.Field), out[j].Get(ob.Field)
		if a.IsNull() || b.IsNull() {
			return !a.IsNull() && b.IsNull()
		}
		cmp := compareValues(a, b)
		if ob.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return out
}

func compareValues(a, b table.Value) int {
	// Nulls sort last
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return 1
	}
	if b.IsNull() {
		return -1
	}

	// Numeric comparison
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if aok && bok {
		if af < bf {
			return -1
		}
		if af > bf {
			return 1
		}
		return 0
	}

	if a.Type == table.TypeTime && b.Type == table.TypeTime {
		return a.Time.Compare(b.Time)
	}

	// String comparison
	return strings.Compare(a.AsString(), b.AsString())
}

func execBin(o *ast.BinOp, rows []*table.Row) []*table.Row {
	col := "bin_" + o.Bin.Field
	out := make([]*table.Row, len(rows))
	for i, row := range rows {
		r := row.Clone()
		r.Set(col, binValue(row.Get(o.Bin.Field), o.Bin.Interval))
		out[i] = r
	}
	return out
}

func execCount(rows []*table.Row) []*table.Row {
	r := table.NewRow(1)
	r.Set("Count", table.IntVal(int64(len(rows))))
	return []*table.Row{r}
}

func (x *execution) execUnion(o *ast.UnionOp, rows []*table.Row) ([]*table.Row, error) {
	right, err := x.reg.Resolve(x.ctx, o.Table)
	if err != nil {
		return nil, err
	}
	out := make([]*table.Row, 0, len(rows)+len(right))
	out = append(out, rows...)
	return append(out, right...), nil
}
