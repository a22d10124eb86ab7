package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razeghi71/kqlmock/parser"
	"github.com/razeghi71/kqlmock/table"
)

func sessions() *table.Table {
	return newTable("Sessions",
		table.RowOf("station", "north", "kwh", 10, "cost", 2.5, "vessel", "A"),
		table.RowOf("station", "south", "kwh", 4, "cost", 1.0, "vessel", "B"),
		table.RowOf("station", "north", "kwh", 6, "cost", nil, "vessel", "A"),
		table.RowOf("station", "east", "kwh", "bad", "cost", 3.5, "vessel", nil),
		table.RowOf("station", "south", "kwh", 20, "cost", 4.0, "vessel", "C"),
	)
}

func TestSummarizeWithoutGroupBy(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, "Sessions | summarize count(), sum(kwh), dcount(vessel)")

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, int64(5), row.Get("count()").Int)
	assert.Equal(t, table.IntVal(40), row.Get("sum(kwh)"))
	assert.Equal(t, int64(3), row.Get("dcount(vessel)").Int)
}

func TestSummarizeEmptyInput(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, `Sessions | where station == "west" | summarize count(), avg(kwh)`)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(0), res.Rows[0].Get("count()").Int)
	avg := res.Rows[0].Get("avg(kwh)")
	assert.Equal(t, table.TypeFloat, avg.Type)
	assert.Equal(t, 0.0, avg.Float)

	grouped := runQuery(t, e, `Sessions | where station == "west" | summarize count() by station`)
	assert.Empty(t, grouped.Rows)
}

func TestSummarizeGroupsSortedByFirstKey(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, "Sessions | summarize n = count(), total = sum(cost) by site = station")

	assert.Equal(t, []string{"site", "n", "total"}, res.Columns)
	assert.Equal(t, []string{"east", "north", "south"}, column(res.Rows, "site"))
	assert.Equal(t, []string{"1", "2", "2"}, column(res.Rows, "n"))
	assert.InDelta(t, 5.0, res.Rows[2].Get("total").Float, 1e-9)
	assert.InDelta(t, 2.5, res.Rows[1].Get("total").Float, 1e-9)
}

func TestAggregates(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, "Sessions | summarize min(kwh), max(kwh), avg(kwh), stdev(kwh), countif(kwh > 5)")

	row := res.Rows[0]
	assert.Equal(t, table.IntVal(4), row.Get("min(kwh)"))
	assert.Equal(t, table.IntVal(20), row.Get("max(kwh)"))
	assert.InDelta(t, 10.0, row.Get("avg(kwh)").Float, 1e-9)
	assert.InDelta(t, math.Sqrt(38), row.Get("stdev(kwh)").Float, 1e-9)
	// "bad" is not a number, so its predicate fails open
	assert.Equal(t, int64(4), row.Get("countif(kwh > 5)").Int)
}

func TestPercentileBounds(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, "Sessions | summarize percentile(kwh, 0), percentile(kwh, 100), percentile(kwh, 50), min(kwh), max(kwh)")

	row := res.Rows[0]
	assert.Equal(t, row.Get("min(kwh)"), row.Get("percentile(kwh, 0)"))
	assert.Equal(t, row.Get("max(kwh)"), row.Get("percentile(kwh, 100)"))
	// sorted 4, 6, 10, 20: floor(0.5 * 3) = 1
	assert.Equal(t, table.IntVal(6), row.Get("percentile(kwh, 50)"))
}

func TestMalformedPercentile(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, "Sessions | summarize percentile(kwh)")
	assert.True(t, res.Rows[0].Get("percentile(kwh)").IsNull())

	strict := newTestEngine(Options{Strict: true}, sessions())
	_, err := strict.Execute(t.Context(), parser.Parse("Sessions | summarize percentile(kwh)"))
	assert.ErrorIs(t, err, ErrStrict)
}

func TestMakeListAndSet(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, "Sessions | summarize make_list(vessel), make_set(vessel)")

	list := res.Rows[0].Get("make_list(vessel)")
	require.Equal(t, table.TypeList, list.Type)
	assert.Equal(t, []any{"A", "B", "A", "C"}, list.Native())

	set := res.Rows[0].Get("make_set(vessel)")
	assert.Equal(t, []any{"A", "B", "C"}, set.Native())
}

func TestTimestampExtremes(t *testing.T) {
	e := newTestEngine(Options{}, readings())
	res := runQuery(t, e, "Readings | summarize min(timestamp), max(timestamp)")
	assert.Equal(t, hoursAgo(50), res.Rows[0].Get("min(timestamp)").Time)
	assert.Equal(t, hoursAgo(0.5), res.Rows[0].Get("max(timestamp)").Time)
}

func TestUnknownAggregate(t *testing.T) {
	e := newTestEngine(Options{}, sessions())
	res := runQuery(t, e, "Sessions | summarize median(kwh) by station")
	require.Len(t, res.Rows, 3)
	assert.True(t, res.Rows[0].Get("median(kwh)").IsNull())

	strict := newTestEngine(Options{Strict: true}, sessions())
	_, err := strict.Execute(t.Context(), parser.Parse("Sessions | summarize median(kwh)"))
	assert.ErrorIs(t, err, ErrStrict)
}

func TestSummarizeByBin(t *testing.T) {
	e := newTestEngine(Options{}, readings())
	res := runQuery(t, e, "Readings | summarize count() by bin(timestamp, 1d)")

	assert.Equal(t, []string{"timestamp", "count()"}, res.Columns)
	assert.Equal(t, []string{"2024-06-13", "2024-06-14", "2024-06-15"}, column(res.Rows, "timestamp"))
	assert.Equal(t, []string{"1", "1", "3"}, column(res.Rows, "count()"))
}
