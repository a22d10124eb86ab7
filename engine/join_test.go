package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razeghi71/kqlmock/parser"
	"github.com/razeghi71/kqlmock/table"
)

func joinTables() []*table.Table {
	left := newTable("L",
		table.RowOf("id", "a", "k", 1, "v", "l1"),
		table.RowOf("id", "b", "k", 2, "v", "l2"),
		table.RowOf("id", "c", "k", nil, "v", "l3"),
		table.RowOf("id", "d", "k", 2, "v", "l4"),
	)
	right := newTable("R",
		table.RowOf("k", 2, "v", "r1", "w", 10),
		table.RowOf("k", 3, "v", "r2", "w", 20),
		table.RowOf("k", 2, "v", "r3", "w", 30),
		table.RowOf("k", nil, "v", "r4", "w", 40),
	)
	return []*table.Table{left, right}
}

func column(rows []*table.Row, col string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Get(col).AsString()
	}
	return out
}

func TestJoinInner(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	res := runQuery(t, e, "L | join kind=inner R on k")

	assert.Equal(t, []string{"id", "k", "v", "v1", "w"}, res.Columns)
	assert.Equal(t, []string{"b", "b", "d", "d"}, column(res.Rows, "id"))
	assert.Equal(t, []string{"r1", "r3", "r1", "r3"}, column(res.Rows, "v1"))
	assert.LessOrEqual(t, len(res.Rows), 4*4)
}

func TestJoinNullKeysNeverMatch(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	res := runQuery(t, e, "L | join R on k")
	for _, r := range res.Rows {
		assert.NotEqual(t, "c", r.Get("id").AsString())
		assert.NotEqual(t, "r4", r.Get("v1").AsString())
	}
}

func TestJoinLeftOuter(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	res := runQuery(t, e, "L | join kind=leftouter R on k")

	assert.Equal(t, []string{"a", "b", "b", "c", "d", "d"}, column(res.Rows, "id"))
	assert.GreaterOrEqual(t, len(res.Rows), 4)
	assert.True(t, res.Rows[0].Get("v1").IsNull())
	assert.True(t, res.Rows[0].Get("w").IsNull())
	assert.Equal(t, int64(1), res.Rows[0].Get("k").Int)
}

func TestJoinRightOuter(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	res := runQuery(t, e, "L | join kind=rightouter R on k")

	assert.Equal(t, []string{"r1", "r1", "r2", "r3", "r3", "r4"}, column(res.Rows, "v1"))
	assert.Equal(t, []string{"b", "d", "null", "b", "d", "null"}, column(res.Rows, "id"))
	// the unmatched right row keeps its own key value
	assert.Equal(t, int64(3), res.Rows[2].Get("k").Int)
}

func TestJoinFullOuterIsLeftByDefault(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	full := runQuery(t, e, "L | join kind=fullouter R on k")
	left := runQuery(t, e, "L | join kind=leftouter R on k")
	assert.Equal(t, column(left.Rows, "id"), column(full.Rows, "id"))
	assert.Equal(t, column(left.Rows, "v1"), column(full.Rows, "v1"))
}

func TestJoinFullOuterEnabled(t *testing.T) {
	e := newTestEngine(Options{FullOuterJoin: true}, joinTables()...)
	res := runQuery(t, e, "L | join kind=fullouter R on k")

	require.Len(t, res.Rows, 8)
	tail := res.Rows[6:]
	assert.Equal(t, []string{"r2", "r4"}, column(tail, "v1"))
	assert.True(t, tail[0].Get("id").IsNull())
	assert.Equal(t, int64(3), tail[0].Get("k").Int)
}

func TestJoinSemiAndAnti(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)

	tests := []struct {
		query string
		col   string
		want  []string
	}{
		{"L | join kind=leftsemi R on k", "id", []string{"b", "d"}},
		{"L | join kind=leftanti R on k", "id", []string{"a", "c"}},
		{"L | join kind=anti R on k", "id", []string{"a", "c"}},
		{"L | join kind=rightsemi R on k", "v", []string{"r1", "r3"}},
		{"L | join kind=rightanti R on k", "v", []string{"r2", "r4"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := runQuery(t, e, tt.query)
			assert.Equal(t, tt.want, column(res.Rows, tt.col))
		})
	}
}

func TestJoinExplicitSides(t *testing.T) {
	left := newTable("Vessels", table.RowOf("vesselId", "V1", "name", "Atlantic"))
	right := newTable("Sessions",
		table.RowOf("vessel", "V1", "kwh", 12.5),
		table.RowOf("vessel", "V2", "kwh", 3.0),
	)
	e := newTestEngine(Options{}, left, right)

	for _, q := range []string{
		"Vessels | join Sessions on $left.vesselId == $right.vessel",
		"Vessels | join Sessions on $right.vessel == $left.vesselId",
	} {
		res := runQuery(t, e, q)
		require.Len(t, res.Rows, 1, q)
		assert.Equal(t, []string{"vesselId", "name", "vessel", "kwh"}, res.Columns, q)
		assert.Equal(t, 12.5, res.Rows[0].Get("kwh").Float, q)
	}
}

func TestJoinUnsupportedConditionIsCrossProduct(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	res := runQuery(t, e, "L | join R on k > 1")
	assert.Len(t, res.Rows, 16)

	strict := newTestEngine(Options{Strict: true}, joinTables()...)
	_, err := strict.Execute(t.Context(), parser.Parse("L | join R on k > 1"))
	assert.ErrorIs(t, err, ErrStrict)
}

func TestJoinUnknownKind(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	res := runQuery(t, e, "L | join kind=sideways R on k")
	assert.Equal(t, []string{"b", "b", "d", "d"}, column(res.Rows, "id"))

	strict := newTestEngine(Options{Strict: true}, joinTables()...)
	_, err := strict.Execute(t.Context(), parser.Parse("L | join kind=sideways R on k"))
	assert.ErrorIs(t, err, ErrStrict)
}

func TestJoinUnknownRightTable(t *testing.T) {
	e := newTestEngine(Options{}, joinTables()...)
	_, err := e.Execute(t.Context(), parser.Parse("L | join Missing on k"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table: Missing")
}
