package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razeghi71/kqlmock/table"
)

func vessels() *table.Table {
	t := table.NewTable("Vessels", []string{"vesselId", "vesselName", "commissioned"})
	t.AddRow([]table.Value{table.StrVal("V001"), table.StrVal("Atlantic Carrier"), table.TimeVal(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))})
	t.AddRow([]table.Value{table.StrVal("V002"), table.StrVal("Nordic Star"), table.Null()})
	return t
}

func TestResolveReturnsCopies(t *testing.T) {
	r := New(vessels())

	rows, err := r.Resolve(context.Background(), "Vessels")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	rows[0].Set("vesselName", table.StrVal("changed"))

	again, err := r.Resolve(context.Background(), "Vessels")
	require.NoError(t, err)
	assert.Equal(t, "Atlantic Carrier", again[0].Get("vesselName").Str)
}

func TestNewCopiesInput(t *testing.T) {
	src := vessels()
	r := New(src)
	src.Rows[0].Set("vesselName", table.StrVal("changed"))

	rows, err := r.Resolve(context.Background(), "Vessels")
	require.NoError(t, err)
	assert.Equal(t, "Atlantic Carrier", rows[0].Get("vesselName").Str)
}

func TestUnknownTable(t *testing.T) {
	r := New(vessels())
	_, err := r.Resolve(context.Background(), "vessels")
	require.Error(t, err)
	assert.EqualError(t, err, "unknown table: vessels")
	assert.True(t, errors.Is(err, ErrUnknownTable))

	var ute *UnknownTableError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "vessels", ute.Name)

	_, err = r.Schema("Nope")
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = r.Table("Nope")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestNamesSortedAndDeduplicated(t *testing.T) {
	r := New(table.NewTable("b", nil), table.NewTable("a", nil), table.NewTable("b", []string{"x"}), nil)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	s, err := r.Schema("b")
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "x", Type: "string"}}, s.Columns)
}

func TestSchema(t *testing.T) {
	r := New(vessels())
	s, err := r.Schema("Vessels")
	require.NoError(t, err)
	assert.Equal(t, Schema{
		Table: "Vessels",
		Columns: []Column{
			{Name: "vesselId", Type: "string"},
			{Name: "vesselName", Type: "string"},
			{Name: "commissioned", Type: "datetime"},
		},
	}, s)
	assert.Equal(t, []Schema{s}, r.Schemas())
}

func TestResolverFunc(t *testing.T) {
	var called string
	var res Resolver = ResolverFunc(func(_ context.Context, name string) ([]*table.Row, error) {
		called = name
		return nil, nil
	})
	_, err := res.Resolve(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "X", called)
}
