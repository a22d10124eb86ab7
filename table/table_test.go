package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowMissingColumnIsNull(t *testing.T) {
	r := RowOf("a", 1)
	assert.True(t, r.Get("missing").IsNull())
	_, ok := r.Lookup("missing")
	assert.False(t, ok)

	var nilRow *Row
	assert.True(t, nilRow.Get("a").IsNull())
	assert.Equal(t, 0, nilRow.Len())
}

func TestRowKeepsInsertionOrder(t *testing.T) {
	r := RowOf("z", 1, "a", 2, "m", 3)
	r.Set("a", IntVal(20))
	assert.Equal(t, []string{"z", "a", "m"}, r.Keys())
	assert.Equal(t, int64(20), r.Get("a").Int)
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := RowOf("a", 1)
	c := r.Clone()
	c.Set("a", IntVal(2))
	c.Set("b", IntVal(3))
	assert.Equal(t, int64(1), r.Get("a").Int)
	assert.False(t, r.Has("b"))
}

func TestToFloatParsesStrings(t *testing.T) {
	f, ok := StrVal(" 12.5 ").ToFloat()
	require.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok = StrVal("abc").ToFloat()
	assert.False(t, ok)
	_, ok = StrVal("12").AsFloat()
	assert.False(t, ok, "AsFloat does not parse strings")
	_, ok = BoolVal(true).ToFloat()
	assert.False(t, ok)
}

func TestAsTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	got, ok := StrVal("2024-03-01T10:30:00Z").AsTime()
	require.True(t, ok)
	assert.True(t, want.Equal(got))

	got, ok = IntVal(want.UnixMilli()).AsTime()
	require.True(t, ok)
	assert.True(t, want.Equal(got))

	_, ok = StrVal("not a date").AsTime()
	assert.False(t, ok)
	_, ok = Null().AsTime()
	assert.False(t, ok)
}

func TestAsString(t *testing.T) {
	assert.Equal(t, "null", Null().AsString())
	assert.Equal(t, "3", FloatVal(3).AsString())
	assert.Equal(t, "0.25", FloatVal(0.25).AsString())
	assert.Equal(t, "[a, 1]", ListVal([]Value{StrVal("a"), IntVal(1)}).AsString())
}

func TestFromNative(t *testing.T) {
	assert.Equal(t, TypeInt, FromNative(int32(4)).Type)
	assert.Equal(t, TypeFloat, FromNative(4.5).Type)
	assert.Equal(t, TypeNull, FromNative(nil).Type)
	assert.Equal(t, TypeTime, FromNative(time.Now()).Type)
	assert.Equal(t, TypeList, FromNative([]any{1, "x"}).Type)
}

func TestTableAddRow(t *testing.T) {
	tbl := NewTable("t", []string{"a", "b"})
	tbl.AddRow([]Value{IntVal(1)})
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"a", "b"}, tbl.Rows[0].Keys())
	assert.True(t, tbl.Get(0, "b").IsNull())
	assert.True(t, tbl.Get(5, "a").IsNull())

	clone := tbl.Clone()
	clone.Rows[0].Set("a", IntVal(9))
	assert.Equal(t, int64(1), tbl.Get(0, "a").Int)
}

func TestRowString(t *testing.T) {
	assert.Equal(t, "{vesselId:V001, voltage:null}", RowOf("vesselId", "V001", "voltage", nil).String())
}
