package engine

import (
	"math"
	"strconv"
	"time"

	"github.com/razeghi71/kqlmock/ast"
	"github.com/razeghi71/kqlmock/table"
)

const (
	binTimeFormat = time.RFC3339
	binDayFormat  = "2006-01-02"
)

// binValue buckets v by iv. Time intervals need a timestamp, numeric
// intervals a number; anything else bins to null.
func binValue(v table.Value, iv ast.Interval) table.Value {
	if iv.Count <= 0 {
		return table.Null()
	}
	if iv.Unit == ast.UnitNone {
		f, ok := v.ToFloat()
		if !ok {
			return table.Null()
		}
		b := math.Floor(f/iv.Count) * iv.Count
		return table.StrVal(strconv.FormatFloat(b, 'f', -1, 64))
	}
	if v.Type != table.TypeTime && v.Type != table.TypeString {
		return table.Null()
	}
	t, ok := v.AsTime()
	if !ok {
		return table.Null()
	}
	return table.StrVal(binTime(t.UTC(), iv))
}

// binTime floors t (in UTC) to the interval. Whole-unit hour, minute and
// second bins floor within the enclosing day, hour or minute; day bins
// floor the day count since the Unix epoch.
func binTime(t time.Time, iv ast.Interval) string {
	n := int(iv.Count)
	if float64(n) != iv.Count {
		return t.Truncate(iv.Duration()).Format(binTimeFormat)
	}
	y, mo, d := t.Date()
	switch iv.Unit {
	case ast.UnitDay:
		days := floorDiv(t.Unix(), 86400)
		days -= mod(days, int64(n))
		return time.Unix(days*86400, 0).UTC().Format(binDayFormat)
	case ast.UnitHour:
		h := t.Hour()
		return time.Date(y, mo, d, h-h%n, 0, 0, 0, time.UTC).Format(binTimeFormat)
	case ast.UnitMinute:
		m := t.Minute()
		return time.Date(y, mo, d, t.Hour(), m-m%n, 0, 0, time.UTC).Format(binTimeFormat)
	default:
		s := t.Second()
		return time.Date(y, mo, d, t.Hour(), t.Minute(), s-s%n, 0, time.UTC).Format(binTimeFormat)
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
