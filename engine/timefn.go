package engine

import (
	"time"

	"github.com/razeghi71/kqlmock/ast"
)

// resolveTime evaluates a time expression against the run's captured now.
// Day boundaries are taken in now's location.
func (x *execution) resolveTime(te *ast.TimeExpr) time.Time {
	if te == nil {
		return x.now
	}
	switch te.Func {
	case "ago":
		return x.now.Add(-te.Offset)
	case "datetime":
		return te.At
	case "startofday":
		return startOfDay(x.resolveTime(te.Arg))
	case "endofday":
		return startOfDay(x.resolveTime(te.Arg)).AddDate(0, 0, 1).Add(-time.Millisecond)
	case "startofweek":
		day := startOfDay(x.resolveTime(te.Arg))
		return day.AddDate(0, 0, -int(day.Weekday()))
	case "startofmonth":
		t := x.resolveTime(te.Arg)
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return x.now
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
