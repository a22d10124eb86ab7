package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/razeghi71/kqlmock/ast"
	"github.com/razeghi71/kqlmock/table"
)

// errNoMatch marks a leaf that saw a null where strict mode wants a value.
// It is never surfaced: the row simply does not match.
var errNoMatch = errors.New("no match")

// timeEqualWindow is how close two times must be for == to hold.
const timeEqualWindow = 60 * time.Second

// test reports whether row satisfies c. A leaf that cannot be evaluated
// passes the row in lenient mode and fails the query in strict mode.
func (x *execution) test(c ast.Cond, row *table.Row) (bool, error) {
	switch c := c.(type) {
	case nil:
		return true, nil
	case *ast.OrCond:
		for _, term := range c.Terms {
			ok, err := x.test(term, row)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case *ast.AndCond:
		for _, term := range c.Terms {
			ok, err := x.test(term, row)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	case *ast.NotCond:
		ok, err := x.test(c.Operand, row)
		return !ok, err
	case *ast.GroupCond:
		return x.test(c.Inner, row)
	}

	ok, err := x.leaf(c, row)
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, errNoMatch):
		return false, nil
	case x.opts.Strict:
		return false, fmt.Errorf("%w: %v", ErrStrict, err)
	default:
		x.failOpen++
		return true, nil
	}
}

func (x *execution) leaf(c ast.Cond, row *table.Row) (bool, error) {
	switch c := c.(type) {
	case *ast.EqualityCond:
		v := row.Get(c.Field)
		if v.IsNull() {
			return c.Negated, nil
		}
		return strings.EqualFold(v.AsString(), c.Text) != c.Negated, nil

	case *ast.ComparisonCond:
		return x.compare(c, row)

	case *ast.MembershipCond:
		v := row.Get(c.Field)
		if v.IsNull() {
			return c.Negated, nil
		}
		s := v.AsString()
		for _, want := range c.Values {
			if s == want {
				return !c.Negated, nil
			}
		}
		return c.Negated, nil

	case *ast.StringMatchCond:
		v := row.Get(c.Field)
		if v.IsNull() {
			return c.Negated, nil
		}
		s, sub := strings.ToLower(v.AsString()), strings.ToLower(c.Text)
		var ok bool
		switch c.Op {
		case "contains", "has":
			ok = strings.Contains(s, sub)
		case "startswith":
			ok = strings.HasPrefix(s, sub)
		case "endswith":
			ok = strings.HasSuffix(s, sub)
		default:
			return false, fmt.Errorf("unknown string operator %q", c.Op)
		}
		return ok != c.Negated, nil

	case *ast.NullCheckCond:
		v := row.Get(c.Field)
		isNull := v.IsNull() || (c.Empty && v.Type == table.TypeString && v.Str == "")
		return isNull != c.Negated, nil

	case *ast.TimeCond:
		return x.compareTime(c, row)

	case *ast.TruthyCond:
		v := row.Get(c.Field)
		if v.IsNull() && x.opts.Strict {
			return false, errNoMatch
		}
		b, ok := v.AsBool()
		if !ok {
			return false, fmt.Errorf("field %q is not a boolean", c.Field)
		}
		return b, nil

	case *ast.UnrecognizedCond:
		return false, fmt.Errorf("unrecognized predicate %q: %s", c.Text, c.Reason)
	}
	return false, fmt.Errorf("unsupported condition %T", c)
}

// compare evaluates a numeric comparison. The right-hand side is a number
// literal or, failing that, the name of another column of the row.
func (x *execution) compare(c *ast.ComparisonCond, row *table.Row) (bool, error) {
	lv := row.Get(c.Field)
	if lv.IsNull() && x.opts.Strict {
		return false, errNoMatch
	}
	lf, ok := lv.ToFloat()
	if !ok {
		return false, fmt.Errorf("%s %s %s: left side %q is not a number", c.Field, c.Op, c.Value, lv.AsString())
	}

	rf, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		rv, found := row.Lookup(c.Value)
		if found {
			rf, ok = rv.ToFloat()
		}
		if !found || !ok {
			return false, fmt.Errorf("%s %s %s: right side is not a number", c.Field, c.Op, c.Value)
		}
	}

	cmp := 0
	switch {
	case lf < rf:
		cmp = -1
	case lf > rf:
		cmp = 1
	}
	return cmpResult(c.Op, cmp)
}

func (x *execution) compareTime(c *ast.TimeCond, row *table.Row) (bool, error) {
	v := row.Get(c.Field)
	if v.IsNull() && x.opts.Strict {
		return false, errNoMatch
	}
	if v.Type != table.TypeTime && v.Type != table.TypeString {
		return false, fmt.Errorf("field %q is not a timestamp", c.Field)
	}
	t, ok := v.AsTime()
	if !ok {
		return false, fmt.Errorf("field %q value %q is not a timestamp", c.Field, v.AsString())
	}

	ref := x.resolveTime(c.Value)
	switch c.Op {
	case "between":
		upper := x.resolveTime(c.Upper)
		in := !t.Before(ref) && !t.After(upper)
		return in != c.Negated, nil
	case "==", "!=":
		diff := t.Sub(ref)
		near := diff <= timeEqualWindow && diff >= -timeEqualWindow
		return near == (c.Op == "=="), nil
	}
	return cmpResult(c.Op, t.Compare(ref))
}

func cmpResult(op string, cmp int) (bool, error) {
	switch op {
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case ">":
		return cmp > 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// literalValue reads the text of a literal: quoted text is a string,
// numbers and booleans get their own types, anything else stays text.
func literalValue(text string) table.Value {
	s := strings.TrimSpace(text)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return table.StrVal(s[1 : len(s)-1])
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.IntVal(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return table.FloatVal(f)
	}
	switch strings.ToLower(s) {
	case "true":
		return table.BoolVal(true)
	case "false":
		return table.BoolVal(false)
	}
	return table.StrVal(s)
}
