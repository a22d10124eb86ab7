package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/razeghi71/kqlmock/ast"
)

// DefaultTopCount is used when top or take has no usable count.
const DefaultTopCount = 10

// ParseOperation turns one pipeline stage into an Op. It returns nil when
// the stage keyword is not recognized.
func ParseOperation(text string) ast.Op {
	text = strings.TrimSpace(text)
	keyword, rest := splitKeyword(text)
	stage := ast.Stage{Text: text}

	switch strings.ToLower(keyword) {
	case "where", "filter":
		return parseWhere(stage, rest)
	case "summarize":
		return parseSummarize(stage, rest)
	case "project":
		return parseProject(stage, rest)
	case "project-away":
		return &ast.ProjectAwayOp{Stage: stage, Columns: splitList(rest)}
	case "extend":
		return parseExtend(stage, rest)
	case "distinct":
		return parseDistinct(stage, rest)
	case "top":
		return parseTop(stage, rest)
	case "take", "limit":
		return &ast.TopOp{Stage: stage, Count: parseCount(rest)}
	case "sort", "order":
		return parseSort(stage, rest)
	case "bin":
		bin, ok := ParseBin(text)
		if !ok {
			return nil
		}
		return &ast.BinOp{Stage: stage, Bin: bin}
	case "join":
		return parseJoin(stage, rest)
	case "union":
		return parseUnion(stage, rest)
	case "count":
		if rest != "" {
			return nil
		}
		return &ast.CountOp{Stage: stage}
	default:
		return nil
	}
}

// splitKeyword returns the first word (ending at whitespace or '(') and the
// trimmed remainder.
func splitKeyword(text string) (string, string) {
	end := strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	if end < 0 {
		return text, ""
	}
	return text[:end], strings.TrimSpace(text[end:])
}

func parseWhere(stage ast.Stage, rest string) ast.Op {
	return &ast.FilterOp{Stage: stage, Condition: rest, Cond: ParseCondition(rest)}
}

func parseSummarize(stage ast.Stage, rest string) ast.Op {
	aggPart, groupPart := rest, ""
	if idx := indexWord(rest, "by"); idx >= 0 {
		aggPart, groupPart = rest[:idx], rest[idx+len("by"):]
	}

	op := &ast.SummarizeOp{Stage: stage, GroupBy: []ast.GroupKey{}}
	for _, text := range splitList(aggPart) {
		op.Aggregations = append(op.Aggregations, ParseAggregation(text))
	}
	for _, text := range splitList(groupPart) {
		op.GroupBy = append(op.GroupBy, parseGroupKey(text))
	}
	return op
}

// ParseAggregation parses one aggregation: avg(voltage), n = count(),
// percentile(voltage, 95), count.
func ParseAggregation(text string) ast.AggSpec {
	var spec ast.AggSpec
	body := strings.TrimSpace(text)
	if alias, expr, ok := splitAssignment(body); ok && identRe.MatchString(alias) {
		spec.Name = alias
		body = expr
	}
	spec.Text = body
	if spec.Name == "" {
		spec.Name = body
	}

	open := strings.Index(body, "(")
	if open < 0 || !strings.HasSuffix(body, ")") {
		spec.Func = strings.ToLower(body)
		return spec
	}
	spec.Func = strings.ToLower(strings.TrimSpace(body[:open]))
	inner := body[open+1 : len(body)-1]
	spec.Args = splitList(inner)
	if len(spec.Args) > 0 {
		spec.Field = spec.Args[0]
	}
	if spec.Func == "countif" {
		spec.Cond = ParseCondition(inner)
	}
	return spec
}

func parseGroupKey(text string) ast.GroupKey {
	body := text
	alias := ""
	if name, expr, ok := splitAssignment(text); ok && identRe.MatchString(name) {
		alias, body = name, expr
	}
	key := ast.GroupKey{Text: body, Name: alias, Field: body}
	if bin, ok := ParseBin(body); ok {
		key.Field = bin.Field
		key.Bin = &bin
	}
	if key.Name == "" {
		key.Name = key.Field
	}
	return key
}

var intervalRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([dhms])$`)

// ParseInterval parses a bin size: 1h, "15m", 7d, 0.5, 100.
func ParseInterval(text string) (ast.Interval, bool) {
	s := strings.ToLower(unquote(text))
	if m := intervalRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil || n <= 0 {
			return ast.Interval{}, false
		}
		return ast.Interval{Unit: ast.IntervalUnit(m[2][0]), Count: n}, true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 {
		return ast.Interval{}, false
	}
	return ast.Interval{Unit: ast.UnitNone, Count: n}, true
}

// ParseBin parses bin(field, interval).
func ParseBin(text string) (ast.BinExpr, bool) {
	s := strings.TrimSpace(text)
	if len(s) < 3 || !strings.EqualFold(s[:3], "bin") {
		return ast.BinExpr{}, false
	}
	inner := strings.TrimSpace(s[3:])
	if !strings.HasPrefix(inner, "(") || !strings.HasSuffix(inner, ")") {
		return ast.BinExpr{}, false
	}
	args := splitList(inner[1 : len(inner)-1])
	if len(args) != 2 || !identRe.MatchString(args[0]) {
		return ast.BinExpr{}, false
	}
	interval, ok := ParseInterval(args[1])
	if !ok {
		return ast.BinExpr{}, false
	}
	return ast.BinExpr{Text: s, Field: args[0], Interval: interval}, true
}

func parseProject(stage ast.Stage, rest string) ast.Op {
	op := &ast.ProjectOp{Stage: stage}
	for _, item := range splitList(rest) {
		if name, src, ok := splitAssignment(item); ok {
			op.Columns = append(op.Columns, ast.ProjectColumn{Name: name, Source: src})
			continue
		}
		op.Columns = append(op.Columns, ast.ProjectColumn{Name: item, Source: item})
	}
	return op
}

func parseExtend(stage ast.Stage, rest string) ast.Op {
	op := &ast.ExtendOp{Stage: stage}
	for _, item := range splitList(rest) {
		name, expr, ok := splitAssignment(item)
		if !ok || name == "" {
			op.Invalid = append(op.Invalid, item)
			continue
		}
		a := ast.Assignment{Column: name, Expr: expr}
		if terms := splitTop(expr, '+'); len(terms) > 1 {
			for _, term := range terms {
				a.Terms = append(a.Terms, strings.TrimSpace(term))
			}
		}
		op.Assignments = append(op.Assignments, a)
	}
	return op
}

func parseDistinct(stage ast.Stage, rest string) ast.Op {
	op := &ast.DistinctOp{Stage: stage}
	for _, col := range splitList(rest) {
		if col != "*" {
			op.Columns = append(op.Columns, col)
		}
	}
	return op
}

func parseCount(rest string) int {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return DefaultTopCount
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return DefaultTopCount
	}
	if n < 0 {
		return 0
	}
	return n
}

func parseTop(stage ast.Stage, rest string) ast.Op {
	op := &ast.TopOp{Stage: stage, Count: parseCount(rest)}
	if idx := indexWord(rest, "by"); idx >= 0 {
		if ob, ok := parseOrderBy(rest[idx+len("by"):]); ok {
			op.OrderBy = &ob
		}
	}
	return op
}

func parseSort(stage ast.Stage, rest string) ast.Op {
	if idx := indexWord(rest, "by"); idx == 0 {
		rest = rest[len("by"):]
	}
	ob, ok := parseOrderBy(rest)
	if !ok {
		return nil
	}
	return &ast.SortOp{Stage: stage, OrderBy: ob}
}

// parseOrderBy reads "<field> [asc|desc]". Further keys are ignored.
func parseOrderBy(text string) (ast.OrderBy, bool) {
	first := strings.TrimSpace(splitTop(text, ',')[0])
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ast.OrderBy{}, false
	}
	ob := ast.OrderBy{Field: fields[0]}
	if len(fields) > 1 && strings.EqualFold(fields[1], "desc") {
		ob.Desc = true
	}
	return ob, true
}

var joinKindRe = regexp.MustCompile(`(?i)^kind\s*=\s*([A-Za-z]+)\s*`)

func parseJoin(stage ast.Stage, rest string) ast.Op {
	op := &ast.JoinOp{Stage: stage, Kind: "inner"}
	if m := joinKindRe.FindStringSubmatch(rest); m != nil {
		op.Kind = strings.ToLower(m[1])
		rest = rest[len(m[0]):]
	}

	rest = strings.TrimSpace(rest)
	var remainder string
	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			return nil
		}
		op.Table = strings.TrimSpace(rest[1:end])
		remainder = rest[end+1:]
	} else {
		tableText, tail := splitKeyword(rest)
		op.Table = tableText
		remainder = tail
	}
	if op.Table == "" {
		return nil
	}

	if idx := indexWord(remainder, "on"); idx >= 0 {
		op.Condition = strings.TrimSpace(remainder[idx+len("on"):])
		op.On = ParseJoinKeys(op.Condition)
	}
	return op
}

// ParseJoinKeys resolves an on clause into left/right key columns. It
// accepts left.a == right.b, $left.a == $right.b, a == b and a bare a.
// Any other shape returns nil.
func ParseJoinKeys(cond string) *ast.JoinKeys {
	cond = strings.TrimSpace(cond)
	if identRe.MatchString(cond) {
		return &ast.JoinKeys{Left: cond, Right: cond}
	}
	parts := strings.Split(cond, "==")
	if len(parts) != 2 {
		return nil
	}
	lcol, lside, ok := joinSide(parts[0])
	if !ok {
		return nil
	}
	rcol, rside, ok := joinSide(parts[1])
	if !ok {
		return nil
	}
	if lside == "right" || rside == "left" {
		lcol, rcol = rcol, lcol
	}
	return &ast.JoinKeys{Left: lcol, Right: rcol}
}

func joinSide(text string) (string, string, bool) {
	s := strings.TrimSpace(text)
	side := ""
	lower := strings.ToLower(s)
	for _, prefix := range []string{"$left.", "left.", "$right.", "right."} {
		if strings.HasPrefix(lower, prefix) {
			side = strings.Trim(prefix, "$.")
			s = s[len(prefix):]
			break
		}
	}
	if !identRe.MatchString(s) {
		return "", "", false
	}
	return s, side, true
}

func parseUnion(stage ast.Stage, rest string) ast.Op {
	name := strings.Trim(strings.TrimSpace(rest), "()")
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return nil
	}
	return &ast.UnionOp{Stage: stage, Table: strings.TrimSuffix(fields[0], ",")}
}
