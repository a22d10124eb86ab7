package parser

import (
	"fmt"
	"strings"

	"github.com/razeghi71/kqlmock/ast"
	"github.com/razeghi71/kqlmock/lexer"
	"github.com/razeghi71/kqlmock/table"
)

// ParseCondition parses a where clause into a condition tree. Text that
// cannot be parsed becomes an *ast.UnrecognizedCond rather than an error;
// a leaf no rule matches is unrecognized on its own, leaving the rest of
// the tree intact.
func ParseCondition(input string) ast.Cond {
	text := strings.TrimSpace(input)
	if text == "" {
		return &ast.UnrecognizedCond{Text: text, Reason: "empty condition"}
	}
	tokens, err := lexer.Lex(text)
	if err != nil {
		return &ast.UnrecognizedCond{Text: text, Reason: err.Error()}
	}
	p := &condParser{runes: []rune(text), tokens: tokens}
	cond, err := p.parseOr()
	if err == nil && p.peek().Type != lexer.TokenEOF {
		err = fmt.Errorf("unexpected %s at position %d", p.peek().Type, p.peek().Pos)
	}
	if err != nil {
		return &ast.UnrecognizedCond{Text: text, Reason: err.Error()}
	}
	return cond
}

type condParser struct {
	runes  []rune
	tokens []lexer.Token
	pos    int
}

func (p *condParser) peek() lexer.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return lexer.Token{Type: lexer.TokenEOF}
}

func (p *condParser) advance() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *condParser) expect(tt lexer.TokenType) (lexer.Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, fmt.Errorf("expected %s, got %s at position %d", tt, tok.Type, tok.Pos)
	}
	return tok, nil
}

// text returns the source text spanned by toks.
func (p *condParser) text(toks []lexer.Token) string {
	if len(toks) == 0 {
		return ""
	}
	return string(p.runes[toks[0].Pos:toks[len(toks)-1].End])
}

func (p *condParser) parseOr() (ast.Cond, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []ast.Cond{left}
	for p.peek().Type == lexer.TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &ast.OrCond{Terms: terms}, nil
}

func (p *condParser) parseAnd() (ast.Cond, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []ast.Cond{left}
	for p.peek().Type == lexer.TokenAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &ast.AndCond{Terms: terms}, nil
}

func (p *condParser) parseUnary() (ast.Cond, error) {
	if p.peek().Type == lexer.TokenNot {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.NotCond{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (ast.Cond, error) {
	if p.peek().Type == lexer.TokenLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		return &ast.GroupCond{Inner: inner}, nil
	}
	return p.parseLeaf()
}

// parseLeaf collects tokens up to the next top-level and, or, closing
// parenthesis or end of input, and classifies them as one predicate.
func (p *condParser) parseLeaf() (ast.Cond, error) {
	start := p.pos
	depth := 0
loop:
	for {
		switch p.peek().Type {
		case lexer.TokenEOF:
			break loop
		case lexer.TokenLParen:
			depth++
		case lexer.TokenRParen:
			if depth == 0 {
				break loop
			}
			depth--
		case lexer.TokenAnd, lexer.TokenOr:
			if depth == 0 {
				break loop
			}
		}
		p.advance()
	}
	toks := p.tokens[start:p.pos]
	if len(toks) == 0 {
		tok := p.peek()
		return nil, fmt.Errorf("expected predicate, got %s at position %d", tok.Type, tok.Pos)
	}
	return p.classify(toks), nil
}

func (p *condParser) classify(toks []lexer.Token) ast.Cond {
	raw := p.text(toks)
	unrecognized := func(reason string) ast.Cond {
		return &ast.UnrecognizedCond{Text: raw, Reason: reason}
	}

	first := toks[0]
	if first.Type != lexer.TokenIdent {
		return unrecognized("expected field name, got " + first.Type.String())
	}
	if len(toks) == 1 {
		return &ast.TruthyCond{Field: first.Val}
	}
	if toks[1].Type == lexer.TokenLParen {
		return p.functionPredicate(toks, unrecognized)
	}

	field := first.Val
	op := toks[1]
	rest := toks[2:]

	switch {
	case op.Type == lexer.TokenIs:
		return nullCheck(field, rest, unrecognized)
	case op.Type.IsComparison():
		return p.comparison(field, op, rest, unrecognized)
	case op.Type == lexer.TokenIdent:
		name := strings.ToLower(op.Val)
		negated := strings.HasPrefix(name, "!")
		name = strings.TrimPrefix(name, "!")
		switch name {
		case "in":
			values, ok := p.list(rest)
			if !ok {
				return unrecognized("malformed in list")
			}
			return &ast.MembershipCond{Field: field, Values: values, Negated: negated}
		case "contains", "has", "startswith", "endswith":
			text, ok := literal(rest)
			if !ok {
				return unrecognized(name + " expects a single literal")
			}
			return &ast.StringMatchCond{Field: field, Op: name, Text: text, Negated: negated}
		case "between":
			return p.between(field, rest, negated, unrecognized)
		}
	}
	return unrecognized("no predicate matched")
}

// functionPredicate handles isnull(f), isnotnull(f), isempty(f), isnotempty(f).
func (p *condParser) functionPredicate(toks []lexer.Token, unrecognized func(string) ast.Cond) ast.Cond {
	name := strings.ToLower(toks[0].Val)
	if len(toks) != 4 || toks[2].Type != lexer.TokenIdent || toks[3].Type != lexer.TokenRParen {
		return unrecognized("unsupported function predicate " + name)
	}
	field := toks[2].Val
	switch name {
	case "isnull":
		return &ast.NullCheckCond{Field: field}
	case "isnotnull":
		return &ast.NullCheckCond{Field: field, Negated: true}
	case "isempty":
		return &ast.NullCheckCond{Field: field, Empty: true}
	case "isnotempty":
		return &ast.NullCheckCond{Field: field, Negated: true, Empty: true}
	}
	return unrecognized("unsupported function predicate " + name)
}

func nullCheck(field string, rest []lexer.Token, unrecognized func(string) ast.Cond) ast.Cond {
	switch {
	case len(rest) == 1 && rest[0].Type == lexer.TokenNull:
		return &ast.NullCheckCond{Field: field}
	case len(rest) == 2 && rest[0].Type == lexer.TokenNot && rest[1].Type == lexer.TokenNull:
		return &ast.NullCheckCond{Field: field, Negated: true}
	}
	return unrecognized("expected is [not] null")
}

func (p *condParser) comparison(field string, op lexer.Token, rest []lexer.Token, unrecognized func(string) ast.Cond) ast.Cond {
	if len(rest) == 0 {
		return unrecognized("missing right-hand side")
	}
	rhs := rest[0]

	if rhs.Type == lexer.TokenIdent && len(rest) > 1 && rest[1].Type == lexer.TokenLParen && isTimeFunc(rhs.Val) {
		te, n, err := p.timeExpr(rest)
		if err != nil {
			return unrecognized(err.Error())
		}
		if n != len(rest) {
			return unrecognized("trailing tokens after " + rhs.Val)
		}
		return &ast.TimeCond{Field: field, Op: timeOp(op.Type), Value: te}
	}
	if len(rest) != 1 {
		return unrecognized("unsupported right-hand side")
	}

	equal := op.Type == lexer.TokenEq || op.Type == lexer.TokenIEq
	notEqual := op.Type == lexer.TokenNeq || op.Type == lexer.TokenINeq

	switch rhs.Type {
	case lexer.TokenString:
		if equal || notEqual {
			return &ast.EqualityCond{Field: field, Text: rhs.Val, Negated: notEqual}
		}
		return &ast.ComparisonCond{Field: field, Op: op.Val, Value: rhs.Val}
	case lexer.TokenTrue, lexer.TokenFalse:
		if equal || notEqual {
			return &ast.EqualityCond{Field: field, Text: strings.ToLower(rhs.Val), Negated: notEqual}
		}
	case lexer.TokenNull:
		if equal || notEqual {
			return &ast.NullCheckCond{Field: field, Negated: notEqual}
		}
	case lexer.TokenInt, lexer.TokenFloat, lexer.TokenIdent:
		switch op.Type {
		case lexer.TokenIEq:
			return &ast.EqualityCond{Field: field, Text: rhs.Val}
		case lexer.TokenINeq:
			return &ast.EqualityCond{Field: field, Text: rhs.Val, Negated: true}
		}
		return &ast.ComparisonCond{Field: field, Op: op.Val, Value: rhs.Val}
	}
	return unrecognized("unsupported comparison with " + rhs.Type.String())
}

// timeOp maps the case-insensitive operators onto their plain forms.
func timeOp(tt lexer.TokenType) string {
	switch tt {
	case lexer.TokenIEq:
		return "=="
	case lexer.TokenINeq:
		return "!="
	}
	return tt.String()
}

// between handles between(lo .. hi). Time bounds produce a TimeCond;
// numeric bounds become lo <= field <= hi.
func (p *condParser) between(field string, rest []lexer.Token, negated bool, unrecognized func(string) ast.Cond) ast.Cond {
	if len(rest) < 2 || rest[0].Type != lexer.TokenLParen || matchParen(rest, 0) != len(rest)-1 {
		return unrecognized("between expects (low .. high)")
	}
	inner := rest[1 : len(rest)-1]
	split := -1
	depth := 0
	for i := 0; i+1 < len(inner); i++ {
		switch inner[i].Type {
		case lexer.TokenLParen:
			depth++
		case lexer.TokenRParen:
			depth--
		case lexer.TokenDot:
			if depth == 0 && inner[i+1].Type == lexer.TokenDot {
				split = i
			}
		}
		if split >= 0 {
			break
		}
	}
	if split <= 0 || split+2 >= len(inner) {
		return unrecognized("between expects (low .. high)")
	}
	lo, hi := inner[:split], inner[split+2:]

	if lo[0].Type == lexer.TokenIdent && isTimeFunc(lo[0].Val) {
		low, n, err := p.timeExpr(lo)
		if err != nil || n != len(lo) {
			return unrecognized("malformed lower bound")
		}
		high, n, err := p.timeExpr(hi)
		if err != nil || n != len(hi) {
			return unrecognized("malformed upper bound")
		}
		return &ast.TimeCond{Field: field, Op: "between", Value: low, Upper: high, Negated: negated}
	}

	if len(lo) != 1 || len(hi) != 1 || !isNumber(lo[0]) || !isNumber(hi[0]) {
		return unrecognized("between bounds must be numbers or time expressions")
	}
	var cond ast.Cond = &ast.AndCond{Terms: []ast.Cond{
		&ast.ComparisonCond{Field: field, Op: ">=", Value: lo[0].Val},
		&ast.ComparisonCond{Field: field, Op: "<=", Value: hi[0].Val},
	}}
	if negated {
		cond = &ast.NotCond{Operand: cond}
	}
	return cond
}

var timeFuncs = map[string]bool{
	"ago": true, "now": true, "datetime": true,
	"startofday": true, "endofday": true, "startofweek": true, "startofmonth": true,
}

func isTimeFunc(name string) bool {
	return timeFuncs[strings.ToLower(name)]
}

func isNumber(tok lexer.Token) bool {
	return tok.Type == lexer.TokenInt || tok.Type == lexer.TokenFloat
}

// matchParen returns the index of the parenthesis closing toks[open], or -1.
func matchParen(toks []lexer.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Type {
		case lexer.TokenLParen:
			depth++
		case lexer.TokenRParen:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// timeExpr parses a time function call at the start of toks and reports
// how many tokens it consumed.
func (p *condParser) timeExpr(toks []lexer.Token) (*ast.TimeExpr, int, error) {
	if len(toks) == 1 && strings.EqualFold(toks[0].Val, "now") {
		return &ast.TimeExpr{Func: "now"}, 1, nil
	}
	if len(toks) < 3 || toks[0].Type != lexer.TokenIdent || toks[1].Type != lexer.TokenLParen {
		return nil, 0, fmt.Errorf("expected time function, got %q", p.text(toks))
	}
	name := strings.ToLower(toks[0].Val)
	end := matchParen(toks, 1)
	if end < 0 {
		return nil, 0, fmt.Errorf("unclosed %s(", name)
	}
	inner := toks[2:end]

	switch name {
	case "now":
		if len(inner) != 0 {
			return nil, 0, fmt.Errorf("now() takes no arguments")
		}
		return &ast.TimeExpr{Func: "now"}, end + 1, nil
	case "ago":
		interval, ok := ParseInterval(p.text(inner))
		if !ok || interval.Unit == ast.UnitNone {
			return nil, 0, fmt.Errorf("invalid timespan %q", p.text(inner))
		}
		return &ast.TimeExpr{Func: "ago", Offset: interval.Duration()}, end + 1, nil
	case "startofday", "endofday", "startofweek", "startofmonth":
		te := &ast.TimeExpr{Func: name, Arg: &ast.TimeExpr{Func: "now"}}
		if len(inner) > 0 {
			arg, n, err := p.timeExpr(inner)
			if err != nil {
				return nil, 0, err
			}
			if n != len(inner) {
				return nil, 0, fmt.Errorf("trailing tokens in %s()", name)
			}
			te.Arg = arg
		}
		return te, end + 1, nil
	case "datetime":
		s := unquote(p.text(inner))
		if len(inner) == 1 && inner[0].Type == lexer.TokenString {
			s = inner[0].Val
		}
		at, ok := table.ParseTime(s)
		if !ok {
			return nil, 0, fmt.Errorf("invalid datetime %q", s)
		}
		return &ast.TimeExpr{Func: "datetime", At: at}, end + 1, nil
	}
	return nil, 0, fmt.Errorf("unsupported time function %s", name)
}

// list parses ( v1, v2, ... ). String elements contribute their unquoted
// value, anything else its source text.
func (p *condParser) list(toks []lexer.Token) ([]string, bool) {
	if len(toks) < 2 || toks[0].Type != lexer.TokenLParen || matchParen(toks, 0) != len(toks)-1 {
		return nil, false
	}
	var values []string
	var elem []lexer.Token
	flush := func() {
		switch {
		case len(elem) == 0:
		case len(elem) == 1 && elem[0].Type == lexer.TokenString:
			values = append(values, elem[0].Val)
		default:
			values = append(values, p.text(elem))
		}
		elem = nil
	}
	depth := 0
	for _, tok := range toks[1 : len(toks)-1] {
		switch tok.Type {
		case lexer.TokenLParen:
			depth++
		case lexer.TokenRParen:
			depth--
		case lexer.TokenComma:
			if depth == 0 {
				flush()
				continue
			}
		}
		elem = append(elem, tok)
	}
	flush()
	return values, true
}

// literal accepts exactly one string, number, identifier or boolean token.
func literal(toks []lexer.Token) (string, bool) {
	if len(toks) != 1 {
		return "", false
	}
	switch toks[0].Type {
	case lexer.TokenString, lexer.TokenInt, lexer.TokenFloat, lexer.TokenIdent, lexer.TokenTrue, lexer.TokenFalse:
		return toks[0].Val, true
	}
	return "", false
}
