package lexer

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Structural
	TokenLParen TokenType = iota // (
	TokenRParen                  // )
	TokenComma                   // ,
	TokenEquals                  // = (assignment)
	TokenDot                     // .

	// Operators
	TokenPlus  // +
	TokenMinus // -
	TokenStar  // *
	TokenSlash // /
	TokenEq    // ==
	TokenNeq   // !=
	TokenIEq   // =~
	TokenINeq  // !~
	TokenLt    // <
	TokenGt    // >
	TokenLte   // <=
	TokenGte   // >=

	// Keywords / logical
	TokenAnd   // and
	TokenOr    // or
	TokenNot   // not
	TokenIs    // is
	TokenTrue  // true
	TokenFalse // false
	TokenNull  // null

	// Literals
	TokenInt    // integer literal
	TokenFloat  // float literal
	TokenString // "string literal" or 'string literal'

	// Identifiers, including negated operators such as !contains
	TokenIdent

	// A rune no other rule accepts, such as the colons of an unquoted
	// datetime. The parser decides what to do with it.
	TokenUnknown

	// End
	TokenEOF
)

var tokenNames = map[TokenType]string{
	TokenLParen: "(", TokenRParen: ")", TokenComma: ",", TokenEquals: "=", TokenDot: ".",
	TokenPlus: "+", TokenMinus: "-", TokenStar: "*", TokenSlash: "/",
	TokenEq: "==", TokenNeq: "!=", TokenIEq: "=~", TokenINeq: "!~",
	TokenLt: "<", TokenGt: ">", TokenLte: "<=", TokenGte: ">=",
	TokenAnd: "and", TokenOr: "or", TokenNot: "not", TokenIs: "is",
	TokenTrue: "true", TokenFalse: "false", TokenNull: "null",
	TokenInt: "INT", TokenFloat: "FLOAT", TokenString: "STRING",
	TokenIdent: "IDENT", TokenUnknown: "UNKNOWN", TokenEOF: "EOF",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// IsComparison reports whether t is a comparison operator.
func (t TokenType) IsComparison() bool {
	switch t {
	case TokenEq, TokenNeq, TokenIEq, TokenINeq, TokenLt, TokenGt, TokenLte, TokenGte:
		return true
	}
	return false
}

// Token represents a single lexical token.
type Token struct {
	Type TokenType
	Val  string
	Pos  int // rune offset in original input
	End  int // rune offset just past the token
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Val, t.Pos)
}

// Keywords match case-insensitively: generated queries mix AND and and.
var keywords = map[string]TokenType{
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
	"is":    TokenIs,
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
}

// Lex tokenizes the input string into a slice of Tokens. Only an
// unterminated string is an error; stray characters become TokenUnknown.
func Lex(input string) ([]Token, error) {
	var tokens []Token
	runes := []rune(input)
	i := 0

	emit := func(tt TokenType, val string, pos, end int) {
		tokens = append(tokens, Token{Type: tt, Val: val, Pos: pos, End: end})
	}

	for i < len(runes) {
		ch := runes[i]

		// Skip whitespace
		if unicode.IsSpace(ch) {
			i++
			continue
		}

		// Single/double char operators and structural tokens
		pos := i
		switch ch {
		case '(':
			emit(TokenLParen, "(", pos, pos+1)
			i++
			continue
		case ')':
			emit(TokenRParen, ")", pos, pos+1)
			i++
			continue
		case ',':
			emit(TokenComma, ",", pos, pos+1)
			i++
			continue
		case '.':
			emit(TokenDot, ".", pos, pos+1)
			i++
			continue
		case '+':
			emit(TokenPlus, "+", pos, pos+1)
			i++
			continue
		case '-':
			// Could be negative number or minus operator
			if i+1 < len(runes) && unicode.IsDigit(runes[i+1]) && isNegativeContext(tokens) {
				tok, newI := lexNumber(runes, i)
				tokens = append(tokens, tok)
				i = newI
				continue
			}
			emit(TokenMinus, "-", pos, pos+1)
			i++
			continue
		case '*':
			emit(TokenStar, "*", pos, pos+1)
			i++
			continue
		case '/':
			// Check for // comment
			if i+1 < len(runes) && runes[i+1] == '/' {
				for i < len(runes) && runes[i] != '\n' {
					i++
				}
				continue
			}
			emit(TokenSlash, "/", pos, pos+1)
			i++
			continue
		case '=':
			switch {
			case i+1 < len(runes) && runes[i+1] == '=':
				emit(TokenEq, "==", pos, pos+2)
				i += 2
			case i+1 < len(runes) && runes[i+1] == '~':
				emit(TokenIEq, "=~", pos, pos+2)
				i += 2
			default:
				emit(TokenEquals, "=", pos, pos+1)
				i++
			}
			continue
		case '!':
			switch {
			case i+1 < len(runes) && runes[i+1] == '=':
				emit(TokenNeq, "!=", pos, pos+2)
				i += 2
			case i+1 < len(runes) && runes[i+1] == '~':
				emit(TokenINeq, "!~", pos, pos+2)
				i += 2
			case i+1 < len(runes) && isIdentStart(runes[i+1]):
				// !contains, !in, !between ...
				tok, newI := lexIdent(runes, i+1)
				tokens = append(tokens, Token{Type: TokenIdent, Val: "!" + tok.Val, Pos: pos, End: newI})
				i = newI
			default:
				emit(TokenUnknown, "!", pos, pos+1)
				i++
			}
			continue
		case '<':
			if i+1 < len(runes) && runes[i+1] == '=' {
				emit(TokenLte, "<=", pos, pos+2)
				i += 2
			} else {
				emit(TokenLt, "<", pos, pos+1)
				i++
			}
			continue
		case '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				emit(TokenGte, ">=", pos, pos+2)
				i += 2
			} else {
				emit(TokenGt, ">", pos, pos+1)
				i++
			}
			continue
		}

		// String literal
		if ch == '"' || ch == '\'' {
			tok, newI, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = newI
			continue
		}

		// Number
		if unicode.IsDigit(ch) {
			tok, newI := lexNumber(runes, i)
			tokens = append(tokens, tok)
			i = newI
			continue
		}

		// Identifier or keyword
		if isIdentStart(ch) {
			tok, newI := lexIdent(runes, i)
			tokens = append(tokens, tok)
			i = newI
			continue
		}

		emit(TokenUnknown, string(ch), pos, pos+1)
		i++
	}

	emit(TokenEOF, "", len(runes), len(runes))
	return tokens, nil
}

func isNegativeContext(tokens []Token) bool {
	if len(tokens) == 0 {
		return true
	}
	last := tokens[len(tokens)-1].Type
	if last.IsComparison() {
		return true
	}
	switch last {
	case TokenLParen, TokenComma, TokenEquals,
		TokenPlus, TokenMinus, TokenStar, TokenSlash,
		TokenAnd, TokenOr, TokenNot:
		return true
	}
	return false
}

func lexString(runes []rune, start int) (Token, int, error) {
	quote := runes[start]
	i := start + 1 // skip opening quote
	var sb []rune
	for i < len(runes) {
		if runes[i] == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case '"', '\'':
				sb = append(sb, runes[i+1])
			case '\\':
				sb = append(sb, '\\')
			case 'n':
				sb = append(sb, '\n')
			case 't':
				sb = append(sb, '\t')
			default:
				sb = append(sb, '\\', runes[i+1])
			}
			i += 2
			continue
		}
		if runes[i] == quote {
			return Token{Type: TokenString, Val: string(sb), Pos: start, End: i + 1}, i + 1, nil
		}
		sb = append(sb, runes[i])
		i++
	}
	return Token{}, 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func lexNumber(runes []rune, start int) (Token, int) {
	i := start
	isFloat := false

	if i < len(runes) && runes[i] == '-' {
		i++
	}

	for i < len(runes) && unicode.IsDigit(runes[i]) {
		i++
	}

	// A dot only continues the number when a digit follows, so the range
	// operator in "1..5" stays two dots.
	if i+1 < len(runes) && runes[i] == '.' && unicode.IsDigit(runes[i+1]) {
		isFloat = true
		i++
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
	}

	val := string(runes[start:i])
	if isFloat {
		return Token{Type: TokenFloat, Val: val, Pos: start, End: i}, i
	}
	return Token{Type: TokenInt, Val: val, Pos: start, End: i}, i
}

func lexIdent(runes []rune, start int) (Token, int) {
	i := start
	for i < len(runes) && isIdentPart(runes[i]) {
		i++
	}
	val := string(runes[start:i])

	if tt, ok := keywords[strings.ToLower(val)]; ok {
		return Token{Type: tt, Val: val, Pos: start, End: i}, i
	}
	return Token{Type: TokenIdent, Val: val, Pos: start, End: i}, i
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}
