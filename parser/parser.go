package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/razeghi71/kqlmock/ast"
)

// Parse splits a full query into its table name and pipeline stages.
// It never fails: stages that match no operation are listed in
// Query.Dropped and left out of Query.Ops.
func Parse(input string) *ast.Query {
	segments := splitTop(input, '|')
	q := &ast.Query{}

	if head := strings.Fields(segments[0]); len(head) > 0 {
		q.Table = head[0]
	}

	for _, seg := range segments[1:] {
		text := strings.TrimSpace(seg)
		if text == "" {
			continue
		}
		op := ParseOperation(text)
		if op == nil {
			q.Dropped = append(q.Dropped, text)
			continue
		}
		q.Ops = append(q.Ops, op)
	}
	return q
}

// --- Helpers ---

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// splitTop splits s at sep runes that are outside quotes and parentheses.
// It always returns at least one element.
func splitTop(s string, sep rune) []string {
	var parts []string
	depth := 0
	var quote rune
	start := 0
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			if depth > 0 {
				depth--
			}
		case ch == sep && depth == 0:
			parts = append(parts, string(runes[start:i]))
			start = i + 1
		}
	}
	return append(parts, string(runes[start:]))
}

// splitList splits a comma-separated list, trimming and dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range splitTop(s, ',') {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// indexWord returns the byte offset of the first top-level, whitespace
// delimited occurrence of word (case-insensitive), or -1.
func indexWord(s, word string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
			continue
		case '(':
			depth++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 || i+len(word) > len(s) || !strings.EqualFold(s[i:i+len(word)], word) {
			continue
		}
		before := i == 0 || unicode.IsSpace(rune(s[i-1]))
		after := i+len(word) == len(s) || unicode.IsSpace(rune(s[i+len(word)]))
		if before && after {
			return i
		}
	}
	return -1
}

// splitAssignment splits "name = expr" at the first '=' that is not part of
// ==, =~, != , <= or >=.
func splitAssignment(s string) (string, string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth > 0 {
				continue
			}
			if i+1 < len(s) && (s[i+1] == '=' || s[i+1] == '~') {
				i++
				continue
			}
			if i > 0 && strings.ContainsRune("=!<>", rune(s[i-1])) {
				continue
			}
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
		}
	}
	return "", "", false
}

// unquote strips one pair of matching quotes, if present.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
