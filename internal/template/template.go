// Package template tokenizes strings containing {{Name}} placeholders and
// substitutes them from a lookup function.
package template

import (
	"fmt"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Kind distinguishes literal text from placeholders.
type Kind int

const (
	Literal Kind = iota
	Placeholder
)

// Token is one piece of a parsed template. For a Placeholder, Name holds the
// trimmed variable name and Text the raw source including delimiters.
type Token struct {
	Kind Kind
	Text string
	Name string
}

// Lookup resolves a variable name. ok is false when the name has no usable
// value.
type Lookup func(name string) (value string, ok bool)

// UnresolvedError reports a placeholder with no binding.
type UnresolvedError struct {
	Name string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved placeholder {{%s}}", e.Name)
}

// Parse splits s into literal and placeholder tokens. An opening delimiter
// without a matching close, or with an empty name, is kept as literal text.
func Parse(s string) []Token {
	var tokens []Token
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, Token{Kind: Literal, Text: lit.String()})
			lit.Reset()
		}
	}
	for len(s) > 0 {
		start := strings.Index(s, openDelim)
		if start < 0 {
			lit.WriteString(s)
			break
		}
		end := strings.Index(s[start+len(openDelim):], closeDelim)
		if end < 0 {
			lit.WriteString(s)
			break
		}
		end += start + len(openDelim)
		raw := s[start : end+len(closeDelim)]
		name := strings.TrimSpace(s[start+len(openDelim) : end])
		if !ValidName(name) {
			lit.WriteString(s[:start+len(openDelim)])
			s = s[start+len(openDelim):]
			continue
		}
		lit.WriteString(s[:start])
		flush()
		tokens = append(tokens, Token{Kind: Placeholder, Text: raw, Name: name})
		s = s[end+len(closeDelim):]
	}
	flush()
	return tokens
}

// ValidName reports whether name can appear inside a placeholder: a letter
// or underscore followed by letters, digits or underscores. Context
// variables and condition operands follow the same rule.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Expand substitutes every placeholder in s. It fails on the first
// placeholder lookup cannot resolve.
func Expand(s string, lookup Lookup) (string, error) {
	var b strings.Builder
	for _, tok := range Parse(s) {
		if tok.Kind == Literal {
			b.WriteString(tok.Text)
			continue
		}
		v, ok := lookup(tok.Name)
		if !ok {
			return "", &UnresolvedError{Name: tok.Name}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// ExpandPartial substitutes the placeholders lookup resolves and leaves the
// others untouched, so the result can be expanded again later.
func ExpandPartial(s string, lookup Lookup) string {
	if !strings.Contains(s, openDelim) {
		return s
	}
	var b strings.Builder
	for _, tok := range Parse(s) {
		if tok.Kind == Placeholder {
			if v, ok := lookup(tok.Name); ok {
				b.WriteString(v)
				continue
			}
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

// Placeholders returns the placeholder names in s in order of appearance.
func Placeholders(s string) []string {
	var names []string
	for _, tok := range Parse(s) {
		if tok.Kind == Placeholder {
			names = append(names, tok.Name)
		}
	}
	return names
}

// FromMap adapts a plain map to a Lookup.
func FromMap(m map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}
