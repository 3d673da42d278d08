package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitriyb/ciyaml/internal/template"
)

var keywordOps = map[string]string{
	"and": "&&",
	"or":  "||",
	"not": "!",
}

// Translate rewrites a guard expression into HCL native syntax:
// ${Name} and {{Name}} become bare references, and/or/not become &&/||/!,
// a single = becomes ==, and quoted literals (single or double quotes) become
// HCL strings with interpolation sequences escaped.
func Translate(expr string) (string, error) {
	var b strings.Builder
	s := expr
	for len(s) > 0 {
		c := s[0]
		switch {
		case strings.HasPrefix(s, "${"):
			end := strings.IndexByte(s, '}')
			if end < 0 {
				return "", errors.New("unterminated ${ reference")
			}
			name := strings.TrimSpace(s[2:end])
			if !template.ValidName(name) {
				return "", fmt.Errorf("invalid variable reference %q", s[:end+1])
			}
			b.WriteString(name)
			s = s[end+1:]
		case strings.HasPrefix(s, "{{"):
			end := strings.Index(s, "}}")
			if end < 0 {
				return "", errors.New("unterminated {{ reference")
			}
			name := strings.TrimSpace(s[2:end])
			if !template.ValidName(name) {
				return "", fmt.Errorf("invalid variable reference %q", s[:end+2])
			}
			b.WriteString(name)
			s = s[end+2:]
		case c == '"' || c == '\'':
			lit, rest, err := readQuoted(s)
			if err != nil {
				return "", err
			}
			b.WriteString(quoteHCL(lit))
			s = rest
		case c == '=' || c == '!' || c == '<' || c == '>':
			if len(s) > 1 && s[1] == '=' {
				b.WriteString(s[:2])
				s = s[2:]
				continue
			}
			if c == '=' {
				b.WriteString("==")
			} else {
				b.WriteByte(c)
			}
			s = s[1:]
		case isIdentStart(c):
			n := 1
			for n < len(s) && isIdentPart(s[n]) {
				n++
			}
			word := s[:n]
			if op, ok := keywordOps[strings.ToLower(word)]; ok {
				b.WriteString(op)
			} else {
				b.WriteString(word)
			}
			s = s[n:]
		default:
			b.WriteByte(c)
			s = s[1:]
		}
	}
	return b.String(), nil
}

// readQuoted reads a literal delimited by s[0]. A backslash escapes the
// delimiter; every other character is taken as is.
func readQuoted(s string) (lit, rest string, err error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == quote:
			b.WriteByte(quote)
			i++
		case s[i] == quote:
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(s[i])
		}
	}
	return "", "", fmt.Errorf("unterminated string starting with %c", quote)
}

var hclEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"${", "$${",
	"%{", "%%{",
)

func quoteHCL(s string) string {
	return `"` + hclEscaper.Replace(s) + `"`
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
