package genconf

import (
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/jsonx"
)

// Escaper selects how a replacement value is made safe for the document it
// is substituted into.
type Escaper int

const (
	// EscapeBackslash doubles every backslash.
	EscapeBackslash Escaper = iota
	// EscapeJSON inserts the value as the inside of a JSON string literal.
	EscapeJSON
	// EscapeRaw inserts the value unchanged.
	EscapeRaw
)

func (e Escaper) apply(v any) string {
	s := jsonx.Stringify(v)
	switch e {
	case EscapeBackslash:
		return strings.ReplaceAll(s, `\`, `\\`)
	case EscapeJSON:
		q := jsonx.Quote(s)
		return q[1 : len(q)-1]
	default:
		return s
	}
}

// Render replaces ${key} for every key in replacements, in key order.
// Placeholders without a replacement stay as they are.
func Render(text string, replacements *jsonx.Object, esc Escaper) string {
	for _, key := range replacements.Keys() {
		v, _ := replacements.Get(key)
		text = strings.ReplaceAll(text, "${"+key+"}", esc.apply(v))
	}
	return text
}

// ExtractFlags returns the quoted value of -D<name>="..." inside s, or "" when
// s does not define name.
func ExtractFlags(s, name string) string {
	prefix := "-D" + name + `="`
	start := strings.Index(s, prefix)
	if start < 0 {
		return ""
	}
	rest := s[start+len(prefix):]
	if end := strings.Index(rest, `"`); end >= 0 {
		return rest[:end]
	}
	return rest
}
