// Package similarity implements the lexical scoring used to decide whether an
// existing agent can serve a new capability description.
package similarity

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text, replaces every rune outside [a-z0-9] and
// whitespace with a space, collapses whitespace runs and trims the result.
// It is idempotent.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', unicode.IsSpace(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens splits the normalized form of text on whitespace.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}
