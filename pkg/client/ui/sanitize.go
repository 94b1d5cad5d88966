package ui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// plainText makes server-supplied text safe to print: escape sequences are
// removed and remaining control characters dropped, keeping newlines. Tabs
// become spaces so layout widths stay predictable.
func plainText(s string) string {
	s = ansi.Strip(strings.ReplaceAll(s, "\t", "    "))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case unicode.IsControl(r), isBidiControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// plainLine is plainText for single-line slots such as titles and names.
func plainLine(s string) string {
	return strings.ReplaceAll(plainText(s), "\n", " ")
}

// isBidiControl reports the bidirectional formatting characters that can
// visually reorder surrounding text.
func isBidiControl(r rune) bool {
	switch {
	case r >= '\u202a' && r <= '\u202e':
		return true
	case r >= '\u2066' && r <= '\u2069':
		return true
	case r == '\u200e' || r == '\u200f' || r == '\u061c':
		return true
	}
	return false
}
