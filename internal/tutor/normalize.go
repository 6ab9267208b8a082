package tutor

import (
	"strings"
	"unicode"
)

// Normalize collapses a reply into one line: every run of whitespace,
// line breaks included, becomes a single space and the ends are trimmed.
func Normalize(reply string) string {
	return strings.Join(strings.FieldsFunc(reply, isSeparator), " ")
}

func isSeparator(r rune) bool {
	return isLineBreak(r) || unicode.IsSpace(r)
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
