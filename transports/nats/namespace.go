package nats

import (
	"strings"
	"unicode"
)

// namespace builds a NATS subject under the tezbridge prefix from values,
// dropping any that format to nothing.
func namespace(values ...string) string {
	parts := []string{"tezbridge"}
	for _, value := range values {
		if formatted := formatForNamespace(value); formatted != "" {
			parts = append(parts, formatted)
		}
	}
	return strings.Join(parts, ".")
}

// formatForNamespace makes value safe for a subject. A capital following
// a lowercase letter starts a new dash separated word, underscores become
// dashes, and anything other than letters, digits, dashes, dots, and
// wildcards is dropped.
func formatForNamespace(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 4)

	var prev rune
	for _, r := range value {
		switch {
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
		case r == '_':
			b.WriteByte('-')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.', r == '*':
			b.WriteRune(r)
		default:
			continue
		}
		prev = r
	}
	return b.String()
}
