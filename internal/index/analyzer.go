package index

import (
	"strings"
	"unicode"
)

// Analyze normalises text-field content into lowercase word terms, splitting
// on non-alphanumeric boundaries. Terminology names must stay searchable by
// exact word prefix, so there is no stemming or stop-word removal.
func Analyze(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
