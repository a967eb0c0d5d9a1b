package query

import (
	"regexp"
	"strings"
)

// The index has no native set-complement operator on an id-valued field, so
// "not equal to {ids}" arrives from the converter as a wildcard-prefixed
// negated group: (* NOT (a OR b)). RewriteNotEqual replaces that group with
// a union of exclusive ranges whose boundaries are exactly the excluded
// ids: {* TO a} OR {a TO b} OR {b TO *}. No excluded id falls inside any
// range and every other id falls inside exactly one.

var (
	notEqualPattern = regexp.MustCompile(`\(\* NOT.*\)`)
	idTokenPattern  = regexp.MustCompile(`\d{6,18}`)
)

// RewriteNotEqual rewrites the not-equal idiom when present and returns the
// text unchanged otherwise.
func RewriteNotEqual(queryText string) string {
	if !strings.Contains(queryText, "* NOT") {
		return queryText
	}
	group := notEqualPattern.FindString(queryText)
	if group == "" {
		return queryText
	}
	var excluded []string
	// the sentinel-only group means "exclude nothing real"
	if strings.Contains(group, "("+sentinelID+")") || strings.Contains(group, " "+sentinelID+")") {
		excluded = []string{sentinelID}
	} else {
		excluded = idTokenPattern.FindAllString(group, -1)
	}
	if len(excluded) == 0 {
		excluded = []string{sentinelID}
	}
	sortIDsNumeric(excluded)
	return strings.Replace(queryText, group, "("+buildRangeList(excluded)+")", 1)
}

// buildRangeList chains adjoining exclusive ranges over the sorted excluded
// ids.
func buildRangeList(excluded []string) string {
	var b strings.Builder
	b.WriteString("{* TO ")
	var previous string
	for _, id := range excluded {
		if previous != "" {
			b.WriteString(" OR {")
			b.WriteString(previous)
			b.WriteString(" TO ")
		}
		b.WriteString(id)
		b.WriteString("}")
		previous = id
	}
	if previous != "" {
		b.WriteString(" OR {")
		b.WriteString(previous)
		b.WriteString(" TO *}")
	}
	return b.String()
}
