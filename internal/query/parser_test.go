package query

import (
	"strings"
	"testing"
)

// roundTrip parses and re-serialises query text.
func roundTrip(t *testing.T, input string) string {
	t.Helper()
	node, err := Parse(input, nil)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return Serialize(node)
}

// TestParsePrecedence checks that OR binds loosest, AND tighter, and NOT
// tightest.
func TestParsePrecedence(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"404684003", "404684003"},
		{"404684003 OR 57809008 AND 22298006", "404684003 OR (57809008 AND 22298006)"},
		{"404684003 57809008", "404684003 AND 57809008"},
		{"404684003 OR 57809008 NOT 22298006", "404684003 OR (57809008 NOT 22298006)"},
		{"(404684003 OR 57809008) AND 22298006", "(404684003 OR 57809008) AND 22298006"},
	}
	for _, c := range cases {
		if got := roundTrip(t, c.input); got != c.want {
			t.Errorf("roundTrip(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

// TestParseFieldDistribution checks that a field qualifier distributes over
// a grouped disjunction.
func TestParseFieldDistribution(t *testing.T) {
	got := roundTrip(t, "363698007:(74281007 OR 22298006)")
	want := "363698007:74281007 OR 363698007:22298006"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestParseRange checks bracket and brace bound inclusivity survives a
// round trip.
func TestParseRange(t *testing.T) {
	cases := []string{
		"fsn_length:[1 TO 5]",
		"fsn_length:[1 TO 5}",
		"fsn_length:{1 TO 5]",
		"fsn_length:{* TO 5}",
		"{404684003 TO *}",
	}
	for _, c := range cases {
		if got := roundTrip(t, c); got != c {
			t.Errorf("roundTrip(%q) = %q", c, got)
		}
	}
}

// TestParseFunctionMarker checks traversal markers parse into function
// nodes, keeping an enclosing attribute field.
func TestParseFunctionMarker(t *testing.T) {
	node, err := Parse("363698007:ATTRIBUTE_DESCENDANT_OR_SELF_OF(74281007)", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fn, ok := node.(*Func)
	if !ok {
		t.Fatalf("parsed node is %T, want *Func", node)
	}
	if fn.Field != "363698007" || fn.Function != AttributeDescendantOrSelfOf || fn.Arg != "74281007" {
		t.Errorf("unexpected function node: %+v", fn)
	}
}

// TestParseMalformedMarker checks that a broken marker is rejected rather
// than treated as a bare term.
func TestParseMalformedMarker(t *testing.T) {
	cases := []string{
		"DESCENDANT_OF(",
		"DESCENDANT_OF()",
		"DESCENDANT_OF(404684003",
		"ANCESTOR_OF 404684003)",
	}
	for _, c := range cases {
		if _, err := Parse(c, nil); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", c)
		}
	}
}

// TestParseErrors checks structural errors carry the offending input.
func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"(404684003",
		"404684003)",
		"fsn_length:[1 TO",
		"AND 404684003",
	}
	for _, c := range cases {
		_, err := Parse(c, nil)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", c)
			continue
		}
		if c != "" && !strings.Contains(err.Error(), "parsing query") {
			t.Errorf("Parse(%q) error %q lacks context", c, err)
		}
	}
}
