// Package query tests cover the full constraint pipeline over a small
// hand-built terminology graph:
//
//	138875005 root
//	├── 404684003 clinical finding
//	│   ├── 57809008 myocardial disease
//	│   │   └── 22298006 myocardial infarction
//	├── 74281007 myocardium structure
//	├── 375745003 aspirin 325 mg tablet
//	└── 900000000000455006 reference set root
//	    └── 900000000000497000 simple map reference set
package query

import (
	"strings"
	"testing"

	"github.com/snograph/snoquery/internal/index"
)

func testSnapshot(t testing.TB) *index.Snapshot {
	t.Helper()
	b := index.NewBuilder(nil)
	concepts := []index.ConceptDocument{
		{
			ID:  "138875005",
			FSN: "SNOMED CT Concept (SNOMED RT+CTV3)",
		},
		{
			ID:        "404684003",
			FSN:       "Clinical finding (finding)",
			Parents:   []string{"138875005"},
			Ancestors: []string{"138875005"},
		},
		{
			ID:        "57809008",
			FSN:       "Myocardial disease (disorder)",
			Parents:   []string{"404684003"},
			Ancestors: []string{"404684003", "138875005"},
		},
		{
			ID:                "22298006",
			FSN:               "Myocardial infarction (disorder)",
			Parents:           []string{"57809008"},
			Ancestors:         []string{"57809008", "404684003", "138875005"},
			MemberOfRefsetIDs: []string{"900000000000497000"},
			DescriptionIDs:    []string{"745159014"},
			Attributes:        map[string][]string{"363698007": {"74281007"}},
			TotalGroups:       1,
		},
		{
			ID:        "74281007",
			FSN:       "Myocardium structure (body structure)",
			Parents:   []string{"138875005"},
			Ancestors: []string{"138875005"},
		},
		{
			ID:                "375745003",
			FSN:               "Aspirin 325 mg oral tablet (clinical drug)",
			Parents:           []string{"138875005"},
			Ancestors:         []string{"138875005"},
			NumericAttributes: map[string]float64{index.NumericAttributeField("3264475007"): 325},
		},
		{
			ID:        "900000000000455006",
			FSN:       "Reference set (foundation metadata concept)",
			Parents:   []string{"138875005"},
			Ancestors: []string{"138875005"},
		},
		{
			ID:        "900000000000497000",
			FSN:       "CTV3 simple map reference set (foundation metadata concept)",
			Parents:   []string{"900000000000455006"},
			Ancestors: []string{"900000000000455006", "138875005"},
		},
	}
	for _, c := range concepts {
		c.Active = true
		c.EffectiveTime = "20250801"
		b.Add(c.Flatten(b.Schema()))
	}
	b.Add(index.DescriptionDocument{
		ID:        "745159014",
		ConceptID: "22298006",
		Term:      "Heart attack",
	}.Flatten())
	return b.Freeze()
}

// resolveText runs the resolver over intermediate text and fails the test on
// error.
func resolveText(t *testing.T, snap *index.Snapshot, text string) string {
	t.Helper()
	resolved, err := NewResolver(snap, nil).Resolve(text)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", text, err)
	}
	return resolved
}

// executeIDs runs the full pipeline (resolve, rewrite, compile, execute)
// and returns the ordered concept ids of one page.
func executeIDs(t *testing.T, snap *index.Snapshot, text string, offset, limit int) ([]string, int) {
	t.Helper()
	rewritten := RewriteNotEqual(resolveText(t, snap, text))
	compiled, err := Compile(rewritten, snap.Schema())
	if err != nil {
		t.Fatalf("Compile(%q): %v", rewritten, err)
	}
	ids, total, err := NewExecutor(snap, 0).ExecuteIDs(compiled, offset, limit)
	if err != nil {
		t.Fatalf("ExecuteIDs(%q): %v", rewritten, err)
	}
	return ids, total
}

func assertSameIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got ids %v, want %v", got, want)
	}
	set := make(map[string]bool, len(got))
	for _, id := range got {
		set[id] = true
	}
	for _, id := range want {
		if !set[id] {
			t.Fatalf("got ids %v, want %v", got, want)
		}
	}
}

func assertContainsAll(t *testing.T, text string, substrings ...string) {
	t.Helper()
	for _, sub := range substrings {
		if !strings.Contains(text, sub) {
			t.Fatalf("%q does not contain %q", text, sub)
		}
	}
}
