package query

import (
	"strings"
	"testing"

	"github.com/snograph/snoquery/pkg/errors"
)

// TestResolveDescendants checks that a descendant marker expands to the
// reverse scan of the ancestor postings.
func TestResolveDescendants(t *testing.T) {
	snap := testSnapshot(t)
	resolved := resolveText(t, snap, "DESCENDANT_OF(404684003)")
	assertContainsAll(t, resolved, "id:57809008", "id:22298006")
	if strings.Contains(resolved, "DESCENDANT_OF") {
		t.Errorf("marker survived resolution: %q", resolved)
	}
	if strings.Contains(resolved, "404684003") {
		t.Errorf("descendants must not include the argument: %q", resolved)
	}
}

// TestResolveDescendantsOrSelf checks that the or-self variant adds the
// argument itself to the disjunction.
func TestResolveDescendantsOrSelf(t *testing.T) {
	snap := testSnapshot(t)
	resolved := resolveText(t, snap, "DESCENDANT_OR_SELF_OF(404684003)")
	assertContainsAll(t, resolved, "id:57809008", "id:22298006", "id:404684003")
}

// TestResolveAncestors checks that an ancestor marker reads the precomputed
// closure of the argument's document.
func TestResolveAncestors(t *testing.T) {
	snap := testSnapshot(t)
	resolved := resolveText(t, snap, "ANCESTOR_OF(22298006)")
	assertContainsAll(t, resolved, "id:57809008", "id:404684003", "id:138875005")
	if strings.Contains(resolved, "id:22298006") {
		t.Errorf("ancestors must not include the argument: %q", resolved)
	}

	orSelf := resolveText(t, snap, "ANCESTOR_OR_SELF_OF(22298006)")
	assertContainsAll(t, orSelf, "id:57809008", "id:404684003", "id:138875005", "id:22298006")
}

// TestResolveIdempotent checks that resolving already-resolved text changes
// nothing.
func TestResolveIdempotent(t *testing.T) {
	snap := testSnapshot(t)
	resolved := resolveText(t, snap, "DESCENDANT_OR_SELF_OF(404684003) AND 363698007:74281007")
	again := resolveText(t, snap, resolved)
	if again != resolved {
		t.Errorf("second resolution changed text:\nfirst  %q\nsecond %q", resolved, again)
	}
}

// TestResolveEmptyExpansion checks that a traversal with no results becomes
// the sentinel id that matches nothing.
func TestResolveEmptyExpansion(t *testing.T) {
	snap := testSnapshot(t)
	if resolved := resolveText(t, snap, "DESCENDANT_OF(22298006)"); resolved != "0" {
		t.Errorf("leaf descendants resolved to %q, want %q", resolved, "0")
	}
	// the sentinel keeps the surrounding structure intact
	resolved := resolveText(t, snap, "404684003 OR DESCENDANT_OF(22298006)")
	if resolved != "404684003 OR 0" {
		t.Errorf("resolved to %q, want %q", resolved, "404684003 OR 0")
	}
}

// TestResolveUnknownConceptAncestors checks that ancestor traversal of an
// absent concept reports not-found instead of an empty result.
func TestResolveUnknownConceptAncestors(t *testing.T) {
	snap := testSnapshot(t)
	_, err := NewResolver(snap, nil).Resolve("ANCESTOR_OF(999999999)")
	if err == nil {
		t.Fatal("expected error for unknown concept")
	}
	var notFound *errors.ConceptNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error is %T, want *errors.ConceptNotFoundError", err)
	}
	if notFound.ConceptID != "999999999" {
		t.Errorf("error names concept %q, want 999999999", notFound.ConceptID)
	}
}

// TestResolveAttributeFunction checks that attribute-scoped traversal keeps
// the enclosing attribute field on the expanded terms.
func TestResolveAttributeFunction(t *testing.T) {
	snap := testSnapshot(t)
	resolved := resolveText(t, snap, "363698007:ATTRIBUTE_DESCENDANT_OR_SELF_OF(74281007)")
	if resolved != "363698007:74281007" {
		t.Errorf("resolved to %q, want %q", resolved, "363698007:74281007")
	}
}

// TestResolveNestedMarkers checks that a marker inside a group resolves
// without affecting siblings.
func TestResolveNestedMarkers(t *testing.T) {
	snap := testSnapshot(t)
	resolved := resolveText(t, snap, "(DESCENDANT_OF(57809008) OR 74281007) AND ANCESTOR_OF(57809008)")
	assertContainsAll(t, resolved, "id:22298006", "74281007", "id:404684003", "id:138875005")
	if strings.Contains(resolved, "_OF(") {
		t.Errorf("marker survived resolution: %q", resolved)
	}
}

// TestResolveObserveHook checks the expansion hook sees every expansion
// size.
func TestResolveObserveHook(t *testing.T) {
	snap := testSnapshot(t)
	var sizes []int
	r := NewResolver(snap, func(n int) { sizes = append(sizes, n) })
	if _, err := r.Resolve("DESCENDANT_OF(404684003) OR DESCENDANT_OF(22298006)"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 0 {
		t.Errorf("observed expansions %v, want [2 0]", sizes)
	}
}
