package store

import (
	"context"
	"testing"

	"github.com/snograph/snoquery/internal/index"
)

func testDocs(n int) []index.Document {
	schema := index.NewSchema()
	docs := make([]index.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, index.ConceptDocument{
			ID:     testConceptID(i),
			FSN:    "Test concept (test)",
			Active: true,
		}.Flatten(schema))
	}
	return docs
}

func testConceptID(i int) string {
	// nine-digit ids, stable across builds
	return "10000" + string(rune('0'+i/100%10)) + string(rune('0'+i/10%10)) + string(rune('0'+i%10)) + "9"
}

// TestBuildOpenRoundTrip checks that a built release opens into a snapshot
// holding the same documents and that the metadata counts are filled.
func TestBuildOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	docs := testDocs(25)

	if err := store.Build(docs, ReleaseInfo{EffectiveTime: "20250801"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	snap, info, err := store.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if snap.DocCount() != len(docs) {
		t.Fatalf("DocCount = %d, want %d", snap.DocCount(), len(docs))
	}
	if snap.ConceptCount() != len(docs) {
		t.Fatalf("ConceptCount = %d, want %d", snap.ConceptCount(), len(docs))
	}
	if info.EffectiveTime != "20250801" {
		t.Errorf("EffectiveTime = %q, want 20250801", info.EffectiveTime)
	}
	if info.Concepts != len(docs) {
		t.Errorf("metadata concept count = %d, want %d", info.Concepts, len(docs))
	}
	if info.BuiltAt.IsZero() {
		t.Errorf("BuiltAt not recorded")
	}

	for i := 0; i < len(docs); i += 7 {
		id := testConceptID(i)
		if ords := snap.Postings(index.FieldID, id); len(ords) != 1 {
			t.Fatalf("concept %s postings = %v after reopen", id, ords)
		}
	}
}

// TestBuildRejectsEmptyRelease checks that building with no documents
// fails instead of producing an empty data directory.
func TestBuildRejectsEmptyRelease(t *testing.T) {
	if err := New(t.TempDir()).Build(nil, ReleaseInfo{}); err == nil {
		t.Fatal("Build accepted an empty release")
	}
}

// TestOpenMissingDirectory checks that opening an unbuilt directory fails.
func TestOpenMissingDirectory(t *testing.T) {
	if _, _, err := New(t.TempDir() + "/absent").Open(context.Background()); err == nil {
		t.Fatal("Open succeeded on a missing directory")
	}
}

// TestOpenNoSegments checks that a directory without segment files fails.
func TestOpenNoSegments(t *testing.T) {
	if _, _, err := New(t.TempDir()).Open(context.Background()); err == nil {
		t.Fatal("Open succeeded on a directory without segments")
	}
}
