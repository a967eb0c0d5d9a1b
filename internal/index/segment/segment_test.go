package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snograph/snoquery/internal/index"
)

func testDocs() []index.Document {
	schema := index.NewSchema()
	return []index.Document{
		index.ConceptDocument{
			ID:     "100001001",
			FSN:    "Heart structure (body structure)",
			Active: true,
		}.Flatten(schema),
		index.ConceptDocument{
			ID:        "100002008",
			FSN:       "Heart valve stenosis (disorder)",
			Active:    true,
			Ancestors: []string{"100001001"},
		}.Flatten(schema),
	}
}

// TestWriteReadRoundTrip checks a written segment reads back the same
// documents with a verified checksum.
func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	docs := testDocs()

	name, err := NewWriter(dir).Write("release", docs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Ext(name) != Extension {
		t.Errorf("segment name %q lacks extension %q", name, Extension)
	}

	reader, err := OpenReader(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if reader.DocCount() != len(docs) {
		t.Fatalf("DocCount = %d, want %d", reader.DocCount(), len(docs))
	}
	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(docs) {
		t.Fatalf("read %d docs, want %d", len(got), len(docs))
	}
	if got[0].Get(index.FieldID) != "100001001" || got[1].Get(index.FieldID) != "100002008" {
		t.Fatalf("document order changed: %v, %v", got[0].Fields, got[1].Fields)
	}
	if got[1].Values(index.FieldAncestor)[0] != "100001001" {
		t.Errorf("ancestor field lost in round trip")
	}
}

// TestWriteRejectsEmpty checks that an empty batch is refused.
func TestWriteRejectsEmpty(t *testing.T) {
	if _, err := NewWriter(t.TempDir()).Write("release", nil); err == nil {
		t.Fatal("Write accepted an empty batch")
	}
}

// TestOpenRejectsBadMagic checks that a non-segment file is rejected at
// open time.
func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bogus"+Extension)
	if err := os.WriteFile(path, make([]byte, HeaderSize+8), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatal("OpenReader accepted a file with bad magic bytes")
	}
}

// TestReadDetectsCorruption checks the checksum catches a flipped byte in
// the document block.
func TestReadDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write("release", testDocs())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[HeaderSize+4] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	reader, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if _, err := reader.ReadAll(); err == nil {
		t.Fatal("ReadAll accepted a corrupted document block")
	}
}

// TestNoTempFileLeftBehind checks the atomic rename leaves no .tmp file.
func TestNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWriter(dir).Write("release", testDocs()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}
