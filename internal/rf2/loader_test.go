package rf2

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snograph/snoquery/internal/index"
)

func writeReleaseFile(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	content := strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeTestRelease lays down a three-concept snapshot: a root, a middle
// concept, and a leaf, with one inactive concept that must not be indexed.
func writeTestRelease(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeReleaseFile(t, dir, "sct2_Concept_Snapshot_INT_20250801.txt",
		"id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId",
		"138875005\t20250801\t1\t900000000000207008\t900000000000074008",
		"404684003\t20250801\t1\t900000000000207008\t900000000000074008",
		"22298006\t20250801\t1\t900000000000207008\t900000000000073002",
		"111111104\t20250801\t0\t900000000000207008\t900000000000074008",
	)
	writeReleaseFile(t, dir, "sct2_Description_Snapshot_INT_20250801.txt",
		"id\teffectiveTime\tactive\tmoduleId\tconceptId\tlanguageCode\ttypeId\tterm\tcaseSignificanceId",
		"745159014\t20250801\t1\t900000000000207008\t22298006\ten\t900000000000003001\tMyocardial infarction (disorder)\t900000000000448009",
		"745159015\t20250801\t1\t900000000000207008\t22298006\ten\t900000000000013009\tHeart attack\t900000000000448009",
		"745159016\t20250801\t1\t900000000000207008\t404684003\ten\t900000000000003001\tClinical finding (finding)\t900000000000448009",
		"745159017\t20250801\t1\t900000000000207008\t138875005\ten\t900000000000003001\tSNOMED CT Concept\t900000000000448009",
		"745159018\t20250801\t0\t900000000000207008\t22298006\ten\t900000000000013009\tRetired synonym\t900000000000448009",
	)
	writeReleaseFile(t, dir, "sct2_Relationship_Snapshot_INT_20250801.txt",
		"id\teffectiveTime\tactive\tmoduleId\tsourceId\tdestinationId\trelationshipGroup\ttypeId\tcharacteristicTypeId\tmodifierId",
		"300001025\t20250801\t1\t900000000000207008\t404684003\t138875005\t0\t116680003\t900000000000011006\t900000000000451002",
		"300002021\t20250801\t1\t900000000000207008\t22298006\t404684003\t0\t116680003\t900000000000011006\t900000000000451002",
		"300003024\t20250801\t1\t900000000000207008\t22298006\t#325\t1\t3264475007\t900000000000011006\t900000000000451002",
	)
	writeReleaseFile(t, dir, "der2_Refset_SimpleSnapshot_INT_20250801.txt",
		"id\teffectiveTime\tactive\tmoduleId\trefsetId\treferencedComponentId",
		"a1\t20250801\t1\t900000000000207008\t900000000000497000\t22298006",
	)
	return dir
}

// TestLoadRelease checks the full load: transitive closure, FSN and
// description attachment, refset membership, concrete values, and the
// inactive-component filter.
func TestLoadRelease(t *testing.T) {
	docs, summary, err := NewLoader(writeTestRelease(t)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if summary.Concepts != 3 {
		t.Fatalf("concepts = %d, want 3 (inactive excluded)", summary.Concepts)
	}
	if summary.Descriptions != 4 {
		t.Fatalf("descriptions = %d, want 4 (inactive excluded)", summary.Descriptions)
	}
	if summary.Relationships != 3 {
		t.Fatalf("relationships = %d, want 3", summary.Relationships)
	}
	if summary.EffectiveTime != "20250801" {
		t.Errorf("effective time = %q", summary.EffectiveTime)
	}

	b := index.NewBuilder(nil)
	for _, doc := range docs {
		b.Add(doc)
	}
	snap := b.Freeze()

	leaf := snap.Doc(snap.Postings(index.FieldID, "22298006")[0])
	if got := leaf.Get(index.FieldFSN); got != "Myocardial infarction (disorder)" {
		t.Errorf("leaf fsn = %q", got)
	}
	ancestors := leaf.Values(index.FieldAncestor)
	if len(ancestors) != 2 {
		t.Fatalf("leaf ancestors = %v, want transitive closure of size 2", ancestors)
	}
	if got := leaf.Values(index.FieldMemberOf); len(got) != 1 || got[0] != "900000000000497000" {
		t.Errorf("leaf memberships = %v", got)
	}
	if got := leaf.Values(index.FieldDescriptionIDs); len(got) != 2 {
		t.Errorf("leaf description ids = %v, want the two active descriptions", got)
	}
	if got := leaf.Numeric[index.NumericAttributeField("3264475007")]; got != 325 {
		t.Errorf("concrete value = %v, want 325", got)
	}
	if got := leaf.Numeric[index.FieldTotalGroups]; got != 1 {
		t.Errorf("total groups = %v, want 1", got)
	}

	if ords := snap.Postings(index.FieldID, "111111104"); len(ords) != 0 {
		t.Errorf("inactive concept was indexed")
	}
	// descendants of the root reach the leaf through the middle concept
	if ords := snap.Postings(index.FieldAncestor, "138875005"); len(ords) != 2 {
		t.Errorf("root descendant postings = %v, want 2", ords)
	}
}

// TestLoadMissingConceptFile checks a release without the concept file is
// rejected.
func TestLoadMissingConceptFile(t *testing.T) {
	if _, _, err := NewLoader(t.TempDir()).Load(); err == nil {
		t.Fatal("Load succeeded without release files")
	}
}

// TestLoadMalformedRow checks a truncated row fails with the file and line
// position.
func TestLoadMalformedRow(t *testing.T) {
	dir := t.TempDir()
	writeReleaseFile(t, dir, "sct2_Concept_Snapshot_INT_20250801.txt",
		"id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId",
		"138875005\t20250801\t1",
	)
	_, _, err := NewLoader(dir).Load()
	if err == nil {
		t.Fatal("Load accepted a truncated row")
	}
	if !strings.Contains(err.Error(), ":2:") {
		t.Errorf("error %q does not name the line", err)
	}
}
