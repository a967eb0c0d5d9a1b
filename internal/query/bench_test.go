package query

import "testing"

// BenchmarkParse measures parsing latency for constraints of varying
// complexity.
func BenchmarkParse(b *testing.B) {
	constraints := []struct {
		name string
		text string
	}{
		{"single_id", "404684003"},
		{"boolean", "404684003 OR 57809008 AND 22298006"},
		{"field_group", "363698007:(74281007 OR 22298006)"},
		{"marker", "DESCENDANT_OR_SELF_OF(404684003) AND 363698007:74281007"},
		{"range", "fsn_length:[10 TO 40] AND total_groups:[1 TO *]"},
	}
	for _, c := range constraints {
		b.Run(c.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Parse(c.text, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkResolve measures traversal-marker expansion against the index.
func BenchmarkResolve(b *testing.B) {
	snap := testSnapshot(b)
	r := NewResolver(snap, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Resolve("DESCENDANT_OR_SELF_OF(404684003)"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExecute measures the full resolve-rewrite-compile-execute
// pipeline on the test graph.
func BenchmarkExecute(b *testing.B) {
	snap := testSnapshot(b)
	r := NewResolver(snap, nil)
	e := NewExecutor(snap, 0)
	resolved, err := r.Resolve("DESCENDANT_OR_SELF_OF(138875005) AND fsn:myocardial*")
	if err != nil {
		b.Fatal(err)
	}
	compiled, err := Compile(RewriteNotEqual(resolved), snap.Schema())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := e.Execute(compiled, 0, UnlimitedResults); err != nil {
			b.Fatal(err)
		}
	}
}
