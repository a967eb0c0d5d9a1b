package index

import (
	"sort"
)

// Snapshot is an immutable point-in-time view of one indexed terminology
// release. It is built once at load time and then shared by all queries
// without locking: nothing mutates it after Freeze.
type Snapshot struct {
	docs        []Document
	postings    map[string]map[string][]int32
	sortedTerms map[string][]string
	numeric     map[string][]numericEntry
	conceptOrds []int32
	schema      *Schema
}

type numericEntry struct {
	value float64
	ord   int32
}

// Builder accumulates documents and produces a frozen Snapshot.
type Builder struct {
	docs   []Document
	schema *Schema
}

// NewBuilder creates an empty Builder sharing the given schema. Pass nil to
// start a fresh schema.
func NewBuilder(schema *Schema) *Builder {
	if schema == nil {
		schema = NewSchema()
	}
	return &Builder{schema: schema}
}

// Add appends a stored document, registering any dynamic numeric fields it
// carries so range classification survives a segment reload.
func (b *Builder) Add(doc Document) {
	for field := range doc.Numeric {
		b.schema.RegisterNumeric(field)
	}
	b.docs = append(b.docs, doc)
}

// Schema returns the schema being populated.
func (b *Builder) Schema() *Schema {
	return b.schema
}

// Freeze builds the inverted postings and numeric value indexes and returns
// the immutable Snapshot.
func (b *Builder) Freeze() *Snapshot {
	s := &Snapshot{
		docs:     b.docs,
		postings: make(map[string]map[string][]int32),
		numeric:  make(map[string][]numericEntry),
		schema:   b.schema,
	}
	for i := range s.docs {
		ord := int32(i)
		doc := &s.docs[i]
		if doc.Type == DocTypeConcept {
			s.conceptOrds = append(s.conceptOrds, ord)
		}
		for field, values := range doc.Fields {
			for _, value := range values {
				if b.schema.Kind(field) == KindText {
					for _, term := range Analyze(value) {
						s.addPosting(field, term, ord)
					}
				} else {
					s.addPosting(field, value, ord)
				}
			}
		}
		for field, value := range doc.Numeric {
			s.numeric[field] = append(s.numeric[field], numericEntry{value: value, ord: ord})
		}
	}

	s.sortedTerms = make(map[string][]string, len(s.postings))
	for field, terms := range s.postings {
		sorted := make([]string, 0, len(terms))
		for term := range terms {
			sorted = append(sorted, term)
		}
		sort.Strings(sorted)
		s.sortedTerms[field] = sorted
	}
	for field := range s.numeric {
		entries := s.numeric[field]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].value != entries[j].value {
				return entries[i].value < entries[j].value
			}
			return entries[i].ord < entries[j].ord
		})
	}
	return s
}

func (s *Snapshot) addPosting(field, term string, ord int32) {
	terms, ok := s.postings[field]
	if !ok {
		terms = make(map[string][]int32)
		s.postings[field] = terms
	}
	list := terms[term]
	// documents are added in ordinal order; avoid duplicates from repeated
	// values within one document
	if n := len(list); n > 0 && list[n-1] == ord {
		return
	}
	terms[term] = append(list, ord)
}

// Schema returns the field-kind classification for this snapshot.
func (s *Snapshot) Schema() *Schema {
	return s.schema
}

// DocCount returns the number of stored documents of all types.
func (s *Snapshot) DocCount() int {
	return len(s.docs)
}

// ConceptCount returns the number of concept documents.
func (s *Snapshot) ConceptCount() int {
	return len(s.conceptOrds)
}

// ConceptOrds returns the ordinals of every concept document, ascending.
func (s *Snapshot) ConceptOrds() []int32 {
	return s.conceptOrds
}

// Doc returns the document at the given ordinal.
func (s *Snapshot) Doc(ord int32) *Document {
	return &s.docs[ord]
}

// Postings returns the ascending document ordinals holding the exact term
// in the field, or nil.
func (s *Snapshot) Postings(field, term string) []int32 {
	terms, ok := s.postings[field]
	if !ok {
		return nil
	}
	return terms[term]
}

// TermCount returns the number of distinct terms in a field.
func (s *Snapshot) TermCount(field string) int {
	return len(s.sortedTerms[field])
}

// TermsWithPrefix returns the field's terms beginning with prefix, in
// lexicographic order. An empty prefix returns every term.
func (s *Snapshot) TermsWithPrefix(field, prefix string) []string {
	terms := s.sortedTerms[field]
	if prefix == "" {
		return terms
	}
	lo := sort.SearchStrings(terms, prefix)
	hi := lo
	for hi < len(terms) && len(terms[hi]) >= len(prefix) && terms[hi][:len(prefix)] == prefix {
		hi++
	}
	return terms[lo:hi]
}

// Terms returns all terms of a field in lexicographic order.
func (s *Snapshot) Terms(field string) []string {
	return s.sortedTerms[field]
}

// NumericRange returns the ascending ordinals of documents whose numeric
// field value lies in [min, max].
func (s *Snapshot) NumericRange(field string, min, max float64) []int32 {
	entries := s.numeric[field]
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].value >= min })
	ords := make([]int32, 0)
	for i := lo; i < len(entries) && entries[i].value <= max; i++ {
		ords = append(ords, entries[i].ord)
	}
	sort.Slice(ords, func(i, j int) bool { return ords[i] < ords[j] })
	return ords
}

// NumericValue returns the numeric field value stored on a document, or 0.
func (s *Snapshot) NumericValue(field string, ord int32) float64 {
	return s.docs[ord].Numeric[field]
}
