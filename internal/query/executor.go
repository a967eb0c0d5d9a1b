package query

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/snograph/snoquery/internal/index"
	"github.com/snograph/snoquery/pkg/errors"
)

// UnlimitedResults is the limit sentinel meaning "return everything".
const UnlimitedResults = -1

// Executor runs compiled queries against one snapshot. Ordering is a
// deterministic total order: score descending, fully-specified-name length
// ascending, concept id ascending, so pagination is stable across repeated
// calls against an unchanged snapshot.
type Executor struct {
	snap       *index.Snapshot
	maxClauses int
	logger     *slog.Logger
}

// NewExecutor creates an Executor. Resolved traversal disjunctions can
// reach hundreds of thousands of clauses, so maxClauses must be raised well
// above conventional engine defaults; zero falls back to 400000.
func NewExecutor(snap *index.Snapshot, maxClauses int) *Executor {
	if maxClauses <= 0 {
		maxClauses = 400000
	}
	return &Executor{
		snap:       snap,
		maxClauses: maxClauses,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// Hit is one ranked match.
type Hit struct {
	Ord   int32
	Score float64
}

// Execute runs the query and returns the requested page of ranked document
// ordinals plus the true total match count. A negative offset clamps to 0;
// limit UnlimitedResults returns all matches from offset.
func (e *Executor) Execute(q *Compiled, offset, limit int) ([]int32, int, error) {
	hits, err := e.rank(q)
	if err != nil {
		return nil, 0, err
	}
	if offset < 0 {
		offset = 0
	}
	total := len(hits)
	if offset >= total {
		return []int32{}, total, nil
	}
	end := total
	if limit != UnlimitedResults && offset+limit < end {
		end = offset + limit
	}
	page := make([]int32, 0, end-offset)
	for _, hit := range hits[offset:end] {
		page = append(page, hit.Ord)
	}
	e.logger.Debug("query executed",
		"query", truncateQuery(q.Text()),
		"total", total,
		"returned", len(page),
	)
	return page, total, nil
}

// ExecuteIDs is the identifier-only projection: the page holds concept ids
// instead of materialised documents.
func (e *Executor) ExecuteIDs(q *Compiled, offset, limit int) ([]string, int, error) {
	ords, total, err := e.Execute(q, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]string, 0, len(ords))
	for _, ord := range ords {
		ids = append(ids, e.snap.Doc(ord).Get(index.FieldID))
	}
	return ids, total, nil
}

// rank evaluates the full candidate set and orders it. Ranking must run
// over all matches before any slicing, or the tie-break would not hold
// across page boundaries.
func (e *Executor) rank(q *Compiled) ([]Hit, error) {
	scores, err := e.evaluate(q.root)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(scores))
	for ord, score := range scores {
		hits = append(hits, Hit{Ord: ord, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		li := e.snap.NumericValue(index.FieldFSNLength, hits[i].Ord)
		lj := e.snap.NumericValue(index.FieldFSNLength, hits[j].Ord)
		if li != lj {
			return li < lj
		}
		return e.docID(hits[i].Ord) < e.docID(hits[j].Ord)
	})
	return hits, nil
}

func (e *Executor) docID(ord int32) uint64 {
	id, err := strconv.ParseUint(e.snap.Doc(ord).Get(index.FieldID), 10, 64)
	if err != nil {
		return math.MaxUint64
	}
	return id
}

func (e *Executor) evaluate(node compiledNode) (map[int32]float64, error) {
	switch n := node.(type) {
	case matchAll:
		scores := make(map[int32]float64, e.snap.ConceptCount())
		for _, ord := range e.snap.ConceptOrds() {
			scores[ord] = 1
		}
		return scores, nil
	case termQuery:
		return e.evaluateTerm(n), nil
	case wildcardQuery:
		return e.evaluateWildcard(n)
	case numericRangeQuery:
		scores := make(map[int32]float64)
		for _, ord := range e.snap.NumericRange(n.field, n.min, n.max) {
			scores[ord] = 1
		}
		return scores, nil
	case idRangeQuery:
		return e.evaluateIDRange(n)
	case boolQuery:
		return e.evaluateBool(n)
	case notQuery:
		positive, err := e.evaluate(n.positive)
		if err != nil {
			return nil, err
		}
		negative, err := e.evaluate(n.negative)
		if err != nil {
			return nil, err
		}
		for ord := range negative {
			delete(positive, ord)
		}
		return positive, nil
	default:
		return nil, errors.New(errors.ErrInternalQuery, 500, "unknown compiled query node")
	}
}

func (e *Executor) evaluateTerm(q termQuery) map[int32]float64 {
	term := q.term
	if e.snap.Schema().Kind(q.field) == index.KindText {
		term = strings.ToLower(term)
	}
	ords := e.snap.Postings(q.field, term)
	scores := make(map[int32]float64, len(ords))
	idf := e.idf(len(ords))
	for _, ord := range ords {
		scores[ord] = idf
	}
	return scores
}

// evaluateWildcard expands the pattern over the field's term dictionary.
// Constant score per matched document, as multiterm queries give no
// per-term relevance signal.
func (e *Executor) evaluateWildcard(q wildcardQuery) (map[int32]float64, error) {
	pattern := q.pattern
	if e.snap.Schema().Kind(q.field) == index.KindText {
		pattern = strings.ToLower(pattern)
	}
	var terms []string
	if i := strings.IndexByte(pattern, '*'); i == len(pattern)-1 {
		// pure prefix pattern, the common case for name matching
		terms = e.snap.TermsWithPrefix(q.field, pattern[:i])
	} else {
		for _, term := range e.snap.Terms(q.field) {
			if wildcardMatch(pattern, term) {
				terms = append(terms, term)
			}
		}
	}
	if len(terms) > e.maxClauses {
		return nil, errors.Newf(errors.ErrInternalQuery, 500,
			"wildcard %s:%s expands to %d terms, exceeding the clause ceiling %d",
			q.field, q.pattern, len(terms), e.maxClauses)
	}
	scores := make(map[int32]float64)
	for _, term := range terms {
		for _, ord := range e.snap.Postings(q.field, term) {
			scores[ord] = 1
		}
	}
	return scores, nil
}

func (e *Executor) evaluateIDRange(q idRangeQuery) (map[int32]float64, error) {
	matched := 0
	scores := make(map[int32]float64)
	for _, term := range e.snap.Terms(q.field) {
		value, err := strconv.ParseUint(term, 10, 64)
		if err != nil {
			continue
		}
		if value < q.lo || (value == q.lo && !q.incLo) {
			continue
		}
		if value > q.hi || (value == q.hi && !q.incHi) {
			continue
		}
		matched++
		if matched > e.maxClauses {
			return nil, errors.Newf(errors.ErrInternalQuery, 500,
				"id range on %s exceeds the clause ceiling %d", q.field, e.maxClauses)
		}
		for _, ord := range e.snap.Postings(q.field, term) {
			scores[ord] = 1
		}
	}
	return scores, nil
}

func (e *Executor) evaluateBool(q boolQuery) (map[int32]float64, error) {
	if len(q.clauses) > e.maxClauses {
		return nil, errors.Newf(errors.ErrInternalQuery, 500,
			"boolean query has %d clauses, exceeding the ceiling %d",
			len(q.clauses), e.maxClauses)
	}
	if len(q.clauses) == 0 {
		return map[int32]float64{}, nil
	}
	result, err := e.evaluate(q.clauses[0])
	if err != nil {
		return nil, err
	}
	for _, clause := range q.clauses[1:] {
		scores, err := e.evaluate(clause)
		if err != nil {
			return nil, err
		}
		switch q.op {
		case OpAnd:
			for ord := range result {
				score, ok := scores[ord]
				if !ok {
					delete(result, ord)
					continue
				}
				result[ord] += score
			}
		case OpOr:
			for ord, score := range scores {
				result[ord] += score
			}
		}
	}
	return result, nil
}

// idf gives exact term matches a slight relevance edge over broad
// expansions while staying deterministic.
func (e *Executor) idf(docFreq int) float64 {
	if docFreq == 0 {
		return 0
	}
	return math.Log(1 + float64(e.snap.DocCount())/float64(docFreq))
}

// wildcardMatch reports whether term matches a pattern with '*' wildcards.
func wildcardMatch(pattern, term string) bool {
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(term, parts[0]) {
		return false
	}
	term = term[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(term, parts[i])
		if idx < 0 {
			return false
		}
		term = term[idx+len(parts[i]):]
	}
	return strings.HasSuffix(term, parts[len(parts)-1])
}
