package query

import (
	"math"
	"strconv"
	"strings"

	"github.com/snograph/snoquery/internal/index"
	"github.com/snograph/snoquery/pkg/errors"
)

// The numeric range primitive is inclusive-only, so exclusive bounds are
// emulated by nudging the boundary inward by rangeEpsilon before issuing an
// inclusive query. Attribute values are small decimals, so the epsilon is
// far below any representable gap between distinct values.
const (
	rangeEpsilon    = 0.00001
	rangeDefaultMin = 0
	rangeDefaultMax = float64(math.MaxInt32)
)

// Compiled is an executable query tree over the snapshot's fields.
type Compiled struct {
	root compiledNode
	text string
}

// Text returns the resolved query text this query was compiled from.
func (c *Compiled) Text() string {
	return c.text
}

type compiledNode interface{ compiled() }

// matchAll matches every concept document.
type matchAll struct{}

// termQuery matches one exact term in a field.
type termQuery struct {
	field string
	term  string
}

// wildcardQuery matches terms against a pattern containing '*' wildcards.
// Leading wildcards are permitted.
type wildcardQuery struct {
	field   string
	pattern string
}

// numericRangeQuery matches numeric doc values in the inclusive [min, max].
type numericRangeQuery struct {
	field    string
	min, max float64
}

// idRangeQuery matches id-valued terms numerically between the bounds.
// Open is represented by lo=0 / hi=MaxUint64 with the matching inclusive
// flag set.
type idRangeQuery struct {
	field  string
	lo, hi uint64
	incLo  bool
	incHi  bool
}

// boolQuery combines clauses with AND or OR.
type boolQuery struct {
	op      BoolOp
	clauses []compiledNode
}

// notQuery matches positive minus negative.
type notQuery struct {
	positive compiledNode
	negative compiledNode
}

func (matchAll) compiled()          {}
func (termQuery) compiled()         {}
func (wildcardQuery) compiled()     {}
func (numericRangeQuery) compiled() {}
func (idRangeQuery) compiled()      {}
func (boolQuery) compiled()         {}
func (notQuery) compiled()          {}

// Compile parses fully-resolved query text into an executable query. The
// text is machine-generated, so failures are internal errors. Range syntax
// on numeric fields becomes an epsilon-adjusted inclusive float range; on
// id-valued fields it becomes a numeric id range.
func Compile(text string, schema *index.Schema) (*Compiled, error) {
	root, err := Parse(text, nil)
	if err != nil {
		return nil, errors.Newf(errors.ErrInternalQuery, 500,
			"parsing resolved query: %v", err)
	}
	compiled, err := compileNode(root, schema)
	if err != nil {
		return nil, err
	}
	return &Compiled{root: compiled, text: text}, nil
}

func compileNode(node Node, schema *index.Schema) (compiledNode, error) {
	switch n := node.(type) {
	case *Term:
		return compileTerm(n), nil
	case *Range:
		return compileRange(n, schema)
	case *Bool:
		clauses := make([]compiledNode, len(n.Clauses))
		for i, clause := range n.Clauses {
			compiled, err := compileNode(clause, schema)
			if err != nil {
				return nil, err
			}
			clauses[i] = compiled
		}
		return boolQuery{op: n.Op, clauses: clauses}, nil
	case *Not:
		positive, err := compileNode(n.Positive, schema)
		if err != nil {
			return nil, err
		}
		negative, err := compileNode(n.Negative, schema)
		if err != nil {
			return nil, err
		}
		return notQuery{positive: positive, negative: negative}, nil
	case *Func:
		return nil, errors.Newf(errors.ErrInternalQuery, 500,
			"unresolved %s marker reached the compiler", n.Function.Name())
	default:
		return nil, errors.New(errors.ErrInternalQuery, 500, "unknown query node")
	}
}

func compileTerm(t *Term) compiledNode {
	field := t.Field
	if field == "" {
		field = index.FieldID
	}
	if t.Value == "*" {
		return matchAll{}
	}
	if strings.ContainsRune(t.Value, '*') {
		return wildcardQuery{field: field, pattern: t.Value}
	}
	return termQuery{field: field, term: t.Value}
}

func compileRange(r *Range, schema *index.Schema) (compiledNode, error) {
	field := r.Field
	if field == "" {
		field = index.FieldID
	}
	if schema.Kind(field) == index.KindNumeric {
		return compileNumericRange(field, r)
	}
	return compileIDRange(field, r)
}

// compileNumericRange applies the epsilon adjustment: a missing lower bound
// defaults to 0, a missing upper bound to a large sentinel maximum.
func compileNumericRange(field string, r *Range) (compiledNode, error) {
	min := float64(rangeDefaultMin)
	max := rangeDefaultMax
	if r.Low != "*" {
		parsed, err := strconv.ParseFloat(r.Low, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrInternalQuery, 500,
				"invalid numeric range bound %q on field %s", r.Low, field)
		}
		min = parsed
		if !r.IncLow {
			min += rangeEpsilon
		}
	}
	if r.High != "*" {
		parsed, err := strconv.ParseFloat(r.High, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrInternalQuery, 500,
				"invalid numeric range bound %q on field %s", r.High, field)
		}
		max = parsed
		if !r.IncHigh {
			max -= rangeEpsilon
		}
	}
	return numericRangeQuery{field: field, min: min, max: max}, nil
}

// compileIDRange builds a numeric range over id-valued terms. Ids vary in
// length, so lexicographic term order would misorder them; comparison is on
// the integer value.
func compileIDRange(field string, r *Range) (compiledNode, error) {
	q := idRangeQuery{field: field, lo: 0, hi: math.MaxUint64, incLo: true, incHi: true}
	if r.Low != "*" {
		lo, err := strconv.ParseUint(r.Low, 10, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrInternalQuery, 500,
				"invalid id range bound %q on field %s", r.Low, field)
		}
		q.lo = lo
		q.incLo = r.IncLow
	}
	if r.High != "*" {
		hi, err := strconv.ParseUint(r.High, 10, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrInternalQuery, 500,
				"invalid id range bound %q on field %s", r.High, field)
		}
		q.hi = hi
		q.incHi = r.IncHigh
	}
	return q, nil
}
