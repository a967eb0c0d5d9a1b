package query

import (
	"log/slog"

	"github.com/snograph/snoquery/internal/index"
	"github.com/snograph/snoquery/pkg/errors"
)

// sentinelID is substituted for an empty traversal result. It matches no
// real concept, so the surrounding disjunction stays well-formed without
// becoming vacuously true.
const sentinelID = "0"

// Resolver replaces graph-traversal function markers in intermediate query
// text with literal id disjunctions obtained from the index snapshot.
type Resolver struct {
	snap    *index.Snapshot
	table   *functionTable
	logger  *slog.Logger
	observe func(expansion int)
}

// NewResolver creates a Resolver over one snapshot. The observe hook, when
// non-nil, receives the clause count of every expansion.
func NewResolver(snap *index.Snapshot, observe func(expansion int)) *Resolver {
	return &Resolver{
		snap:    snap,
		table:   newFunctionTable(),
		logger:  slog.Default().With("component", "function-resolver"),
		observe: observe,
	}
}

// Resolve parses the query text once, resolves every function node
// bottom-up, and serialises the resolved tree back to text. Resolving
// already-resolved text is a no-op: the tree then contains no function
// nodes. Nested markers need no special ordering because resolution is a
// structural recursion, not a text rescan.
func (r *Resolver) Resolve(queryText string) (string, error) {
	root, err := Parse(queryText, r.table)
	if err != nil {
		return "", errors.Newf(errors.ErrInvalidConstraint, 400,
			"parsing constraint: %v", err)
	}
	resolved, err := r.resolveNode(root)
	if err != nil {
		return "", err
	}
	return Serialize(resolved), nil
}

func (r *Resolver) resolveNode(node Node) (Node, error) {
	switch n := node.(type) {
	case *Func:
		return r.expandFunc(n)
	case *Bool:
		clauses := make([]Node, len(n.Clauses))
		for i, clause := range n.Clauses {
			resolved, err := r.resolveNode(clause)
			if err != nil {
				return nil, err
			}
			clauses[i] = resolved
		}
		return &Bool{Op: n.Op, Clauses: clauses}, nil
	case *Not:
		positive, err := r.resolveNode(n.Positive)
		if err != nil {
			return nil, err
		}
		negative, err := r.resolveNode(n.Negative)
		if err != nil {
			return nil, err
		}
		return &Not{Positive: positive, Negative: negative}, nil
	default:
		return node, nil
	}
}

// expandFunc turns one function node into a literal disjunction of resolved
// concept ids. Attribute-type functions keep the enclosing attribute field;
// all others target the id field.
func (r *Resolver) expandFunc(fn *Func) (Node, error) {
	spec := r.table.spec(fn.Function)
	relatives, err := r.conceptRelatives(spec, fn.Arg)
	if err != nil {
		return nil, err
	}
	if r.observe != nil {
		r.observe(len(relatives))
	}
	if len(relatives) == 0 {
		r.logger.Warn("traversal function returned empty result, substituting sentinel",
			"function", spec.name,
			"concept_id", fn.Arg,
		)
		return &Term{Field: fn.Field, Value: sentinelID}, nil
	}

	field := fn.Field
	if !spec.attributeType {
		field = index.FieldID
	}
	clauses := make([]Node, len(relatives))
	for i, id := range relatives {
		clauses[i] = &Term{Field: field, Value: id}
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return &Bool{Op: OpOr, Clauses: clauses}, nil
}

// conceptRelatives resolves the traversal itself. Ancestor-type functions
// read the precomputed ancestor field of the argument's document and fail
// not-found when the concept is absent; descendant-type functions reverse
// scan the ancestor postings, which legitimately yields an empty set.
func (r *Resolver) conceptRelatives(spec functionSpec, conceptID string) ([]string, error) {
	var relatives []string
	if spec.ancestorType {
		doc, err := r.conceptDoc(conceptID)
		if err != nil {
			return nil, err
		}
		relatives = append(relatives, doc.Values(index.FieldAncestor)...)
	} else {
		for _, ord := range r.snap.Postings(index.FieldAncestor, conceptID) {
			relatives = append(relatives, r.snap.Doc(ord).Get(index.FieldID))
		}
	}
	if spec.includeSelf {
		relatives = append(relatives, conceptID)
	}
	return relatives, nil
}

func (r *Resolver) conceptDoc(conceptID string) (*index.Document, error) {
	ords := r.snap.Postings(index.FieldID, conceptID)
	if len(ords) == 0 {
		return nil, errors.ConceptNotFound(conceptID)
	}
	return r.snap.Doc(ords[0]), nil
}

// truncateQuery shortens generated query text for log output.
func truncateQuery(q string) string {
	return truncate(q, 200)
}
