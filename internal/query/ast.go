// Package query implements the constraint query pipeline: parsing
// intermediate query text into an expression tree, resolving embedded
// graph-traversal functions against the index, rewriting the not-equal
// idiom into boundary ranges, compiling the resolved tree into an
// executable query, and executing it with deterministic ordering and
// pagination.
package query

import (
	"sort"
	"strings"
)

// BoolOp is the combinator of a Bool node.
type BoolOp int

const (
	OpAnd BoolOp = iota
	OpOr
)

// Node is one vertex of the parsed expression tree.
type Node interface {
	// appendText serialises the node back into query text.
	appendText(b *strings.Builder)
}

// Term matches one exact or wildcard value in a field. An empty Field means
// the default field (the concept id).
type Term struct {
	Field string
	Value string
}

func (t *Term) appendText(b *strings.Builder) {
	if t.Field != "" {
		b.WriteString(t.Field)
		b.WriteByte(':')
	}
	b.WriteString(t.Value)
}

// Range matches values between Low and High. "*" denotes an open bound.
type Range struct {
	Field   string
	Low     string
	High    string
	IncLow  bool
	IncHigh bool
}

func (r *Range) appendText(b *strings.Builder) {
	if r.Field != "" {
		b.WriteString(r.Field)
		b.WriteByte(':')
	}
	if r.IncLow {
		b.WriteByte('[')
	} else {
		b.WriteByte('{')
	}
	b.WriteString(r.Low)
	b.WriteString(" TO ")
	b.WriteString(r.High)
	if r.IncHigh {
		b.WriteByte(']')
	} else {
		b.WriteByte('}')
	}
}

// Bool combines clauses with a single operator.
type Bool struct {
	Op      BoolOp
	Clauses []Node
}

func (n *Bool) appendText(b *strings.Builder) {
	op := " AND "
	if n.Op == OpOr {
		op = " OR "
	}
	b.WriteByte('(')
	for i, clause := range n.Clauses {
		if i > 0 {
			b.WriteString(op)
		}
		clause.appendText(b)
	}
	b.WriteByte(')')
}

// Not matches documents of Positive that are not matched by Negative.
type Not struct {
	Positive Node
	Negative Node
}

func (n *Not) appendText(b *strings.Builder) {
	b.WriteByte('(')
	n.Positive.appendText(b)
	b.WriteString(" NOT ")
	n.Negative.appendText(b)
	b.WriteByte(')')
}

// Func is an unresolved graph-traversal function marker. Field is inherited
// from the enclosing attribute clause, if any.
type Func struct {
	Field    string
	Function Function
	Arg      string
}

func (f *Func) appendText(b *strings.Builder) {
	if f.Field != "" {
		b.WriteString(f.Field)
		b.WriteByte(':')
	}
	b.WriteString(f.Function.Name())
	b.WriteByte('(')
	b.WriteString(f.Arg)
	b.WriteByte(')')
}

// Serialize renders the tree back into query text.
func Serialize(root Node) string {
	var b strings.Builder
	root.appendText(&b)
	text := b.String()
	// the root group's parentheses are redundant
	if len(text) > 1 && text[0] == '(' && text[len(text)-1] == ')' && balancedTrim(text) {
		return text[1 : len(text)-1]
	}
	return text
}

// balancedTrim reports whether the outermost parentheses wrap the whole
// expression, not two adjacent groups.
func balancedTrim(text string) bool {
	depth := 0
	for i, r := range text {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(text)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// sortIDsNumeric orders identifier strings by numeric value. Ids vary in
// length, so plain string order would misplace them.
func sortIDsNumeric(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
}
