package query

// Function enumerates the graph-traversal operators the upstream constraint
// converter embeds as FUNCNAME(id) markers.
type Function int

const (
	AncestorOf Function = iota
	AncestorOrSelfOf
	DescendantOf
	DescendantOrSelfOf
	AttributeDescendantOf
	AttributeDescendantOrSelfOf
)

// functionSpec carries the independent behaviour flags of one function:
// ancestor-type reads the precomputed ancestor field of the argument's
// document, descendant-type reverse-scans the index for documents whose
// ancestor field holds the argument; include-self appends the argument
// itself; attribute-type emits resolved ids bare so they can sit inside a
// relationship-attribute clause.
type functionSpec struct {
	name          string
	ancestorType  bool
	includeSelf   bool
	attributeType bool
}

// functionTable is the enumeration-to-behaviour table. Built once per
// resolver; the enumeration order fixes resolution order.
type functionTable struct {
	specs  []functionSpec
	byName map[string]Function
}

func newFunctionTable() *functionTable {
	specs := []functionSpec{
		AncestorOf:                  {name: "ANCESTOR_OF", ancestorType: true},
		AncestorOrSelfOf:            {name: "ANCESTOR_OR_SELF_OF", ancestorType: true, includeSelf: true},
		DescendantOf:                {name: "DESCENDANT_OF"},
		DescendantOrSelfOf:          {name: "DESCENDANT_OR_SELF_OF", includeSelf: true},
		AttributeDescendantOf:       {name: "ATTRIBUTE_DESCENDANT_OF", attributeType: true},
		AttributeDescendantOrSelfOf: {name: "ATTRIBUTE_DESCENDANT_OR_SELF_OF", includeSelf: true, attributeType: true},
	}
	byName := make(map[string]Function, len(specs))
	for fn, spec := range specs {
		byName[spec.name] = Function(fn)
	}
	return &functionTable{specs: specs, byName: byName}
}

func (t *functionTable) spec(fn Function) functionSpec {
	return t.specs[fn]
}

func (t *functionTable) lookup(name string) (Function, bool) {
	fn, ok := t.byName[name]
	return fn, ok
}

// Name returns the marker name used in intermediate query text.
func (f Function) Name() string {
	return defaultTable.specs[f].name
}

// defaultTable backs Function.Name for serialisation; resolvers own their
// own instance.
var defaultTable = newFunctionTable()
