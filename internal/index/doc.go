package index

import "strconv"

// Document is the flat stored form of one terminology record: a type
// discriminator, multi-valued keyword/text fields, and single-valued numeric
// fields. Documents are created by the release build and never mutated.
type Document struct {
	Type    string              `json:"type"`
	Fields  map[string][]string `json:"fields"`
	Numeric map[string]float64  `json:"numeric,omitempty"`
}

// Get returns the first value of a field, or "".
func (d *Document) Get(field string) string {
	values := d.Fields[field]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Values returns all values of a field.
func (d *Document) Values(field string) []string {
	return d.Fields[field]
}

// ConceptDocument is the typed build-time form of a concept record.
type ConceptDocument struct {
	ID                 string
	FSN                string
	Active             bool
	EffectiveTime      string
	ModuleID           string
	DefinitionStatusID string
	// Parents holds direct is-a destinations; Ancestors the precomputed
	// transitive closure.
	Parents           []string
	Ancestors         []string
	MemberOfRefsetIDs []string
	DescriptionIDs    []string
	// Attributes maps a relationship attribute type id to its destination
	// ids; NumericAttributes maps derived numeric fields (attribute values,
	// cardinalities) to their values.
	Attributes        map[string][]string
	NumericAttributes map[string]float64
	TotalGroups       int
}

// Flatten converts the typed concept into its stored Document form,
// registering any dynamic numeric fields on the schema.
func (c ConceptDocument) Flatten(schema *Schema) Document {
	fields := map[string][]string{
		FieldDocType:            {DocTypeConcept},
		FieldID:                 {c.ID},
		FieldFSN:                {c.FSN},
		FieldEffectiveTime:      {c.EffectiveTime},
		FieldActive:             {boolValue(c.Active)},
		FieldModuleID:           {c.ModuleID},
		FieldDefinitionStatusID: {c.DefinitionStatusID},
	}
	if len(c.Parents) > 0 {
		fields[IsAAttributeType] = c.Parents
	}
	if len(c.Ancestors) > 0 {
		fields[FieldAncestor] = c.Ancestors
	}
	if len(c.MemberOfRefsetIDs) > 0 {
		fields[FieldMemberOf] = c.MemberOfRefsetIDs
	}
	if len(c.DescriptionIDs) > 0 {
		fields[FieldDescriptionIDs] = c.DescriptionIDs
	}
	for attributeType, destinations := range c.Attributes {
		fields[attributeType] = append(fields[attributeType], destinations...)
	}

	numeric := map[string]float64{
		FieldFSNLength:   float64(len(c.FSN)),
		FieldTotalGroups: float64(c.TotalGroups),
	}
	for field, value := range c.NumericAttributes {
		numeric[field] = value
		schema.RegisterNumeric(field)
	}
	return Document{Type: DocTypeConcept, Fields: fields, Numeric: numeric}
}

// DescriptionDocument is the typed build-time form of a description record.
type DescriptionDocument struct {
	ID        string
	ConceptID string
	Term      string
}

// Flatten converts the description into its stored Document form.
func (d DescriptionDocument) Flatten() Document {
	return Document{
		Type: DocTypeDescription,
		Fields: map[string][]string{
			FieldDocType:              {DocTypeDescription},
			FieldDescriptionID:        {d.ID},
			FieldDescriptionConceptID: {d.ConceptID},
			FieldDescriptionTerm:      {d.Term},
		},
	}
}

// RelationshipDocument is the typed build-time form of a relationship
// record.
type RelationshipDocument struct {
	ID                   string
	EffectiveTime        string
	Active               bool
	ModuleID             string
	SourceID             string
	DestinationID        string
	RelationshipGroup    int
	TypeID               string
	CharacteristicTypeID string
	ModifierID           string
}

// Flatten converts the relationship into its stored Document form.
func (r RelationshipDocument) Flatten() Document {
	return Document{
		Type: DocTypeRelationship,
		Fields: map[string][]string{
			FieldDocType:              {DocTypeRelationship},
			FieldRelationshipID:       {r.ID},
			FieldEffectiveTime:        {r.EffectiveTime},
			FieldActive:               {boolValue(r.Active)},
			FieldModuleID:             {r.ModuleID},
			FieldSourceID:             {r.SourceID},
			FieldDestinationID:        {r.DestinationID},
			FieldRelationshipGroup:    {strconv.Itoa(r.RelationshipGroup)},
			FieldTypeID:               {r.TypeID},
			FieldCharacteristicTypeID: {r.CharacteristicTypeID},
			FieldModifierID:           {r.ModifierID},
		},
	}
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
