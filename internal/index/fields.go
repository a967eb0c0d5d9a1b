// Package index holds the read-only concept index: typed terminology
// documents, the field schema, and an immutable point-in-time snapshot with
// per-field inverted postings and numeric doc values.
package index

import (
	"regexp"
	"strings"
	"sync"
)

// Document types stored in one shared index, discriminated by FieldDocType.
const (
	DocTypeConcept      = "concept"
	DocTypeDescription  = "description"
	DocTypeRelationship = "relationship"
)

// Concept document fields.
const (
	FieldDocType            = "type"
	FieldID                 = "id"
	FieldFSN                = "fsn"
	FieldFSNLength          = "fsn_length"
	FieldEffectiveTime      = "effective_time"
	FieldActive             = "active"
	FieldModuleID           = "module_id"
	FieldDefinitionStatusID = "definition_status_id"
	FieldAncestor           = "ancestor"
	FieldMemberOf           = "member_of"
	FieldDescriptionIDs     = "description_ids"
	FieldTotalGroups        = "total_groups"
)

// Description and relationship document fields.
const (
	FieldDescriptionID          = "description_id"
	FieldDescriptionConceptID   = "concept_id"
	FieldDescriptionTerm        = "term"
	FieldRelationshipID         = "relationship_id"
	FieldSourceID               = "source_id"
	FieldDestinationID          = "destination_id"
	FieldRelationshipGroup      = "relationship_group"
	FieldTypeID                 = "type_id"
	FieldCharacteristicTypeID   = "characteristic_type_id"
	FieldModifierID             = "modifier_id"
)

// Suffixes for per-attribute derived numeric fields. A concrete value field
// is "<attributeTypeId>_value".
const (
	SuffixValue            = "_value"
	SuffixCardinality      = "_cardinality"
	SuffixGroupCardinality = "_group_cardinality"
)

// Well-known concept identifiers.
const (
	IsAAttributeType  = "116680003"
	RefsetRootConcept = "900000000000455006"
	RootConcept       = "138875005"
)

// IDPattern matches a valid concept identifier: 6 to 18 decimal digits.
var IDPattern = regexp.MustCompile(`^\d{6,18}$`)

// FieldKind classifies how a field's values are indexed and queried.
type FieldKind int

const (
	// KindKeyword fields hold exact terms (ids, flags, timestamps).
	KindKeyword FieldKind = iota
	// KindText fields are analyzed into lowercase word terms.
	KindText
	// KindNumeric fields hold float doc values queried by range.
	KindNumeric
)

// Schema is the explicit field-kind classification for one index. Numeric
// attribute fields are registered as documents are added, so range handling
// is a lookup rather than a field-naming convention.
type Schema struct {
	mu    sync.RWMutex
	kinds map[string]FieldKind
}

// NewSchema creates a Schema pre-populated with the static fields.
func NewSchema() *Schema {
	s := &Schema{kinds: map[string]FieldKind{
		FieldFSN:             KindText,
		FieldDescriptionTerm: KindText,
		FieldFSNLength:       KindNumeric,
		FieldTotalGroups:     KindNumeric,
	}}
	return s
}

// RegisterNumeric records a dynamically named numeric field, such as an
// attribute value or cardinality field.
func (s *Schema) RegisterNumeric(field string) {
	s.mu.Lock()
	s.kinds[field] = KindNumeric
	s.mu.Unlock()
}

// Kind returns the classification for a field. Unknown fields are keyword.
func (s *Schema) Kind(field string) FieldKind {
	s.mu.RLock()
	kind, ok := s.kinds[field]
	s.mu.RUnlock()
	if ok {
		return kind
	}
	return KindKeyword
}

// NumericAttributeField returns the derived value field name for an
// attribute type id.
func NumericAttributeField(attributeTypeID string) string {
	return attributeTypeID + SuffixValue
}

// IsAttributeField reports whether a field name is a relationship attribute
// field (a bare concept id used as a field name).
func IsAttributeField(field string) bool {
	return IDPattern.MatchString(field) && !strings.ContainsAny(field, "_")
}
