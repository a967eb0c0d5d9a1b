package service

import (
	"strconv"

	"github.com/snograph/snoquery/internal/index"
)

// ConceptResult is the materialised view of one concept returned to
// callers. Memberships carry the refset display names resolved through
// the release-scoped cache.
type ConceptResult struct {
	ID                 string             `json:"id"`
	FSN                string             `json:"fsn"`
	Active             bool               `json:"active"`
	EffectiveTime      string             `json:"effectiveTime,omitempty"`
	ModuleID           string             `json:"moduleId,omitempty"`
	DefinitionStatusID string             `json:"definitionStatusId,omitempty"`
	ParentIDs          []string           `json:"parentIds,omitempty"`
	Memberships        []RefsetMembership `json:"memberships,omitempty"`
}

// RefsetMembership names one reference set a concept belongs to.
type RefsetMembership struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// ConceptPage is one page of ranked concept results.
type ConceptPage struct {
	Items  []ConceptResult `json:"items"`
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
	Total  int             `json:"total"`
}

// IDPage is the identifier-only page projection.
type IDPage struct {
	IDs    []string `json:"ids"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
	Total  int      `json:"total"`
}

// Stats summarises the loaded release.
type Stats struct {
	EffectiveTime string `json:"effectiveTime,omitempty"`
	ConceptCount  int    `json:"conceptCount"`
}

func conceptFromDoc(doc *index.Document) ConceptResult {
	active, _ := strconv.ParseBool(doc.Get(index.FieldActive))
	return ConceptResult{
		ID:                 doc.Get(index.FieldID),
		FSN:                doc.Get(index.FieldFSN),
		Active:             active,
		EffectiveTime:      doc.Get(index.FieldEffectiveTime),
		ModuleID:           doc.Get(index.FieldModuleID),
		DefinitionStatusID: doc.Get(index.FieldDefinitionStatusID),
		ParentIDs:          doc.Values(index.IsAAttributeType),
	}
}
