// Package rf2 reads snapshot release files in the tab-separated RF2 layout
// and produces the typed documents the release store builds from.
package rf2

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/snograph/snoquery/internal/index"
)

const (
	fsnTypeID = "900000000000003001"

	activeFlag = "1"

	// scanner buffer for long description lines
	maxLineSize = 1 << 20
)

// File name prefixes within a snapshot directory.
const (
	conceptFilePrefix       = "sct2_Concept_"
	descriptionFilePrefix   = "sct2_Description_"
	relationshipFilePrefix  = "sct2_Relationship_"
	concreteValueFilePrefix = "sct2_RelationshipConcreteValues_"
	refsetFilePrefix        = "der2_"
)

// Loader reads one snapshot release directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a Loader for the given release directory.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:    dir,
		logger: slog.Default().With("component", "rf2-loader"),
	}
}

type conceptRow struct {
	id                 string
	effectiveTime      string
	active             bool
	moduleID           string
	definitionStatusID string

	fsn            string
	descriptionIDs []string
	parents        []string
	ancestors      []string
	memberOf       []string
	attributes     map[string][]string
	numeric        map[string]float64
	totalGroups    int
}

// Load reads all release files and returns the flattened documents plus the
// release summary. Only active components are indexed.
func (l *Loader) Load() ([]index.Document, ReleaseSummary, error) {
	concepts, err := l.readConcepts()
	if err != nil {
		return nil, ReleaseSummary{}, err
	}
	l.logger.Info("concepts read", "count", len(concepts))

	descriptions, err := l.readDescriptions(concepts)
	if err != nil {
		return nil, ReleaseSummary{}, err
	}
	l.logger.Info("descriptions read", "count", len(descriptions))

	relationships, err := l.readRelationships(concepts)
	if err != nil {
		return nil, ReleaseSummary{}, err
	}
	l.logger.Info("relationships read", "count", len(relationships))

	if err := l.readRefsetMembers(concepts); err != nil {
		return nil, ReleaseSummary{}, err
	}

	computeAncestors(concepts)

	summary := ReleaseSummary{
		Concepts:      len(concepts),
		Descriptions:  len(descriptions),
		Relationships: len(relationships),
	}

	schema := index.NewSchema()
	docs := make([]index.Document, 0, len(concepts)+len(descriptions)+len(relationships))
	ids := make([]string, 0, len(concepts))
	for id := range concepts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := concepts[id]
		if c.effectiveTime > summary.EffectiveTime {
			summary.EffectiveTime = c.effectiveTime
		}
		docs = append(docs, index.ConceptDocument{
			ID:                 c.id,
			FSN:                c.fsn,
			Active:             c.active,
			EffectiveTime:      c.effectiveTime,
			ModuleID:           c.moduleID,
			DefinitionStatusID: c.definitionStatusID,
			Parents:            c.parents,
			Ancestors:          c.ancestors,
			MemberOfRefsetIDs:  c.memberOf,
			DescriptionIDs:     c.descriptionIDs,
			Attributes:         c.attributes,
			NumericAttributes:  c.numeric,
			TotalGroups:        c.totalGroups,
		}.Flatten(schema))
	}
	for _, d := range descriptions {
		docs = append(docs, d.Flatten())
	}
	for _, r := range relationships {
		docs = append(docs, r.Flatten())
	}
	return docs, summary, nil
}

// ReleaseSummary counts the loaded components.
type ReleaseSummary struct {
	EffectiveTime string
	Concepts      int
	Descriptions  int
	Relationships int
}

func (l *Loader) readConcepts() (map[string]*conceptRow, error) {
	concepts := make(map[string]*conceptRow)
	err := l.scanFile(conceptFilePrefix, 5, func(cols []string) error {
		if cols[2] != activeFlag {
			return nil
		}
		concepts[cols[0]] = &conceptRow{
			id:                 cols[0],
			effectiveTime:      cols[1],
			active:             true,
			moduleID:           cols[3],
			definitionStatusID: cols[4],
			attributes:         make(map[string][]string),
			numeric:            make(map[string]float64),
		}
		return nil
	})
	return concepts, err
}

func (l *Loader) readDescriptions(concepts map[string]*conceptRow) ([]index.DescriptionDocument, error) {
	var descriptions []index.DescriptionDocument
	err := l.scanFile(descriptionFilePrefix, 9, func(cols []string) error {
		if cols[2] != activeFlag {
			return nil
		}
		concept, ok := concepts[cols[4]]
		if !ok {
			return nil
		}
		concept.descriptionIDs = append(concept.descriptionIDs, cols[0])
		if cols[6] == fsnTypeID {
			concept.fsn = cols[7]
		}
		descriptions = append(descriptions, index.DescriptionDocument{
			ID:        cols[0],
			ConceptID: cols[4],
			Term:      cols[7],
		})
		return nil
	})
	return descriptions, err
}

func (l *Loader) readRelationships(concepts map[string]*conceptRow) ([]index.RelationshipDocument, error) {
	var relationships []index.RelationshipDocument
	handle := func(cols []string) error {
		if cols[2] != activeFlag {
			return nil
		}
		source, ok := concepts[cols[4]]
		if !ok {
			return nil
		}
		typeID := cols[7]
		destination := cols[5]
		group, _ := strconv.Atoi(cols[6])
		if group > source.totalGroups {
			source.totalGroups = group
		}
		switch {
		case strings.HasPrefix(destination, "#"):
			value, err := strconv.ParseFloat(destination[1:], 64)
			if err != nil {
				return fmt.Errorf("parsing concrete value %q: %w", destination, err)
			}
			source.numeric[index.NumericAttributeField(typeID)] = value
		case typeID == index.IsAAttributeType:
			source.parents = append(source.parents, destination)
		default:
			source.attributes[typeID] = append(source.attributes[typeID], destination)
		}
		relationships = append(relationships, index.RelationshipDocument{
			ID:                   cols[0],
			EffectiveTime:        cols[1],
			Active:               true,
			ModuleID:             cols[3],
			SourceID:             cols[4],
			DestinationID:        destination,
			RelationshipGroup:    group,
			TypeID:               typeID,
			CharacteristicTypeID: cols[8],
			ModifierID:           cols[9],
		})
		return nil
	}
	if err := l.scanFile(relationshipFilePrefix, 10, handle); err != nil {
		return nil, err
	}
	// concrete-value relationships live in their own file with the same
	// column layout; the file is optional
	if err := l.scanFile(concreteValueFilePrefix, 10, handle); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return relationships, nil
}

func (l *Loader) readRefsetMembers(concepts map[string]*conceptRow) error {
	paths, err := filepath.Glob(filepath.Join(l.dir, refsetFilePrefix+"*"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		err := l.scanPath(path, 6, func(cols []string) error {
			if cols[2] != activeFlag {
				return nil
			}
			if concept, ok := concepts[cols[5]]; ok {
				concept.memberOf = append(concept.memberOf, cols[4])
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// computeAncestors fills the transitive is-a closure for every concept by
// memoised depth-first traversal over the parent links.
func computeAncestors(concepts map[string]*conceptRow) {
	memo := make(map[string][]string, len(concepts))
	visiting := make(map[string]bool)

	var closure func(id string) []string
	closure = func(id string) []string {
		if ancestors, ok := memo[id]; ok {
			return ancestors
		}
		if visiting[id] {
			// cycle in the release data; break it rather than recurse forever
			return nil
		}
		visiting[id] = true
		defer delete(visiting, id)

		concept, ok := concepts[id]
		if !ok {
			return nil
		}
		seen := make(map[string]bool)
		var ancestors []string
		for _, parent := range concept.parents {
			if !seen[parent] {
				seen[parent] = true
				ancestors = append(ancestors, parent)
			}
			for _, ancestor := range closure(parent) {
				if !seen[ancestor] {
					seen[ancestor] = true
					ancestors = append(ancestors, ancestor)
				}
			}
		}
		sort.Strings(ancestors)
		memo[id] = ancestors
		return ancestors
	}

	for id, concept := range concepts {
		concept.ancestors = closure(id)
	}
}

// scanFile locates the single release file with the prefix and scans it.
func (l *Loader) scanFile(prefix string, minCols int, handle func(cols []string) error) error {
	paths, err := filepath.Glob(filepath.Join(l.dir, prefix+"*"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		if prefix == concreteValueFilePrefix {
			return os.ErrNotExist
		}
		return fmt.Errorf("no release file matching %s* in %s", prefix, l.dir)
	}
	return l.scanPath(paths[0], minCols, handle)
}

func (l *Loader) scanPath(path string, minCols int, handle func(cols []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			// header row
			continue
		}
		text := scanner.Text()
		if text == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < minCols {
			return fmt.Errorf("%s:%d: expected at least %d columns, got %d", filepath.Base(path), line, minCols, len(cols))
		}
		if err := handle(cols); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
	return scanner.Err()
}
