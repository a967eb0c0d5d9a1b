// Package store manages one indexed terminology release on disk: building
// segment files from typed documents and opening them as an immutable
// Snapshot at service startup.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snograph/snoquery/internal/index"
	"github.com/snograph/snoquery/internal/index/segment"
)

const (
	metadataFile    = "release.json"
	docsPerSegment  = 50000
	loadConcurrency = 4
)

// ReleaseInfo describes the release stored in a data directory.
type ReleaseInfo struct {
	EffectiveTime string    `json:"effectiveTime"`
	Concepts      int       `json:"concepts"`
	Descriptions  int       `json:"descriptions"`
	Relationships int       `json:"relationships"`
	BuiltAt       time.Time `json:"builtAt"`
}

// ReleaseStore builds and opens release data directories.
type ReleaseStore struct {
	dataDir string
	logger  *slog.Logger
}

// New creates a ReleaseStore rooted at dataDir.
func New(dataDir string) *ReleaseStore {
	return &ReleaseStore{
		dataDir: dataDir,
		logger:  slog.Default().With("component", "release-store"),
	}
}

// Build writes the given documents as segment files plus release metadata.
// Documents are chunked so no single segment grows unbounded.
func (s *ReleaseStore) Build(docs []index.Document, info ReleaseInfo) error {
	if len(docs) == 0 {
		return fmt.Errorf("refusing to build empty release")
	}
	writer := segment.NewWriter(s.dataDir)
	for start := 0; start < len(docs); start += docsPerSegment {
		end := start + docsPerSegment
		if end > len(docs) {
			end = len(docs)
		}
		name, err := writer.Write("release", docs[start:end])
		if err != nil {
			return fmt.Errorf("writing release segment: %w", err)
		}
		s.logger.Info("segment written", "segment", name, "docs", end-start)
	}
	info.BuiltAt = time.Now().UTC()
	for _, doc := range docs {
		switch doc.Type {
		case index.DocTypeConcept:
			info.Concepts++
		case index.DocTypeDescription:
			info.Descriptions++
		case index.DocTypeRelationship:
			info.Relationships++
		}
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling release metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dataDir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("writing release metadata: %w", err)
	}
	return nil
}

// Open loads every segment in the data directory concurrently and freezes
// the combined documents into a Snapshot. The snapshot is the service's
// point-in-time view; it is never refreshed in place.
func (s *ReleaseStore) Open(ctx context.Context) (*index.Snapshot, *ReleaseInfo, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading release directory %s: %w", s.dataDir, err)
	}
	var segmentPaths []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.Extension) {
			segmentPaths = append(segmentPaths, filepath.Join(s.dataDir, entry.Name()))
		}
	}
	if len(segmentPaths) == 0 {
		return nil, nil, fmt.Errorf("no segment files in %s", s.dataDir)
	}
	// stable document order across restarts keeps ordinals deterministic
	sort.Strings(segmentPaths)

	start := time.Now()
	docsPerSegment := make([][]index.Document, len(segmentPaths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	var mu sync.Mutex
	for i, path := range segmentPaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reader, err := segment.OpenReader(path)
			if err != nil {
				return err
			}
			docs, err := reader.ReadAll()
			if err != nil {
				return err
			}
			mu.Lock()
			docsPerSegment[i] = docs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("loading release segments: %w", err)
	}

	builder := index.NewBuilder(nil)
	for _, docs := range docsPerSegment {
		for _, doc := range docs {
			builder.Add(doc)
		}
	}
	snapshot := builder.Freeze()
	info, err := s.readInfo()
	if err != nil {
		s.logger.Warn("release metadata unavailable", "error", err)
		info = &ReleaseInfo{}
	}
	s.logger.Info("release loaded",
		"segments", len(segmentPaths),
		"docs", snapshot.DocCount(),
		"concepts", snapshot.ConceptCount(),
		"elapsed", time.Since(start),
	)
	return snapshot, info, nil
}

func (s *ReleaseStore) readInfo() (*ReleaseInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("reading release metadata: %w", err)
	}
	var info ReleaseInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing release metadata: %w", err)
	}
	return &info, nil
}
