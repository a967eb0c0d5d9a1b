package service

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/snograph/snoquery/internal/index"
	"github.com/snograph/snoquery/pkg/errors"
	"github.com/snograph/snoquery/pkg/metrics"
)

// refsetCache memoises refset display names. It is scoped to one snapshot,
// so a new release starts with an empty cache and stale names cannot leak
// across releases. singleflight collapses concurrent lookups of the same
// refset into a single snapshot read.
type refsetCache struct {
	snap    *index.Snapshot
	metrics *metrics.Metrics

	mu    sync.RWMutex
	names map[string]string
	group singleflight.Group
}

func newRefsetCache(snap *index.Snapshot, m *metrics.Metrics) *refsetCache {
	return &refsetCache{
		snap:    snap,
		metrics: m,
		names:   make(map[string]string),
	}
}

// DisplayName returns the fully specified name of the refset concept,
// reading the snapshot on first use. An unknown refset id is a data error
// in the loaded release and surfaces as a not-found.
func (c *refsetCache) DisplayName(refsetID string) (string, error) {
	c.mu.RLock()
	name, ok := c.names[refsetID]
	c.mu.RUnlock()
	if ok {
		if c.metrics != nil {
			c.metrics.RefsetCacheHits.Inc()
		}
		return name, nil
	}
	if c.metrics != nil {
		c.metrics.RefsetCacheMisses.Inc()
	}
	v, err, _ := c.group.Do(refsetID, func() (any, error) {
		ords := c.snap.Postings(index.FieldID, refsetID)
		if len(ords) == 0 {
			return nil, errors.ConceptNotFound(refsetID)
		}
		fsn := c.snap.Doc(ords[0]).Get(index.FieldFSN)
		c.mu.Lock()
		c.names[refsetID] = fsn
		c.mu.Unlock()
		return fsn, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Memberships resolves the display name for every refset id, preserving
// input order.
func (c *refsetCache) Memberships(refsetIDs []string) ([]RefsetMembership, error) {
	if len(refsetIDs) == 0 {
		return nil, nil
	}
	members := make([]RefsetMembership, 0, len(refsetIDs))
	for _, id := range refsetIDs {
		name, err := c.DisplayName(id)
		if err != nil {
			return nil, err
		}
		members = append(members, RefsetMembership{ID: id, DisplayName: name})
	}
	return members, nil
}
