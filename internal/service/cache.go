package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/snograph/snoquery/pkg/metrics"
	"github.com/snograph/snoquery/pkg/redis"
)

const (
	pageCacheKeyPrefix = "snoquery:page:"
	pageCacheTTL       = 5 * time.Minute
)

// pageCache caches serialized result pages in Redis, keyed by the full
// request shape. singleflight prevents a stampede of identical queries
// from all executing against the snapshot on a cold key. Entries carry
// the release effective time in the key, so a new release never serves
// pages built from the previous one.
type pageCache struct {
	client  *redis.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
	release string
	group   singleflight.Group
}

func newPageCache(client *redis.Client, m *metrics.Metrics, release string) *pageCache {
	return &pageCache{
		client:  client,
		metrics: m,
		logger:  slog.Default().With("component", "page-cache"),
		release: release,
	}
}

func (c *pageCache) key(constraint, term string, offset, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d|%d", c.release, constraint, term, offset, limit)))
	return pageCacheKeyPrefix + hex.EncodeToString(sum[:])
}

// flush drops every cached page. Keys are release-scoped, so this only
// matters for reclaiming pages a previous release left behind.
func (c *pageCache) flush(ctx context.Context) (int64, error) {
	return c.client.FlushByPattern(ctx, pageCacheKeyPrefix+"*")
}

// getOrCompute returns the cached page for the key, or runs compute and
// stores its result. Cache failures degrade to a direct compute; a broken
// Redis must not fail queries.
func (c *pageCache) getOrCompute(ctx context.Context, key string, compute func() (*ConceptPage, error)) (*ConceptPage, error) {
	if cached, err := c.client.Get(ctx, key); err == nil {
		var page ConceptPage
		if err := json.Unmarshal([]byte(cached), &page); err == nil {
			c.metrics.PageCacheHits.Inc()
			return &page, nil
		}
	} else if !redis.IsNilError(err) {
		c.logger.Warn("page cache read failed", "error", err)
	}
	c.metrics.PageCacheMisses.Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		page, err := compute()
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(page); err == nil {
			if err := c.client.Set(ctx, key, string(data), pageCacheTTL); err != nil {
				c.logger.Warn("page cache write failed", "error", err)
			}
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ConceptPage), nil
}
