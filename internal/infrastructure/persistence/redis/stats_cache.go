package redis

import (
	"context"
	"errors"

	"github.com/robolab-hub/robolab-progress-hub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache caches assembled stats responses per student. It implements both
// query.StatsCache (read-through on the stats endpoint) and the command-side
// invalidator, so every XP-changing command drops the stale view.
type StatsCache struct {
	cache *Cache
}

// NewStatsCache creates a new StatsCache.
func NewStatsCache(cache *Cache) *StatsCache {
	return &StatsCache{cache: cache}
}

// Get returns the cached stats view or query.ErrStatsCacheMiss.
func (c *StatsCache) Get(ctx context.Context, studentID string) (*query.StatsResponse, error) {
	var resp query.StatsResponse
	if err := c.cache.Get(ctx, StatsKey(studentID), &resp); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, query.ErrStatsCacheMiss
		}
		return nil, err
	}
	return &resp, nil
}

// Set stores the stats view with the standard TTL.
func (c *StatsCache) Set(ctx context.Context, studentID string, stats *query.StatsResponse) error {
	return c.cache.Set(ctx, StatsKey(studentID), stats, TTLStatsCache)
}

// Invalidate drops the cached view for a student.
func (c *StatsCache) Invalidate(ctx context.Context, studentID string) error {
	return c.cache.Delete(ctx, StatsKey(studentID))
}
