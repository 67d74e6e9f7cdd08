package service

import (
	"context"
	"sync"
	"time"

	"github.com/aryan0dhankhar/admindash/pkg/cache"
)

const statsKey = "stats:dashboard"

// StatsSource computes fresh dashboard numbers
type StatsSource interface {
	Stats(ctx context.Context) (*Stats, error)
}

// StatsCache serves dashboard stats for up to ttl. Register Invalidate with
// Directory.OnChange so writes are visible immediately.
type StatsCache struct {
	source StatsSource
	cache  *cache.Cache[*Stats]
	ttl    time.Duration

	// gen counts invalidations; a result computed across one is not stored
	mu  sync.Mutex
	gen uint64
}

// NewStatsCache wraps source; a non-positive ttl disables caching
func NewStatsCache(source StatsSource, ttl time.Duration) *StatsCache {
	return &StatsCache{
		source: source,
		cache:  cache.New[*Stats](),
		ttl:    ttl,
	}
}

func (c *StatsCache) Stats(ctx context.Context) (*Stats, error) {
	if c.ttl <= 0 {
		return c.source.Stats(ctx)
	}
	if st, ok := c.cache.Get(statsKey); ok {
		return st, nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	st, err := c.source.Stats(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.cache.Set(statsKey, st, c.ttl)
	}
	c.mu.Unlock()
	return st, nil
}

// Invalidate drops the cached value and any computation still in flight
func (c *StatsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Invalidate("stats:")
}
