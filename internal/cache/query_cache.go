// Package cache implements the query cache (spec §4.5): an LRU+TTL cache of
// retrieval results with domain-scoped lazy invalidation, built on top of
// the generic pkg/cache LRU.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"episodic-memory/internal/types"
	pkgcache "episodic-memory/pkg/cache"
)

// Key is the hashable tuple a query result is cached under: (query, domain?,
// task_type?, time_start?, time_end?, limit). Empty string/zero fields
// signal "not set".
type Key struct {
	Query     string
	Domain    string
	TaskType  string
	TimeStart int64 // unix nanoseconds, 0 = unset
	TimeEnd   int64
	Limit     int
}

// Metrics tracks hits, misses, and invalidations as atomic counters so
// readers never block writers; evictions are read from the LRU's own stats.
type Metrics struct {
	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// Snapshot is a point-in-time read of Metrics.
type Snapshot struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	Invalidations int64
	Size          int
	Capacity      int
	HitRate       float64
}

// IsEffective reports whether the cache is pulling its weight: hit_rate >= 0.4.
func (s Snapshot) IsEffective() bool {
	return s.HitRate >= 0.4
}

// QueryCache is the domain-scoped, lazily-invalidated query result cache.
type QueryCache struct {
	mu          sync.RWMutex
	lru         *pkgcache.LRU[Key, []*types.Episode]
	domainIndex map[string]map[Key]struct{}
	invalidated map[Key]struct{}
	metrics     Metrics
	maxEntries  int
}

// DefaultMaxEntries and DefaultTTL match spec §4.5's stated defaults.
const (
	DefaultMaxEntries = 10000
	DefaultTTL        = 60 * time.Second
)

// New creates a QueryCache bounded to maxEntries with the given TTL.
func New(maxEntries int, ttl time.Duration) *QueryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache{
		lru:         pkgcache.New[Key, []*types.Episode](&pkgcache.Config{MaxEntries: maxEntries, TTL: ttl}),
		domainIndex: make(map[string]map[Key]struct{}),
		invalidated: make(map[Key]struct{}),
		maxEntries:  maxEntries,
	}
}

// Get returns cached values for key. A logically-invalidated key is treated
// as a miss, and its entry is removed from the LRU at that point.
func (c *QueryCache) Get(key Key) ([]*types.Episode, bool) {
	c.mu.RLock()
	_, invalid := c.invalidated[key]
	c.mu.RUnlock()

	if invalid {
		c.lru.Delete(key)
		c.metrics.misses.Add(1)
		return nil, false
	}

	value, ok := c.lru.Get(key)
	if !ok {
		c.metrics.misses.Add(1)
		return nil, false
	}
	c.metrics.hits.Add(1)
	return value, true
}

// Put stores values under key, indexing by domain when key.Domain is set and
// clearing any invalidation mark for key.
func (c *QueryCache) Put(key Key, values []*types.Episode) {
	c.lru.Set(key, values)

	c.mu.Lock()
	defer c.mu.Unlock()

	if key.Domain != "" {
		set, ok := c.domainIndex[key.Domain]
		if !ok {
			set = make(map[Key]struct{})
			c.domainIndex[key.Domain] = set
		}
		set[key] = struct{}{}
	}
	delete(c.invalidated, key)
}

// InvalidateAll clears the cache entirely, counting every prior entry as an
// invalidation.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.invalidations.Add(int64(c.lru.Size()))
	c.lru.Clear()
	c.domainIndex = make(map[string]map[Key]struct{})
	c.invalidated = make(map[Key]struct{})
}

// InvalidateDomain marks every key cached under domain as invalid. Removal
// from the LRU itself is lazy: it happens on the next Get (or natural
// eviction), not here.
func (c *QueryCache) InvalidateDomain(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.domainIndex[domain]
	if !ok {
		return
	}
	for key := range keys {
		c.invalidated[key] = struct{}{}
	}
	c.metrics.invalidations.Add(int64(len(keys)))
	delete(c.domainIndex, domain)
}

// Stats returns a metrics snapshot, including the derived hit rate.
func (c *QueryCache) Stats() Snapshot {
	hits := c.metrics.hits.Load()
	misses := c.metrics.misses.Load()
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	lruStats := c.lru.Stats()
	evictions, _ := lruStats["evictions"].(int64)

	return Snapshot{
		Hits:          hits,
		Misses:        misses,
		Evictions:     evictions,
		Invalidations: c.metrics.invalidations.Load(),
		Size:          c.lru.Size(),
		Capacity:      c.maxEntries,
		HitRate:       hitRate,
	}
}
