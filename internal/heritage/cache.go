package heritage

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// quantizePrecision is the number of decimal places a coordinate is rounded
// to for cache keying. Five decimals is about 1.1 m of latitude, so two
// queries differing only by sub-meter geocoding noise share a key.
const quantizePrecision = 5

// QuantizeKey returns the cache key for a coordinate.
func QuantizeKey(lat, lng float64) string {
	scale := math.Pow10(quantizePrecision)
	qLat := math.Round(lat*scale) / scale
	qLng := math.Round(lng*scale) / scale
	return fmt.Sprintf("%.*f,%.*f", quantizePrecision, qLat, quantizePrecision, qLng)
}

// ResultCache memoizes resolution outcomes keyed by quantized coordinate.
// Entries expire after a TTL and the whole cache is cleared when the dataset
// snapshot reloads. Safe for concurrent use.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	order      []string // eviction order: front=oldest insert
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	result    *model.Resolution
	expiresAt time.Time
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewResultCache creates a ResultCache with the given capacity and TTL.
func NewResultCache(maxEntries int, ttl time.Duration) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &ResultCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns the cached resolution for a coordinate, or nil on miss or
// expiry.
func (c *ResultCache) Get(lat, lng float64, now time.Time) *model.Resolution {
	key := QuantizeKey(lat, lng)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil
	}

	c.hits.Add(1)
	return entry.result
}

// Put stores a resolution, evicting the oldest entries at capacity.
func (c *ResultCache) Put(lat, lng float64, res *model.Resolution, now time.Time) {
	key := QuantizeKey(lat, lng)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{result: res, expiresAt: now.Add(c.ttl)}
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cacheEntry{result: res, expiresAt: now.Add(c.ttl)}
	c.order = append(c.order, key)
}

// Clear drops every entry. Called when the spatial store loads a new
// snapshot so stale classifications are never served after a dataset update.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = nil
}

// Stats returns cache counters.
func (c *ResultCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *ResultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
