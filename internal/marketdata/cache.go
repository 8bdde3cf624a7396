package marketdata

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SeriesCache is an in-memory TTL cache for fetched series, keyed by window
// size. Concurrent refreshes for the same key collapse into a single
// underlying fetch. The clock is injectable so expiry is testable without
// sleeping.
type SeriesCache struct {
	mu      sync.RWMutex
	entries map[int]cacheEntry
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	series    Series
	expiresAt time.Time
}

// NewSeriesCache creates a cache with the given TTL
func NewSeriesCache(ttl time.Duration) *SeriesCache {
	return &SeriesCache{
		entries: make(map[int]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock injects a clock for tests
func (c *SeriesCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// GetOrFetch returns the cached series for windowDays when fresh, otherwise
// calls fetch exactly once per key regardless of concurrent callers and
// caches the result.
func (c *SeriesCache) GetOrFetch(windowDays int, fetch func() (Series, error)) (Series, error) {
	c.mu.RLock()
	entry, ok := c.entries[windowDays]
	fresh := ok && c.now().Before(entry.expiresAt)
	c.mu.RUnlock()

	if fresh {
		return entry.series, nil
	}

	result, err, _ := c.group.Do(strconv.Itoa(windowDays), func() (interface{}, error) {
		// Re-check under the flight: another caller may have refreshed
		// while this one waited on the group.
		c.mu.RLock()
		entry, ok := c.entries[windowDays]
		fresh := ok && c.now().Before(entry.expiresAt)
		c.mu.RUnlock()
		if fresh {
			return entry.series, nil
		}

		series, err := fetch()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[windowDays] = cacheEntry{
			series:    series,
			expiresAt: c.now().Add(c.ttl),
		}
		c.mu.Unlock()

		return series, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(Series), nil
}

// Invalidate drops the cached series for a window key
func (c *SeriesCache) Invalidate(windowDays int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, windowDays)
}

// InvalidateAll drops every cached entry, e.g. after an ETL run lands new data
func (c *SeriesCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]cacheEntry)
}
