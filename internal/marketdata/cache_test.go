package marketdata

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedTestSeries() Series {
	return Series{{Date: day(0), ReferenceIndex: 70, FXRate: 5.0, BasePrice: 1.33}}
}

func TestCacheServesFreshEntry(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cache := NewSeriesCache(time.Hour)
	cache.SetClock(func() time.Time { return now })

	fetches := 0
	fetch := func() (Series, error) {
		fetches++
		return cachedTestSeries(), nil
	}

	_, err := cache.GetOrFetch(30, fetch)
	require.NoError(t, err)
	_, err = cache.GetOrFetch(30, fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, fetches)
}

func TestCacheExpires(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cache := NewSeriesCache(time.Hour)
	cache.SetClock(func() time.Time { return now })

	fetches := 0
	fetch := func() (Series, error) {
		fetches++
		return cachedTestSeries(), nil
	}

	_, err := cache.GetOrFetch(30, fetch)
	require.NoError(t, err)

	// Advance past the TTL
	now = now.Add(2 * time.Hour)
	_, err = cache.GetOrFetch(30, fetch)
	require.NoError(t, err)

	assert.Equal(t, 2, fetches)
}

func TestCacheKeysAreIndependent(t *testing.T) {
	cache := NewSeriesCache(time.Hour)

	fetches := 0
	fetch := func() (Series, error) {
		fetches++
		return cachedTestSeries(), nil
	}

	_, err := cache.GetOrFetch(7, fetch)
	require.NoError(t, err)
	_, err = cache.GetOrFetch(30, fetch)
	require.NoError(t, err)

	assert.Equal(t, 2, fetches)
}

func TestCacheInvalidateAll(t *testing.T) {
	cache := NewSeriesCache(time.Hour)

	fetches := 0
	fetch := func() (Series, error) {
		fetches++
		return cachedTestSeries(), nil
	}

	_, err := cache.GetOrFetch(30, fetch)
	require.NoError(t, err)

	cache.InvalidateAll()
	_, err = cache.GetOrFetch(30, fetch)
	require.NoError(t, err)

	assert.Equal(t, 2, fetches)
}

func TestCacheCollapsesConcurrentFetches(t *testing.T) {
	cache := NewSeriesCache(time.Hour)

	var fetches int64
	fetch := func() (Series, error) {
		atomic.AddInt64(&fetches, 1)
		time.Sleep(50 * time.Millisecond)
		return cachedTestSeries(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := cache.GetOrFetch(30, fetch)
			assert.NoError(t, err)
			assert.NotEmpty(t, series)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&fetches),
		"concurrent callers for the same window should share one fetch")
}
