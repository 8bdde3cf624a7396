package etl

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldrush/polyprice/internal/database"
	"github.com/goldrush/polyprice/internal/marketdata"
	"github.com/goldrush/polyprice/internal/pricing"
)

type stubQuotes struct {
	series marketdata.Series
	err    error
	calls  int
}

func (s *stubQuotes) DailyQuotes(ctx context.Context, from, to time.Time) (marketdata.Series, error) {
	s.calls++
	return s.series, s.err
}

type spyCache struct {
	invalidations int
}

func (c *spyCache) InvalidateAll() { c.invalidations++ }

func newTestJob(t *testing.T, quotes *stubQuotes, threshold float64) (*Job, *marketdata.Warehouse, *spyCache) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	logger := zerolog.Nop()
	warehouse := marketdata.NewWarehouse(db.Conn(), logger)
	cache := &spyCache{}
	job := NewJob(Config{
		Warehouse:      warehouse,
		Quotes:         quotes,
		Engine:         pricing.NewEngine(pricing.DefaultVariant(), logger),
		Cache:          cache,
		DB:             db.Conn(),
		AlertThreshold: threshold,
		Log:            logger,
	})
	return job, warehouse, cache
}

func quoteSeries(end time.Time, n int) marketdata.Series {
	series := make(marketdata.Series, n)
	for i := range series {
		series[i] = marketdata.Observation{
			Date:           end.AddDate(0, 0, i-n+1),
			ReferenceIndex: 70,
			FXRate:         5.0,
			BasePrice:      math.NaN(),
		}
	}
	return series
}

func TestRunSyncsAndInvalidatesCache(t *testing.T) {
	end := marketdata.Day(time.Now().UTC())
	quotes := &stubQuotes{series: quoteSeries(end, 5)}
	job, warehouse, cache := newTestJob(t, quotes, 0.05)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, 5, report.RowsSynced)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 1, cache.invalidations)

	// base prices were derived before storage
	stored, err := warehouse.GetRange(end.AddDate(0, 0, -10))
	require.NoError(t, err)
	require.Len(t, stored, 5)
	assert.InDelta(t, 1.33, stored[0].BasePrice, 1e-9)
}

func TestRunIncrementalWindow(t *testing.T) {
	end := marketdata.Day(time.Now().UTC())
	quotes := &stubQuotes{series: quoteSeries(end, 5)}
	job, _, cache := newTestJob(t, quotes, 0.05)

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	// warehouse now ends today: the next run finds nothing to sync and
	// leaves the cache alone
	quotes.series = nil
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.RowsSynced)
	assert.Equal(t, 1, cache.invalidations)
}

func TestRunRecordsFailure(t *testing.T) {
	quotes := &stubQuotes{err: errors.New("provider down")}
	job, _, cache := newTestJob(t, quotes, 0.05)

	report, err := job.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, "failed", report.Status)
	assert.Contains(t, report.Message, "provider down")
	assert.Zero(t, cache.invalidations)

	// the failed run still lands in the history
	runs, err := job.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
}

func TestRunFiresAlertOnPriceJump(t *testing.T) {
	end := marketdata.Day(time.Now().UTC())
	series := quoteSeries(end, 10)
	// reference index jumps 50% over the last week
	for i := 5; i < 10; i++ {
		series[i].ReferenceIndex = 105
		series[i].BasePrice = math.NaN()
	}
	quotes := &stubQuotes{series: series}
	job, _, _ := newTestJob(t, quotes, 0.05)

	report, err := job.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Alert)
	assert.Equal(t, "up", report.Alert.Direction)
	assert.Greater(t, report.Alert.VariationPct, 5.0)
	assert.Contains(t, report.Alert.Recommendation, "anticipating")
}

func TestRunNoAlertOnFlatPrices(t *testing.T) {
	end := marketdata.Day(time.Now().UTC())
	quotes := &stubQuotes{series: quoteSeries(end, 10)}
	job, _, _ := newTestJob(t, quotes, 0.05)

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.Alert)
}

func TestRecentRunsNewestFirst(t *testing.T) {
	end := marketdata.Day(time.Now().UTC())
	quotes := &stubQuotes{series: quoteSeries(end, 3)}
	job, _, _ := newTestJob(t, quotes, 0.05)

	first, err := job.Run(context.Background())
	require.NoError(t, err)
	second, err := job.Run(context.Background())
	require.NoError(t, err)

	runs, err := job.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}
