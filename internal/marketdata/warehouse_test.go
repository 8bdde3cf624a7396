package marketdata

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldrush/polyprice/internal/database"
)

func newTestWarehouse(t *testing.T) *Warehouse {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewWarehouse(db.Conn(), zerolog.Nop())
}

func TestWarehouseRoundTrip(t *testing.T) {
	w := newTestWarehouse(t)

	series := Series{
		{Date: day(0), ReferenceIndex: 70, FXRate: 5.0, BasePrice: 1.33},
		{Date: day(1), ReferenceIndex: 71, FXRate: 5.1, BasePrice: math.NaN()},
	}

	written, err := w.UpsertBatch(series)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	got, err := w.GetRange(day(0))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, day(0), got[0].Date)
	assert.Equal(t, 70.0, got[0].ReferenceIndex)
	assert.Equal(t, 1.33, got[0].BasePrice)
	// NULL base price round-trips as missing
	assert.True(t, math.IsNaN(got[1].BasePrice))
}

func TestWarehouseUpsertLastWriteWins(t *testing.T) {
	w := newTestWarehouse(t)

	_, err := w.UpsertBatch(Series{
		{Date: day(0), ReferenceIndex: 70, FXRate: 5.0, BasePrice: 1.33},
	})
	require.NoError(t, err)

	_, err = w.UpsertBatch(Series{
		{Date: day(0), ReferenceIndex: 75, FXRate: 5.2, BasePrice: 1.40},
	})
	require.NoError(t, err)

	got, err := w.GetRange(day(0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 75.0, got[0].ReferenceIndex)

	count, err := w.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWarehouseSkipsInvalidRows(t *testing.T) {
	w := newTestWarehouse(t)

	written, err := w.UpsertBatch(Series{
		{Date: day(0), ReferenceIndex: 70, FXRate: 5.0, BasePrice: 1.33},
		{Date: day(1), ReferenceIndex: math.NaN(), FXRate: 5.0, BasePrice: math.NaN()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
}

func TestWarehouseLatestDate(t *testing.T) {
	w := newTestWarehouse(t)

	_, ok, err := w.LatestDate()
	require.NoError(t, err)
	assert.False(t, ok, "empty warehouse has no latest date")

	_, err = w.UpsertBatch(Series{
		{Date: day(0), ReferenceIndex: 70, FXRate: 5.0, BasePrice: 1.33},
		{Date: day(3), ReferenceIndex: 71, FXRate: 5.1, BasePrice: 1.34},
	})
	require.NoError(t, err)

	latest, ok, err := w.LatestDate()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(3), latest)
}

func TestWarehouseGetRangeFiltersByDate(t *testing.T) {
	w := newTestWarehouse(t)

	_, err := w.UpsertBatch(Series{
		{Date: day(0), ReferenceIndex: 70, FXRate: 5.0, BasePrice: 1.33},
		{Date: day(5), ReferenceIndex: 71, FXRate: 5.1, BasePrice: 1.34},
	})
	require.NoError(t, err)

	got, err := w.GetRange(day(3))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, day(5), got[0].Date)
}
