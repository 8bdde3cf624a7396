package pricing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldrush/polyprice/internal/marketdata"
)

func testDate(day int) time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}

func testSeries(n int) marketdata.Series {
	series := make(marketdata.Series, n)
	for i := 0; i < n; i++ {
		series[i] = marketdata.Observation{
			Date:           testDate(i),
			ReferenceIndex: 70 + float64(i),
			FXRate:         5.0,
			BasePrice:      math.NaN(),
		}
	}
	return series
}

func standardTestParams() CostParameters {
	return CostParameters{
		OceanFreightUSD: 60,
		InternalFreight: 0.15,
		TaxRatePct:      18,
		MarginPct:       10,
	}
}

func TestComputeWorkedExample(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())

	series := marketdata.Series{{
		Date:           testDate(0),
		ReferenceIndex: 70,
		FXRate:         5.0,
		BasePrice:      math.NaN(),
	}}

	priced, err := engine.Compute(series, standardTestParams())
	require.NoError(t, err)
	require.Len(t, priced, 1)

	row := priced[0]
	// base = 70*0.014 + 0.35 = 1.33
	assert.InDelta(t, 1.33, row.BasePrice, 1e-9)
	// CFR = 1.33 + 60/1000 = 1.39
	assert.InDelta(t, 1.39, row.CFR, 1e-9)
	// landed = 1.39 * 5.0 * 1.12 = 7.784
	assert.InDelta(t, 7.784, row.LandedCost, 1e-9)
	// operational = 7.784 + 0.15 = 7.934
	assert.InDelta(t, 7.934, row.OperationalCost, 1e-9)
	// net = 7.934 * 1.10 = 8.7274
	assert.InDelta(t, 8.7274, row.NetPrice, 1e-9)
	// final = 8.7274 / 0.82 ≈ 10.643
	assert.InDelta(t, 10.643, row.FinalPrice, 1e-3)
}

func TestComputeUsesStoredBasePrice(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())

	series := marketdata.Series{{
		Date:           testDate(0),
		ReferenceIndex: 70,
		FXRate:         5.0,
		BasePrice:      1.5, // stored value wins over the formula
	}}

	priced, err := engine.Compute(series, standardTestParams())
	require.NoError(t, err)
	assert.InDelta(t, 1.5, priced[0].BasePrice, 1e-9)
	assert.InDelta(t, 1.56, priced[0].CFR, 1e-9)
}

func TestComputeDeterministic(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())
	series := testSeries(10)
	params := standardTestParams()

	first, err := engine.Compute(series, params)
	require.NoError(t, err)
	second, err := engine.Compute(series, params)
	require.NoError(t, err)

	assert.Equal(t, first.FinalPrices(), second.FinalPrices())
	for i := range first {
		if !math.IsNaN(first[i].TrailingAverage) {
			assert.InDelta(t, first[i].TrailingAverage, second[i].TrailingAverage, 0)
		} else {
			assert.True(t, math.IsNaN(second[i].TrailingAverage))
		}
	}
}

func TestComputeMonotonicity(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())
	series := testSeries(5)
	base := standardTestParams()

	baseline, err := engine.Compute(series, base)
	require.NoError(t, err)

	cases := map[string]CostParameters{
		"ocean_freight":    {OceanFreightUSD: base.OceanFreightUSD + 20, InternalFreight: base.InternalFreight, TaxRatePct: base.TaxRatePct, MarginPct: base.MarginPct},
		"internal_freight": {OceanFreightUSD: base.OceanFreightUSD, InternalFreight: base.InternalFreight + 0.1, TaxRatePct: base.TaxRatePct, MarginPct: base.MarginPct},
		"tax_rate":         {OceanFreightUSD: base.OceanFreightUSD, InternalFreight: base.InternalFreight, TaxRatePct: base.TaxRatePct + 5, MarginPct: base.MarginPct},
		"margin":           {OceanFreightUSD: base.OceanFreightUSD, InternalFreight: base.InternalFreight, TaxRatePct: base.TaxRatePct, MarginPct: base.MarginPct + 5},
	}

	for name, params := range cases {
		increased, err := engine.Compute(series, params)
		require.NoError(t, err, name)
		for i := range increased {
			assert.Greater(t, increased[i].FinalPrice, baseline[i].FinalPrice,
				"increasing %s should raise the final price at every point", name)
		}
	}
}

func TestComputeTaxAtLimit(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())
	params := standardTestParams()
	params.TaxRatePct = 100

	_, err := engine.Compute(testSeries(3), params)
	require.Error(t, err)

	var paramErr *ParameterError
	assert.True(t, errors.As(err, &paramErr))
	assert.Equal(t, "tax_rate_pct", paramErr.Parameter)
}

func TestComputeNegativeFreight(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())
	params := standardTestParams()
	params.OceanFreightUSD = -1

	_, err := engine.Compute(testSeries(3), params)
	var paramErr *ParameterError
	require.True(t, errors.As(err, &paramErr))
}

func TestComputeEmptySeries(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())
	_, err := engine.Compute(marketdata.Series{}, standardTestParams())
	assert.Error(t, err)
}

func TestTrailingAverage(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())

	priced, err := engine.Compute(testSeries(8), standardTestParams())
	require.NoError(t, err)

	// First six points have no trailing window yet
	for i := 0; i < 6; i++ {
		assert.True(t, math.IsNaN(priced[i].TrailingAverage), "point %d", i)
	}

	// Seventh point is the mean of the first seven final prices
	sum := 0.0
	for i := 0; i < 7; i++ {
		sum += priced[i].FinalPrice
	}
	assert.InDelta(t, sum/7, priced[6].TrailingAverage, 1e-9)
}

func TestTrailingAverageShortSeries(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())

	priced, err := engine.Compute(testSeries(5), standardTestParams())
	require.NoError(t, err)
	for _, row := range priced {
		assert.True(t, math.IsNaN(row.TrailingAverage))
	}
}

func TestTrendChangeExactWindow(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())

	priced, err := engine.Compute(testSeries(8), standardTestParams())
	require.NoError(t, err)

	trend, err := engine.TrendChange(priced, 7)
	require.NoError(t, err)
	assert.Equal(t, priced[7].Date, trend.CurrentDate)
	assert.Equal(t, priced[0].Date, trend.ReferenceDate)

	expected := (priced[7].FinalPrice - priced[0].FinalPrice) / priced[0].FinalPrice * 100
	assert.InDelta(t, expected, trend.VariationPct, 1e-9)
}

func TestTrendChangePrefersEarlierOnTie(t *testing.T) {
	engine := NewEngine(FormulaV10, zerolog.Nop())

	// Gap series: target date falls exactly between two observations
	series := marketdata.Series{
		{Date: testDate(0), ReferenceIndex: 70, FXRate: 5.0, BasePrice: math.NaN()},
		{Date: testDate(2), ReferenceIndex: 72, FXRate: 5.0, BasePrice: math.NaN()},
		{Date: testDate(8), ReferenceIndex: 74, FXRate: 5.0, BasePrice: math.NaN()},
	}
	priced, err := engine.Compute(series, standardTestParams())
	require.NoError(t, err)

	// Current is day 8, window 7 targets day 1: days 0 and 2 tie
	trend, err := engine.TrendChange(priced, 7)
	require.NoError(t, err)
	assert.Equal(t, testDate(0), trend.ReferenceDate)
}
