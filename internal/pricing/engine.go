package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/marketdata"
)

// trailingWindow is the number of points in the smoothing average.
const trailingWindow = 7

// Engine applies the cost-buildup cascade to market series. It is a pure
// transformation: same series and parameters always produce the same rows.
type Engine struct {
	variant FormulaVariant
	log     zerolog.Logger
}

// NewEngine creates a cost engine bound to one formula variant.
func NewEngine(variant FormulaVariant, log zerolog.Logger) *Engine {
	return &Engine{
		variant: variant,
		log:     log.With().Str("component", "pricing-engine").Str("formula", variant.Name).Logger(),
	}
}

// Variant returns the formula variant this engine prices with.
func (e *Engine) Variant() FormulaVariant { return e.variant }

// Compute runs the full cascade over a series. Parameters are validated
// before any row is touched. Rows keep the input order; the trailing average
// column is filled only when the series has at least seven points.
func (e *Engine) Compute(series marketdata.Series, params CostParameters) (PricedSeries, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if series.Empty() {
		return nil, fmt.Errorf("cannot price an empty series")
	}

	priced := make(PricedSeries, len(series))
	for i, obs := range series {
		base := observationBase(obs, e.variant)
		cfr := base + params.OceanFreightUSD/1000
		landed := cfr * obs.FXRate * ImportMultiplier
		operational := landed + params.InternalFreight
		net := operational * (1 + params.MarginPct/100)
		final := net / (1 - params.TaxRatePct/100)

		priced[i] = PricedRow{
			Date:            obs.Date,
			ReferenceIndex:  obs.ReferenceIndex,
			FXRate:          obs.FXRate,
			BasePrice:       base,
			CFR:             cfr,
			LandedCost:      landed,
			OperationalCost: operational,
			NetPrice:        net,
			FinalPrice:      final,
			TrailingAverage: math.NaN(),
		}
	}

	if len(priced) >= trailingWindow {
		avg := talib.Sma(priced.FinalPrices(), trailingWindow)
		for i := range priced {
			if i >= trailingWindow-1 {
				priced[i].TrailingAverage = avg[i]
			}
		}
	}

	e.log.Debug().Int("rows", len(priced)).Msg("cost cascade computed")
	return priced, nil
}

// TrendChange compares the latest final price against the one nearest to
// windowDays earlier. Ties between an earlier and a later candidate resolve
// to the earlier date.
func (e *Engine) TrendChange(priced PricedSeries, windowDays int) (TrendReport, error) {
	if priced.Empty() {
		return TrendReport{}, fmt.Errorf("cannot compute trend over an empty series")
	}
	current := priced[len(priced)-1]
	target := current.Date.AddDate(0, 0, -windowDays)
	ref := priced[nearestIndex(priced.Dates(), target)]
	if ref.FinalPrice == 0 {
		return TrendReport{}, fmt.Errorf("reference price at %s is zero", ref.Date.Format("2006-01-02"))
	}
	return TrendReport{
		CurrentDate:    current.Date,
		CurrentPrice:   current.FinalPrice,
		ReferenceDate:  ref.Date,
		ReferencePrice: ref.FinalPrice,
		VariationPct:   (current.FinalPrice - ref.FinalPrice) / ref.FinalPrice * 100,
	}, nil
}

// nearestIndex picks the index of the date closest to target, preferring the
// earlier date on equal distance. The slice must be non-empty.
func nearestIndex(dates []time.Time, target time.Time) int {
	best := 0
	bestDist := absDuration(dates[0].Sub(target))
	for i := 1; i < len(dates); i++ {
		dist := absDuration(dates[i].Sub(target))
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
