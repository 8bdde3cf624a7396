package pricing

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/marketdata"
)

// Parameter names accepted by the sensitivity analyzer.
const (
	ParamOceanFreight    = "ocean_freight"
	ParamInternalFreight = "internal_freight"
	ParamTaxRate         = "tax_rate"
	ParamMargin          = "margin"
)

// DefaultDeltaRanges are the perturbations applied when the caller supplies
// none: what-if spans wide enough to separate the parameters' impact.
var DefaultDeltaRanges = map[string]DeltaRange{
	ParamOceanFreight:    {Min: -20, Max: 20},
	ParamInternalFreight: {Min: -0.05, Max: 0.05},
	ParamTaxRate:         {Min: -2, Max: 2},
	ParamMargin:          {Min: -3, Max: 3},
}

// MarketDataSource is the slice of the data source the analyzer needs.
type MarketDataSource interface {
	Fetch(ctx context.Context, windowDays int) (marketdata.Series, error)
}

// SensitivityResult carries the ranked entries plus a status so callers can
// distinguish "no impact" from "no data".
type SensitivityResult struct {
	Entries []SensitivityEntry `json:"entries"`
	Status  string             `json:"status"`
}

// SensitivityAnalyzer measures how the final price reacts to one-at-a-time
// cost parameter perturbations over live market data.
type SensitivityAnalyzer struct {
	source MarketDataSource
	engine *Engine
	log    zerolog.Logger
}

func NewSensitivityAnalyzer(source MarketDataSource, engine *Engine, log zerolog.Logger) *SensitivityAnalyzer {
	return &SensitivityAnalyzer{
		source: source,
		engine: engine,
		log:    log.With().Str("component", "sensitivity").Logger(),
	}
}

// Analyze perturbs each named parameter by its min and max delta, holding the
// others fixed, and ranks the resulting last-final-price impacts. Unknown
// parameter names are logged and skipped. When market data cannot be fetched
// the result carries an explanatory status instead of an error.
func (a *SensitivityAnalyzer) Analyze(ctx context.Context, base CostParameters, ranges map[string]DeltaRange, windowDays int) (SensitivityResult, error) {
	if err := base.Validate(); err != nil {
		return SensitivityResult{}, err
	}
	if len(ranges) == 0 {
		ranges = DefaultDeltaRanges
	}

	series, err := a.source.Fetch(ctx, windowDays)
	if err != nil || series.Empty() {
		a.log.Warn().Err(err).Int("window_days", windowDays).Msg("no market data for sensitivity analysis")
		return SensitivityResult{Entries: []SensitivityEntry{}, Status: "market data unavailable"}, nil
	}

	basePriced, err := a.engine.Compute(series, base)
	if err != nil {
		return SensitivityResult{}, err
	}
	basePrice, _ := basePriced.LastFinalPrice()
	if basePrice == 0 {
		return SensitivityResult{Entries: []SensitivityEntry{}, Status: "base price is zero"}, nil
	}

	entries := make([]SensitivityEntry, 0, 2*len(ranges))
	for name, rng := range ranges {
		for _, delta := range []float64{rng.Min, rng.Max} {
			if delta == 0 {
				continue
			}
			perturbed, newValue, ok := applyDelta(base, name, delta)
			if !ok {
				a.log.Warn().Str("parameter", name).Msg("unknown parameter skipped")
				break
			}
			priced, err := a.engine.Compute(series, perturbed)
			if err != nil {
				a.log.Warn().Err(err).Str("parameter", name).Float64("delta", delta).Msg("perturbation skipped")
				continue
			}
			price, _ := priced.LastFinalPrice()
			entries = append(entries, SensitivityEntry{
				Parameter:      name,
				Delta:          delta,
				NewValue:       newValue,
				PriceImpact:    price - basePrice,
				PriceImpactPct: (price - basePrice) / basePrice * 100,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].PriceImpactPct) > math.Abs(entries[j].PriceImpactPct)
	})
	return SensitivityResult{Entries: entries, Status: "ok"}, nil
}

// applyDelta returns a copy of params with one named parameter shifted.
func applyDelta(params CostParameters, name string, delta float64) (CostParameters, float64, bool) {
	switch name {
	case ParamOceanFreight:
		params.OceanFreightUSD += delta
		return params, params.OceanFreightUSD, true
	case ParamInternalFreight:
		params.InternalFreight += delta
		return params, params.InternalFreight, true
	case ParamTaxRate:
		params.TaxRatePct += delta
		return params, params.TaxRatePct, true
	case ParamMargin:
		params.MarginPct += delta
		return params, params.MarginPct, true
	default:
		return params, 0, false
	}
}
