package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/goldrush/polyprice/internal/marketdata"
)

// ImportMultiplier converts CFR in domestic currency into landed cost. It
// bundles import duty and port fees and is not user-configurable.
const ImportMultiplier = 1.12

// Standard cost parameters used for snapshots and alerting.
var StandardParameters = CostParameters{
	OceanFreightUSD: 60,
	InternalFreight: 0.15,
	TaxRatePct:      18,
	MarginPct:       10,
}

// CostParameters are the per-call inputs of the cost cascade.
type CostParameters struct {
	OceanFreightUSD float64 `json:"ocean_freight_usd"`
	InternalFreight float64 `json:"internal_freight"`
	TaxRatePct      float64 `json:"tax_rate_pct"`
	MarginPct       float64 `json:"margin_pct"`
}

// ParameterError signals cost parameters the cascade is undefined for. It is
// raised before any math runs so a wrong number can never reach a caller via
// NaN or Inf propagation.
type ParameterError struct {
	Parameter string
	Value     float64
	Reason    string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid cost parameter %s=%g: %s", e.Parameter, e.Value, e.Reason)
}

// Validate rejects parameters the cascade is undefined for.
// The gross-up tax step divides by (1 - tax/100), so tax must stay below 100.
func (p CostParameters) Validate() error {
	if p.TaxRatePct >= 100 {
		return &ParameterError{Parameter: "tax_rate_pct", Value: p.TaxRatePct, Reason: "gross-up tax is undefined at or above 100%"}
	}
	if p.TaxRatePct < 0 {
		return &ParameterError{Parameter: "tax_rate_pct", Value: p.TaxRatePct, Reason: "must not be negative"}
	}
	if p.OceanFreightUSD < 0 {
		return &ParameterError{Parameter: "ocean_freight_usd", Value: p.OceanFreightUSD, Reason: "must not be negative"}
	}
	if p.InternalFreight < 0 {
		return &ParameterError{Parameter: "internal_freight", Value: p.InternalFreight, Reason: "must not be negative"}
	}
	if p.MarginPct < 0 {
		return &ParameterError{Parameter: "margin_pct", Value: p.MarginPct, Reason: "must not be negative"}
	}
	return nil
}

// PricedRow is one observation with the full cost cascade applied.
// TrailingAverage is NaN until seven points exist.
type PricedRow struct {
	Date            time.Time `json:"date"`
	ReferenceIndex  float64   `json:"reference_index"`
	FXRate          float64   `json:"fx_rate"`
	BasePrice       float64   `json:"base_price"`
	CFR             float64   `json:"cfr"`
	LandedCost      float64   `json:"landed_cost"`
	OperationalCost float64   `json:"operational_cost"`
	NetPrice        float64   `json:"net_price"`
	FinalPrice      float64   `json:"final_price"`
	TrailingAverage float64   `json:"trailing_average"`
}

// MarshalJSON emits a missing trailing average as null; encoding/json
// rejects NaN outright.
func (r PricedRow) MarshalJSON() ([]byte, error) {
	type alias PricedRow
	out := struct {
		alias
		TrailingAverage *float64 `json:"trailing_average"`
	}{alias: alias(r)}
	if !math.IsNaN(r.TrailingAverage) {
		out.TrailingAverage = &r.TrailingAverage
	}
	return json.Marshal(out)
}

// PricedSeries is the cost cascade applied over a whole market series.
type PricedSeries []PricedRow

// Len returns the number of priced rows
func (p PricedSeries) Len() int { return len(p) }

// Empty reports whether there are no priced rows
func (p PricedSeries) Empty() bool { return len(p) == 0 }

// FinalPrices returns the final price column in series order
func (p PricedSeries) FinalPrices() []float64 {
	prices := make([]float64, len(p))
	for i, row := range p {
		prices[i] = row.FinalPrice
	}
	return prices
}

// LastFinalPrice returns the most recent final price; ok is false when empty
func (p PricedSeries) LastFinalPrice() (float64, bool) {
	if len(p) == 0 {
		return 0, false
	}
	return p[len(p)-1].FinalPrice, true
}

// Dates returns the row dates in series order
func (p PricedSeries) Dates() []time.Time {
	dates := make([]time.Time, len(p))
	for i, row := range p {
		dates[i] = row.Date
	}
	return dates
}

// TrendReport describes the price move over a trailing window. The reference
// point is resolved by nearest-date lookup, never by row offset: series can
// have gaps.
type TrendReport struct {
	CurrentDate    time.Time `json:"current_date"`
	CurrentPrice   float64   `json:"current_price"`
	ReferenceDate  time.Time `json:"reference_date"`
	ReferencePrice float64   `json:"reference_price"`
	VariationPct   float64   `json:"variation_pct"`
}

// ConfidenceReport is the composite trust score for a priced series.
type ConfidenceReport struct {
	Score            float64  `json:"score"`
	FreshnessDays    *int     `json:"freshness_days,omitempty"`
	Completeness     float64  `json:"completeness"`
	VolatilityIndex  *float64 `json:"volatility_index,omitempty"`
	ConsistencyScore float64  `json:"consistency_score"`
	Recommendation   string   `json:"recommendation"`
}

// SensitivityEntry is the measured impact of one parameter perturbation.
type SensitivityEntry struct {
	Parameter      string  `json:"parameter"`
	Delta          float64 `json:"delta"`
	NewValue       float64 `json:"new_value"`
	PriceImpact    float64 `json:"price_impact"`
	PriceImpactPct float64 `json:"price_impact_pct"`
}

// DeltaRange is the (minDelta, maxDelta) perturbation pair for one parameter.
type DeltaRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// observationBase resolves the base price for a row: the stored derived value
// when present, otherwise this variant's formula over the reference index.
func observationBase(obs marketdata.Observation, variant FormulaVariant) float64 {
	if !math.IsNaN(obs.BasePrice) {
		return obs.BasePrice
	}
	return variant.BasePrice(obs.ReferenceIndex)
}
