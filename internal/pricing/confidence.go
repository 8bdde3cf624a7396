package pricing

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/goldrush/polyprice/internal/marketdata"
)

// Component weights of the composite confidence score.
const (
	weightFreshness    = 0.3
	weightCompleteness = 0.3
	weightVolatility   = 0.2
	weightConsistency  = 0.2
)

// Recommendation tiers by score band.
const (
	recommendationHigh   = "high confidence, suitable for negotiation"
	recommendationMedium = "medium confidence, cross-check against a second source"
	recommendationLow    = "low confidence, refresh market data before relying on this price"
)

// ConfidenceScorer grades how much a priced series can be trusted. Each
// component is clamped into [0, 1] before weighting so one degenerate input
// cannot drag the composite negative.
type ConfidenceScorer struct {
	now func() time.Time
}

func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{now: time.Now}
}

// NewConfidenceScorerAt pins the clock, for tests.
func NewConfidenceScorerAt(now func() time.Time) *ConfidenceScorer {
	return &ConfidenceScorer{now: now}
}

// Score grades a priced series. An empty series is not an error: it scores
// zero in the lowest tier so callers can still render a report.
func (s *ConfidenceScorer) Score(priced PricedSeries, quality *marketdata.QualityReport) ConfidenceReport {
	if priced.Empty() {
		return ConfidenceReport{Score: 0, Recommendation: recommendationLow}
	}

	report := ConfidenceReport{Completeness: 1}
	if quality != nil {
		report.Completeness = clamp01(quality.Completeness)
	}

	freshness := 0.5
	if last := priced[len(priced)-1].Date; !last.IsZero() {
		days := int(s.now().UTC().Sub(marketdata.Day(last)).Hours() / 24)
		if days < 0 {
			days = 0
		}
		report.FreshnessDays = &days
		freshness = clamp01(1 - float64(days)/7)
	}

	volatility := 0.5
	if changes := pctChanges(priced.FinalPrices()); len(changes) >= 2 {
		sd := math.Sqrt(stat.Variance(changes, nil))
		report.VolatilityIndex = &sd
		volatility = clamp01(1 - 10*sd)
	}

	report.ConsistencyScore = consistency(priced.FinalPrices())

	report.Score = weightFreshness*freshness +
		weightCompleteness*report.Completeness +
		weightVolatility*volatility +
		weightConsistency*report.ConsistencyScore

	switch {
	case report.Score >= 0.8:
		report.Recommendation = recommendationHigh
	case report.Score >= 0.6:
		report.Recommendation = recommendationMedium
	default:
		report.Recommendation = recommendationLow
	}
	return report
}

// consistency measures day-over-day stability: 1 minus the mean absolute
// step relative to the mean price, clamped. Short series get the neutral 0.5.
func consistency(prices []float64) float64 {
	if len(prices) < 2 {
		return 0.5
	}
	mean := stat.Mean(prices, nil)
	if mean == 0 {
		return 0.5
	}
	var sum float64
	for i := 1; i < len(prices); i++ {
		sum += math.Abs(prices[i] - prices[i-1])
	}
	meanStep := sum / float64(len(prices)-1)
	return clamp01(1 - meanStep/math.Abs(mean))
}

// pctChanges returns day-over-day relative changes, skipping zero bases.
func pctChanges(prices []float64) []float64 {
	changes := make([]float64, 0, len(prices))
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		changes = append(changes, (prices[i]-prices[i-1])/prices[i-1])
	}
	return changes
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
