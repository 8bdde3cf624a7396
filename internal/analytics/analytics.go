// Package analytics derives summary metrics from priced series for the
// dashboard: window price movement and purchase savings potential.
package analytics

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/goldrush/polyprice/internal/pricing"
)

// WindowMetrics summarizes final-price movement over one window.
type WindowMetrics struct {
	DaysTracked    int     `json:"days_tracked"`
	CurrentPrice   float64 `json:"current_price"`
	AveragePrice   float64 `json:"average_price"`
	AbsoluteChange float64 `json:"absolute_change"`
	PercentChange  float64 `json:"percent_change"`
}

// SavingsStatus classifies a paid price against the fair price.
const (
	StatusLoss    = "loss"
	StatusSavings = "savings"
	StatusNeutral = "neutral"
)

// SavingsPotential quantifies what a buyer gains or loses at a given
// purchase price versus the fair price, scaled by volume.
type SavingsPotential struct {
	CurrentPrice  float64 `json:"current_price"`
	FairPrice     float64 `json:"fair_price"`
	DifferencePct float64 `json:"difference_pct"`
	VolumeKg      float64 `json:"volume_kg"`
	TotalAmount   float64 `json:"total_amount"`
	Status        string  `json:"status"`
}

// ComputeWindowMetrics summarizes a priced series. The change columns compare
// the last final price against the first.
func ComputeWindowMetrics(priced pricing.PricedSeries) (WindowMetrics, error) {
	if priced.Empty() {
		return WindowMetrics{}, fmt.Errorf("cannot summarize an empty series")
	}
	prices := priced.FinalPrices()
	first, last := prices[0], prices[len(prices)-1]
	metrics := WindowMetrics{
		DaysTracked:    priced.Len(),
		CurrentPrice:   last,
		AveragePrice:   stat.Mean(prices, nil),
		AbsoluteChange: last - first,
	}
	if first != 0 {
		metrics.PercentChange = (last - first) / first * 100
	}
	return metrics, nil
}

// ComputeSavingsPotential compares the price currently being paid against the
// fair price over a purchase volume. Paying above fair is a loss, below is a
// saving; within half a percent either way is neutral.
func ComputeSavingsPotential(currentPrice, fairPrice, volumeKg float64) (SavingsPotential, error) {
	if fairPrice <= 0 {
		return SavingsPotential{}, fmt.Errorf("fair price must be positive, got %g", fairPrice)
	}
	if currentPrice <= 0 {
		return SavingsPotential{}, fmt.Errorf("current price must be positive, got %g", currentPrice)
	}
	if volumeKg < 0 {
		return SavingsPotential{}, fmt.Errorf("volume must not be negative, got %g", volumeKg)
	}

	diffPct := (currentPrice - fairPrice) / fairPrice * 100
	result := SavingsPotential{
		CurrentPrice:  currentPrice,
		FairPrice:     fairPrice,
		DifferencePct: diffPct,
		VolumeKg:      volumeKg,
		TotalAmount:   (currentPrice - fairPrice) * volumeKg,
	}
	switch {
	case diffPct > 0.5:
		result.Status = StatusLoss
	case diffPct < -0.5:
		result.Status = StatusSavings
	default:
		result.Status = StatusNeutral
	}
	return result, nil
}
