// Package pricing implements the deterministic cost-buildup cascade and the
// analysis layers on top of it: confidence scoring, one-at-a-time sensitivity
// and trend reporting.
package pricing

import (
	"fmt"
	"time"
)

// FormulaVariant is one calibrated version of the base-price formula
//
//	basePrice = referenceIndex*Coefficient + Spread + referenceIndex*NonlinearCoef
//
// Variants form a closed set; calibration history lives in code, not in
// string-keyed branches.
type FormulaVariant struct {
	Name          string    `json:"name"`
	Coefficient   float64   `json:"coefficient"`
	Spread        float64   `json:"spread"`
	NonlinearCoef float64   `json:"nonlinear_coef"`
	EffectiveDate time.Time `json:"effective_date"`
	ValidationRef string    `json:"validation_ref"`
	Description   string    `json:"description"`
}

// The calibrated formula variants, oldest first.
var (
	// FormulaV10 is the original formula from the initial historical analysis.
	FormulaV10 = FormulaVariant{
		Name:          "1.0",
		Coefficient:   0.014,
		Spread:        0.35,
		EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidationRef: "backtest_2023",
		Description:   "Initial formula from historical analysis",
	}

	// FormulaV11 raised the coefficient and lowered the spread after Q1 2024.
	FormulaV11 = FormulaVariant{
		Name:          "1.1",
		Coefficient:   0.0145,
		Spread:        0.32,
		EffectiveDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ValidationRef: "backtest_2024_q1",
		Description:   "Coefficient and spread adjusted on Q1 2024 data",
	}

	// FormulaV12 adds a small nonlinear term for high-volatility regimes.
	FormulaV12 = FormulaVariant{
		Name:          "1.2",
		Coefficient:   0.014,
		Spread:        0.35,
		NonlinearCoef: 0.0001,
		EffectiveDate: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		ValidationRef: "backtest_2024_q3",
		Description:   "Nonlinear adjustment for high volatility",
	}
)

// Variants lists all formula variants, oldest first
func Variants() []FormulaVariant {
	return []FormulaVariant{FormulaV10, FormulaV11, FormulaV12}
}

// DefaultVariant returns the variant used when none is requested
func DefaultVariant() FormulaVariant {
	return FormulaV10
}

// VariantByName looks up a variant by its version name
func VariantByName(name string) (FormulaVariant, error) {
	for _, v := range Variants() {
		if v.Name == name {
			return v, nil
		}
	}
	return FormulaVariant{}, fmt.Errorf("unknown formula variant %q (available: 1.0, 1.1, 1.2)", name)
}

// BasePrice computes the international base (FOB) price from the reference
// index using this variant's calibration
func (f FormulaVariant) BasePrice(referenceIndex float64) float64 {
	return referenceIndex*f.Coefficient + f.Spread + referenceIndex*f.NonlinearCoef
}
