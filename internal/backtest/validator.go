// Package backtest checks a theoretical fair-price curve against externally
// observed market prices and reports error metrics, so formula coefficients
// can be recalibrated against reality.
package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/goldrush/polyprice/internal/marketdata"
)

// Statuses reported by Validate. Exploratory failure modes are statuses, not
// errors: a backtest with no overlap is an answer, not a fault.
const (
	StatusOK         = "ok"
	StatusNoOverlap  = "no overlapping dates"
	StatusNoMetrics  = "metrics unavailable"
	StatusEmptyInput = "empty input"
)

// FormulaParams are the calibration knobs of the theoretical curve:
// price = ((referenceIndex * Coefficient) + Spread) * fxRate * Markup.
type FormulaParams struct {
	Coefficient float64 `json:"coefficient"`
	Spread      float64 `json:"spread"`
	Markup      float64 `json:"markup"`
}

// ObservedPrice is one externally supplied market price point.
type ObservedPrice struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// ComparisonRow is one joined date with both curve values.
type ComparisonRow struct {
	Date        time.Time `json:"date"`
	Theoretical float64   `json:"theoretical"`
	Observed    float64   `json:"observed"`
}

// Result is the backtest outcome. Metrics are nil unless the status is ok.
type Result struct {
	Rows            []ComparisonRow `json:"rows"`
	MAPE            *float64        `json:"mape,omitempty"`
	RMSE            *float64        `json:"rmse,omitempty"`
	MeanSignedError *float64        `json:"mean_signed_error,omitempty"`
	Status          string          `json:"status"`
}

// Overestimating reports whether the theoretical curve runs above the
// observed prices on average, the direction a spread cut would correct.
func (r Result) Overestimating() bool {
	return r.MeanSignedError != nil && *r.MeanSignedError > 0
}

// Validator joins theoretical against observed prices by exact date.
type Validator struct {
	log zerolog.Logger
}

func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{log: log.With().Str("component", "backtest").Logger()}
}

// Validate builds the theoretical curve from the market series, inner-joins
// it with the observed prices on exact dates, and computes MAPE and RMSE.
// Both sides are normalized to midnight UTC before joining. Zero overlap or
// degenerate metrics come back as statuses with nil metrics, never an error.
func (v *Validator) Validate(series marketdata.Series, observed []ObservedPrice, params FormulaParams) Result {
	if series.Empty() || len(observed) == 0 {
		return Result{Rows: []ComparisonRow{}, Status: StatusEmptyInput}
	}

	theoretical := make(map[time.Time]float64, series.Len())
	for _, obs := range series {
		theoretical[marketdata.Day(obs.Date)] = ((obs.ReferenceIndex * params.Coefficient) + params.Spread) * obs.FXRate * params.Markup
	}

	rows := make([]ComparisonRow, 0, len(observed))
	for _, o := range observed {
		day := marketdata.Day(o.Date)
		theo, ok := theoretical[day]
		if !ok {
			continue
		}
		rows = append(rows, ComparisonRow{Date: day, Theoretical: theo, Observed: o.Price})
	}
	if len(rows) == 0 {
		v.log.Warn().Int("observed", len(observed)).Int("theoretical", len(theoretical)).Msg("no overlapping dates")
		return Result{Rows: []ComparisonRow{}, Status: StatusNoOverlap}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	mape, rmse, signed, ok := metrics(rows)
	if !ok {
		return Result{Rows: rows, Status: StatusNoMetrics}
	}
	v.log.Info().Int("rows", len(rows)).Float64("mape", mape).Float64("rmse", rmse).Msg("backtest complete")
	return Result{Rows: rows, MAPE: &mape, RMSE: &rmse, MeanSignedError: &signed, Status: StatusOK}
}

// metrics computes MAPE, RMSE and the mean signed error over joined rows.
// MAPE skips non-positive observed prices; if every row is skipped the
// metrics are unavailable.
func metrics(rows []ComparisonRow) (mape, rmse, signed float64, ok bool) {
	pctErrors := make([]float64, 0, len(rows))
	sqErrors := make([]float64, len(rows))
	signedErrors := make([]float64, len(rows))
	for i, row := range rows {
		diff := row.Theoretical - row.Observed
		sqErrors[i] = diff * diff
		signedErrors[i] = diff
		if row.Observed > 0 {
			pctErrors = append(pctErrors, math.Abs(diff)/row.Observed)
		}
	}
	if len(pctErrors) == 0 {
		return 0, 0, 0, false
	}
	mape = stat.Mean(pctErrors, nil)
	rmse = math.Sqrt(stat.Mean(sqErrors, nil))
	signed = stat.Mean(signedErrors, nil)
	return mape, rmse, signed, true
}
