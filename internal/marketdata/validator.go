package marketdata

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Column aliases accepted by the validator, matched case-insensitively.
// The legacy names come from the original warehouse documents.
var columnAliases = map[string][]string{
	"date":            {"date", "data", "timestamp", "day"},
	"reference_index": {"reference_index", "ref_index", "index", "wti"},
	"fx_rate":         {"fx_rate", "fx", "usd_brl", "exchange_rate"},
	"base_price":      {"base_price", "base", "pp_fob_usd", "fob"},
}

// Expected domain ranges. Values outside warn but are never dropped.
const (
	minReferenceIndex = 10.0
	maxReferenceIndex = 250.0
	minFXRate         = 2.0
	maxFXRate         = 10.0
)

// iqrFenceFactor fences outliers at [Q1 - f*IQR, Q3 + f*IQR]
const iqrFenceFactor = 1.5

// Validator normalizes and cleans raw market data.
// Outliers and out-of-range values are flagged, never dropped: market shocks
// are real data and silently removing them would corrupt the price signal.
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates a new market data validator
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{log: log.With().Str("component", "validator").Logger()}
}

// Validate maps loosely named columns onto the canonical schema, coerces
// values, and cleans the resulting series. It returns the clean series plus
// human-readable warnings describing everything that was flagged or removed.
//
// A DataValidationError is returned when the input is empty, a required
// column is absent everywhere, or cleaning empties the series.
func (v *Validator) Validate(records []RawRecord) (Series, []string, error) {
	if len(records) == 0 {
		return nil, nil, newValidationError("empty input received for validation")
	}

	columns := resolveColumns(records)

	var missingCols []string
	for _, required := range []string{"date", "reference_index", "fx_rate"} {
		if _, ok := columns[required]; !ok {
			missingCols = append(missingCols, required)
		}
	}
	if len(missingCols) > 0 {
		return nil, nil, newValidationError("required columns missing: %s", strings.Join(missingCols, ", "))
	}

	series := make(Series, 0, len(records))
	for _, rec := range records {
		obs := Observation{
			ReferenceIndex: coerceFloat(rec[columns["reference_index"]]),
			FXRate:         coerceFloat(rec[columns["fx_rate"]]),
			BasePrice:      math.NaN(),
		}
		if key, ok := columns["base_price"]; ok {
			obs.BasePrice = coerceFloat(rec[key])
		}
		if date, ok := coerceDate(rec[columns["date"]]); ok {
			obs.Date = date
		}
		series = append(series, obs)
	}

	return v.Clean(series)
}

// Clean runs the validation pipeline over an already-typed series:
// outlier flagging, domain range checks, deduplication, and removal of rows
// missing a required field. The input is not mutated.
func (v *Validator) Clean(series Series) (Series, []string, error) {
	if series.Empty() {
		return nil, nil, newValidationError("empty series received for validation")
	}

	var warnings []string

	// Outlier detection per numeric column: flagged and counted, never dropped
	for name, values := range numericColumns(series) {
		if n := countOutliersIQR(values); n > 0 {
			warnings = append(warnings, fmt.Sprintf("%d outliers detected in %s", n, name))
			v.log.Warn().Int("count", n).Str("column", name).Msg("Outliers detected")
		}
	}

	// Domain range checks: out-of-range rows warn but are kept
	indexOut, fxOut := 0, 0
	for _, obs := range series {
		if !missing(obs.ReferenceIndex) && (obs.ReferenceIndex < minReferenceIndex || obs.ReferenceIndex > maxReferenceIndex) {
			indexOut++
		}
		if !missing(obs.FXRate) && (obs.FXRate < minFXRate || obs.FXRate > maxFXRate) {
			fxOut++
		}
	}
	if indexOut > 0 {
		warnings = append(warnings, fmt.Sprintf("reference index outside expected range (%.0f-%.0f) in %d rows", minReferenceIndex, maxReferenceIndex, indexOut))
	}
	if fxOut > 0 {
		warnings = append(warnings, fmt.Sprintf("fx rate outside expected range (%.0f-%.0f) in %d rows", minFXRate, maxFXRate, fxOut))
	}

	// Deduplicate by date, last write wins
	clean, removed := series.Normalize()
	if removed > 0 {
		warnings = append(warnings, fmt.Sprintf("removed %d duplicate dates", removed))
	}

	// Drop rows missing any required field
	kept := clean[:0]
	dropped := 0
	for _, obs := range clean {
		if obs.Date.IsZero() || missing(obs.ReferenceIndex) || missing(obs.FXRate) {
			dropped++
			continue
		}
		kept = append(kept, obs)
	}
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("removed %d rows with missing required values", dropped))
	}

	if len(kept) == 0 {
		return nil, warnings, newValidationError("series empty after cleaning")
	}

	return kept, warnings, nil
}

// resolveColumns maps canonical column names to the actual keys present in
// the records, matching aliases case-insensitively. The first record that
// carries a column decides its key.
func resolveColumns(records []RawRecord) map[string]string {
	present := make(map[string]string)
	for _, rec := range records {
		for key := range rec {
			lower := strings.ToLower(strings.TrimSpace(key))
			if _, seen := present[lower]; !seen {
				present[lower] = key
			}
		}
	}

	columns := make(map[string]string)
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if key, ok := present[alias]; ok {
				columns[canonical] = key
				break
			}
		}
	}
	return columns
}

// coerceFloat converts a raw cell to float64, NaN when unparseable
func coerceFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// dateLayouts accepted for raw date cells, most common first
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// coerceDate converts a raw cell to a timezone-naive date
func coerceDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return Day(v), true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return Day(t), true
			}
		}
	case int64:
		return Day(time.Unix(v, 0)), true
	case float64:
		return Day(time.Unix(int64(v), 0)), true
	}
	return time.Time{}, false
}

// numericColumns extracts the numeric columns of a series by name
func numericColumns(series Series) map[string][]float64 {
	cols := map[string][]float64{
		"reference_index": make([]float64, 0, len(series)),
		"fx_rate":         make([]float64, 0, len(series)),
		"base_price":      make([]float64, 0, len(series)),
	}
	for _, obs := range series {
		cols["reference_index"] = append(cols["reference_index"], obs.ReferenceIndex)
		cols["fx_rate"] = append(cols["fx_rate"], obs.FXRate)
		cols["base_price"] = append(cols["base_price"], obs.BasePrice)
	}
	return cols
}

// countOutliersIQR counts values outside the IQR fence
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Missing cells are ignored. A zero IQR
// (flat or near-flat data) fences nothing.
func countOutliersIQR(values []float64) int {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !missing(v) {
			present = append(present, v)
		}
	}
	if len(present) < 4 {
		return 0
	}

	sort.Float64s(present)
	q1 := stat.Quantile(0.25, stat.LinInterp, present, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, present, nil)
	iqr := q3 - q1
	if iqr <= 0 {
		return 0
	}

	lo := q1 - iqrFenceFactor*iqr
	hi := q3 + iqrFenceFactor*iqr

	count := 0
	for _, v := range present {
		if v < lo || v > hi {
			count++
		}
	}
	return count
}
