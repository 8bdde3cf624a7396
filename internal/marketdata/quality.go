package marketdata

import (
	"time"
)

// QualityReport summarizes data quality for observability dashboards.
type QualityReport struct {
	Completeness   float64    `json:"completeness"` // 1 - missing cells / total cells
	DuplicateCount int        `json:"duplicate_count"`
	DateRange      *DateRange `json:"date_range,omitempty"`
	OutlierCount   int        `json:"outlier_count"`
	FreshnessDays  *int       `json:"freshness_days,omitempty"`
}

// DateRange describes the span covered by a series.
type DateRange struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	DaySpan int       `json:"day_span"`
}

// QualityScorer computes quality metrics over a series. It is pure: scoring
// never mutates or filters data, it only measures.
type QualityScorer struct {
	now func() time.Time
}

// NewQualityScorer creates a quality scorer using the wall clock
func NewQualityScorer() *QualityScorer {
	return &QualityScorer{now: time.Now}
}

// NewQualityScorerAt creates a quality scorer with an injected clock for tests
func NewQualityScorerAt(now func() time.Time) *QualityScorer {
	return &QualityScorer{now: now}
}

// Score computes the quality report for a series. An empty series scores
// zero completeness with no date range rather than failing.
func (q *QualityScorer) Score(series Series) QualityReport {
	if series.Empty() {
		return QualityReport{}
	}

	// Completeness over the three numeric columns plus the date column
	totalCells := len(series) * 4
	missingCells := 0
	for _, obs := range series {
		if obs.Date.IsZero() {
			missingCells++
		}
		for _, v := range []float64{obs.ReferenceIndex, obs.FXRate, obs.BasePrice} {
			if missing(v) {
				missingCells++
			}
		}
	}
	completeness := 1 - float64(missingCells)/float64(totalCells)

	// Duplicate dates
	seen := make(map[time.Time]bool, len(series))
	duplicates := 0
	for _, obs := range series {
		if seen[obs.Date] {
			duplicates++
		}
		seen[obs.Date] = true
	}

	// Date range and freshness
	minDate, maxDate := series[0].Date, series[0].Date
	for _, obs := range series[1:] {
		if obs.Date.Before(minDate) {
			minDate = obs.Date
		}
		if obs.Date.After(maxDate) {
			maxDate = obs.Date
		}
	}
	dateRange := &DateRange{
		Start:   minDate,
		End:     maxDate,
		DaySpan: int(maxDate.Sub(minDate).Hours() / 24),
	}
	freshness := int(q.now().Sub(maxDate).Hours() / 24)
	if freshness < 0 {
		freshness = 0
	}

	// Outliers, same IQR fence as the validator
	outliers := 0
	for _, values := range numericColumns(series) {
		outliers += countOutliersIQR(values)
	}

	return QualityReport{
		Completeness:   completeness,
		DuplicateCount: duplicates,
		DateRange:      dateRange,
		OutlierCount:   outliers,
		FreshnessDays:  &freshness,
	}
}
