// Package marketdata provides market data acquisition, validation and quality
// scoring for the pricing engine. Data flows warehouse → live provider →
// synthetic placeholder, is cleaned by the Validator and scored by the
// QualityScorer before any price computation happens.
package marketdata

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Observation is a single day of market data.
// BasePrice is the derived international base (FOB) price and may be NaN when
// the source did not carry it; ReferenceIndex and FXRate are required.
type Observation struct {
	Date           time.Time `json:"date"`
	ReferenceIndex float64   `json:"reference_index"`
	FXRate         float64   `json:"fx_rate"`
	BasePrice      float64   `json:"base_price"`
}

// MarshalJSON emits a missing base price as null; encoding/json rejects NaN
// outright.
func (o Observation) MarshalJSON() ([]byte, error) {
	type alias Observation
	out := struct {
		alias
		BasePrice *float64 `json:"base_price"`
	}{alias: alias(o)}
	if !missing(o.BasePrice) {
		out.BasePrice = &o.BasePrice
	}
	return json.Marshal(out)
}

// Series is an ordered sequence of observations with unique ascending dates.
type Series []Observation

// RawRecord is a loosely typed row as delivered by an external boundary
// (warehouse documents, CSV uploads, API payloads). Column names are matched
// case-insensitively by the Validator.
type RawRecord map[string]interface{}

// Day strips any clock time and timezone offset, leaving midnight UTC.
// Every timestamp leaving this package goes through Day: downstream
// spreadsheet exports cannot represent zoned dates.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of observations
func (s Series) Len() int { return len(s) }

// Empty reports whether the series has no observations
func (s Series) Empty() bool { return len(s) == 0 }

// First returns the earliest observation; ok is false for an empty series
func (s Series) First() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[0], true
}

// Last returns the most recent observation; ok is false for an empty series
func (s Series) Last() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[len(s)-1], true
}

// Dates returns the observation dates in series order
func (s Series) Dates() []time.Time {
	dates := make([]time.Time, len(s))
	for i, obs := range s {
		dates[i] = obs.Date
	}
	return dates
}

// Normalize strips timezones from all dates, deduplicates by date keeping the
// last write, and sorts ascending. Returns the number of duplicates removed.
func (s Series) Normalize() (Series, int) {
	if len(s) == 0 {
		return s, 0
	}

	byDate := make(map[time.Time]Observation, len(s))
	for _, obs := range s {
		obs.Date = Day(obs.Date)
		byDate[obs.Date] = obs
	}

	out := make(Series, 0, len(byDate))
	for _, obs := range byDate {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	return out, len(s) - len(out)
}

// Clone returns a deep copy of the series
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// missing reports whether a value represents an absent cell
func missing(v float64) bool {
	return math.IsNaN(v)
}
