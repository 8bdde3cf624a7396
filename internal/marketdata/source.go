package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Synthetic placeholder values, tier 3. A flat series at these levels trades
// correctness for availability so the pipeline always has something to price.
const (
	placeholderIndex = 70.0
	placeholderFX    = 5.0
	placeholderBase  = 1.2
)

// WarehouseReader is the tier-1 store, queryable by date range.
type WarehouseReader interface {
	GetRange(from time.Time) (Series, error)
}

// QuoteProvider is the tier-2 live source: daily close prices for the
// reference index and FX symbols over a date range, inner-joined by date.
type QuoteProvider interface {
	DailyQuotes(ctx context.Context, from, to time.Time) (Series, error)
}

// Source fetches market data with tiered fallback:
// warehouse → live quote provider → synthetic placeholder.
// Tier failures degrade silently to the next tier; Fetch never errors just
// because data is missing.
type Source struct {
	warehouse  WarehouseReader
	quotes     QuoteProvider
	validator  *Validator
	cache      *SeriesCache
	deriveBase func(referenceIndex float64) float64
	now        func() time.Time
	log        zerolog.Logger
}

// SourceConfig wires a Source. Warehouse and Quotes may be nil, in which case
// their tiers are skipped. Cache is optional. DeriveBase fills the base price
// on rows the live provider cannot supply it for.
type SourceConfig struct {
	Warehouse  WarehouseReader
	Quotes     QuoteProvider
	Validator  *Validator
	Cache      *SeriesCache
	DeriveBase func(referenceIndex float64) float64
	Log        zerolog.Logger
}

// NewSource creates a tiered market data source
func NewSource(cfg SourceConfig) *Source {
	return &Source{
		warehouse:  cfg.Warehouse,
		quotes:     cfg.Quotes,
		validator:  cfg.Validator,
		cache:      cfg.Cache,
		deriveBase: cfg.DeriveBase,
		now:        time.Now,
		log:        cfg.Log.With().Str("service", "market_source").Logger(),
	}
}

// SetClock injects a clock for tests
func (s *Source) SetClock(now func() time.Time) {
	s.now = now
}

// Fetch returns a series covering the last windowDays. Validation problems
// are logged and the pipeline proceeds with best-effort data, favoring
// availability over strictness.
func (s *Source) Fetch(ctx context.Context, windowDays int) (Series, error) {
	return s.fetch(ctx, windowDays, false)
}

// FetchStrict behaves like Fetch but propagates DataValidationError instead
// of proceeding with unvalidated data.
func (s *Source) FetchStrict(ctx context.Context, windowDays int) (Series, error) {
	return s.fetch(ctx, windowDays, true)
}

func (s *Source) fetch(ctx context.Context, windowDays int, strict bool) (Series, error) {
	fetchTiers := func() (Series, error) {
		return s.fetchTiered(ctx, windowDays)
	}

	var series Series
	var err error
	if s.cache != nil && !strict {
		series, err = s.cache.GetOrFetch(windowDays, fetchTiers)
	} else {
		series, err = fetchTiers()
	}
	if err != nil {
		return nil, err
	}

	if s.validator != nil {
		clean, warnings, verr := s.validator.Clean(series)
		if verr != nil {
			var validationErr *DataValidationError
			if strict && errors.As(verr, &validationErr) {
				return nil, verr
			}
			s.log.Warn().Err(verr).Msg("Validation failed, continuing with unvalidated data")
		} else {
			for _, warning := range warnings {
				s.log.Warn().Str("warning", warning).Msg("Data quality warning")
			}
			series = clean
		}
	}

	// Strip timezones unconditionally: downstream spreadsheet exports
	// cannot represent zoned dates.
	series, _ = series.Normalize()

	if series.Empty() {
		return nil, &DataUnavailableError{WindowDays: windowDays}
	}

	return series, nil
}

// fetchTiered walks the fallback chain until a tier yields rows
func (s *Source) fetchTiered(ctx context.Context, windowDays int) (Series, error) {
	from := s.now().AddDate(0, 0, -windowDays)

	// Tier 1: warehouse. Any non-empty result is accepted as-is.
	if s.warehouse != nil {
		series, err := s.warehouse.GetRange(from)
		if err != nil {
			s.log.Warn().Err(err).Msg("Warehouse query failed, trying live provider")
		} else if !series.Empty() {
			s.log.Debug().Int("rows", series.Len()).Str("source", "warehouse").Msg("Loaded market data")
			return series, nil
		}
	}

	// Tier 2: live quote provider
	if s.quotes != nil {
		series, err := s.quotes.DailyQuotes(ctx, from, s.now())
		if err != nil {
			s.log.Warn().Err(err).Msg("Live quote fetch failed, using placeholder data")
		} else if !series.Empty() {
			for i := range series {
				if missing(series[i].BasePrice) && s.deriveBase != nil {
					series[i].BasePrice = s.deriveBase(series[i].ReferenceIndex)
				}
			}
			s.log.Info().Int("rows", series.Len()).Str("source", "live").Msg("Loaded market data")
			return series, nil
		}
	}

	// Tier 3: synthetic placeholder
	s.log.Warn().Int("window_days", windowDays).Msg("All data tiers empty, synthesizing placeholder series")
	return s.synthesize(from, s.now()), nil
}

// synthesize builds a flat daily series spanning [from, to]
func (s *Source) synthesize(from, to time.Time) Series {
	start, end := Day(from), Day(to)

	var series Series
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		series = append(series, Observation{
			Date:           d,
			ReferenceIndex: placeholderIndex,
			FXRate:         placeholderFX,
			BasePrice:      placeholderBase,
		})
	}
	return series
}
