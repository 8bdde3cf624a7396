// Package quotes provides a client for the live daily-close quote provider.
// It fetches two symbols (reference index and FX pair) over a date range and
// inner-joins them by date.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/marketdata"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// requestTimeout bounds every provider call; a timeout is a tier-2 failure
// and the data source falls through to the synthetic tier.
const requestTimeout = 10 * time.Second

// Client fetches daily close prices from the quote provider.
type Client struct {
	baseURL     string
	indexSymbol string
	fxSymbol    string
	client      *http.Client
	cacheRepo   *CacheRepository
	log         zerolog.Logger
}

// Config holds quote client configuration
type Config struct {
	BaseURL     string // empty = provider default
	IndexSymbol string // e.g. "CL=F"
	FXSymbol    string // e.g. "BRL=X"
	CacheRepo   *CacheRepository
	Log         zerolog.Logger
}

// NewClient creates a quote provider client.
// cacheRepo is optional - if nil, persistent caching is disabled.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		indexSymbol: cfg.IndexSymbol,
		fxSymbol:    cfg.FXSymbol,
		client:      &http.Client{Timeout: requestTimeout},
		cacheRepo:   cfg.CacheRepo,
		log:         cfg.Log.With().Str("client", "quotes").Logger(),
	}
}

// chartResponse mirrors the provider's chart payload
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyQuotes fetches daily closes for both symbols over [from, to],
// inner-joined by date. Rows where either symbol is missing a close are
// dropped. The base price column is left missing for the caller to derive.
func (c *Client) DailyQuotes(ctx context.Context, from, to time.Time) (marketdata.Series, error) {
	indexCloses, err := c.dailyCloses(ctx, c.indexSymbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s closes: %w", c.indexSymbol, err)
	}

	fxCloses, err := c.dailyCloses(ctx, c.fxSymbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s closes: %w", c.fxSymbol, err)
	}

	var series marketdata.Series
	for date, indexClose := range indexCloses {
		fxClose, ok := fxCloses[date]
		if !ok {
			continue
		}
		series = append(series, marketdata.Observation{
			Date:           date,
			ReferenceIndex: indexClose,
			FXRate:         fxClose,
			BasePrice:      math.NaN(),
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	c.log.Debug().
		Int("index_rows", len(indexCloses)).
		Int("fx_rows", len(fxCloses)).
		Int("joined", series.Len()).
		Msg("Fetched daily quotes")

	return series, nil
}

// dailyCloses fetches one symbol's daily close prices keyed by date
func (c *Client) dailyCloses(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]float64, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))

	// Check persistent cache for fresh data
	if c.cacheRepo != nil {
		if closes, ok := c.cacheRepo.GetIfFresh(cacheKey); ok {
			c.log.Debug().Str("symbol", symbol).Msg("Quote cache hit")
			return closes, nil
		}
	}

	reqURL := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d",
		c.baseURL, url.PathEscape(symbol), from.Unix(), to.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "polyprice/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		// Provider failed - stale cached closes beat no data
		if closes, ok := c.staleFromCache(cacheKey); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Provider failed, using stale cached closes")
			return closes, nil
		}
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if closes, ok := c.staleFromCache(cacheKey); ok {
			c.log.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("Provider error, using stale cached closes")
			return closes, nil
		}
		return nil, fmt.Errorf("provider returned status %d for %s", resp.StatusCode, symbol)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("provider error for %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("provider returned no result for %s", symbol)
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	closes := make(map[time.Time]float64, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		closes[marketdata.Day(time.Unix(ts, 0))] = *quote.Close[i]
	}

	if len(closes) == 0 {
		return nil, fmt.Errorf("provider returned no closes for %s", symbol)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(cacheKey, closes); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache closes")
		}
	}

	c.log.Info().Str("symbol", symbol).Int("closes", len(closes)).Msg("Fetched daily closes")
	return closes, nil
}

// staleFromCache retrieves cached closes even if expired.
// Fallback for when provider calls fail - stale data is better than no data.
func (c *Client) staleFromCache(cacheKey string) (map[time.Time]float64, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	return c.cacheRepo.Get(cacheKey)
}
