// Package etl runs the daily market data synchronization: pull fresh quotes,
// derive base prices, upsert the warehouse and check for price-move alerts.
package etl

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/marketdata"
	"github.com/goldrush/polyprice/internal/pricing"
)

// initialWindowDays is how far back the first sync reaches. Later runs are
// incremental from the newest stored observation.
const initialWindowDays = 730

// alertWindowDays is the comparison span for price-move alert detection.
const alertWindowDays = 7

// Run statuses stored in etl_runs.
const (
	runStatusOK     = "ok"
	runStatusFailed = "failed"
)

// Alert flags a significant fair-price move since the comparison window.
type Alert struct {
	Direction      string  `json:"direction"`
	VariationPct   float64 `json:"variation_pct"`
	CurrentPrice   float64 `json:"current_price"`
	ReferencePrice float64 `json:"reference_price"`
	Recommendation string  `json:"recommendation"`
}

// RunReport summarizes one sync run.
type RunReport struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	RowsSynced int       `json:"rows_synced"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Alert      *Alert    `json:"alert,omitempty"`
}

// CacheInvalidator is the slice of the series cache the job needs.
type CacheInvalidator interface {
	InvalidateAll()
}

// Job is the daily market data sync. Safe to trigger manually while the
// cron schedule is active; the warehouse upsert is idempotent by date.
type Job struct {
	warehouse      *marketdata.Warehouse
	quotes         marketdata.QuoteProvider
	engine         *pricing.Engine
	cache          CacheInvalidator
	db             *sql.DB
	alertThreshold float64
	now            func() time.Time
	log            zerolog.Logger
}

// Config wires the job's collaborators.
type Config struct {
	Warehouse      *marketdata.Warehouse
	Quotes         marketdata.QuoteProvider
	Engine         *pricing.Engine
	Cache          CacheInvalidator
	DB             *sql.DB
	AlertThreshold float64
	Log            zerolog.Logger
}

func NewJob(cfg Config) *Job {
	return &Job{
		warehouse:      cfg.Warehouse,
		quotes:         cfg.Quotes,
		engine:         cfg.Engine,
		cache:          cfg.Cache,
		db:             cfg.DB,
		alertThreshold: cfg.AlertThreshold,
		now:            time.Now,
		log:            cfg.Log.With().Str("component", "etl").Logger(),
	}
}

// Run performs one sync: fetch the missing window of quotes, derive base
// prices, upsert the warehouse, invalidate the series cache and check for
// alerts. Every run is recorded in etl_runs, failures included.
func (j *Job) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{
		ID:        uuid.New().String(),
		StartedAt: j.now().UTC(),
		Status:    runStatusOK,
	}
	j.log.Info().Str("run_id", report.ID).Msg("etl run starting")

	rows, err := j.sync(ctx)
	report.RowsSynced = rows
	if err != nil {
		report.Status = runStatusFailed
		report.Message = err.Error()
	} else if rows > 0 {
		j.cache.InvalidateAll()
	}
	report.FinishedAt = j.now().UTC()

	if recErr := j.record(report); recErr != nil {
		j.log.Error().Err(recErr).Str("run_id", report.ID).Msg("failed to record etl run")
	}
	if err != nil {
		j.log.Error().Err(err).Str("run_id", report.ID).Msg("etl run failed")
		return report, err
	}

	if alert, alertErr := j.checkAlert(); alertErr != nil {
		j.log.Warn().Err(alertErr).Msg("alert detection skipped")
	} else if alert != nil {
		report.Alert = alert
		j.log.Warn().
			Str("direction", alert.Direction).
			Float64("variation_pct", alert.VariationPct).
			Float64("current_price", alert.CurrentPrice).
			Msg("price move alert")
	}

	j.log.Info().Str("run_id", report.ID).Int("rows", rows).Msg("etl run complete")
	return report, nil
}

// sync fetches the missing quote window and writes it to the warehouse.
func (j *Job) sync(ctx context.Context) (int, error) {
	to := j.now().UTC()
	from := to.AddDate(0, 0, -initialWindowDays)
	if latest, ok, err := j.warehouse.LatestDate(); err != nil {
		return 0, fmt.Errorf("resolving sync window: %w", err)
	} else if ok {
		from = latest.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		j.log.Debug().Msg("warehouse already up to date")
		return 0, nil
	}

	series, err := j.quotes.DailyQuotes(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("fetching quotes: %w", err)
	}
	if series.Empty() {
		j.log.Debug().Time("from", from).Time("to", to).Msg("no new quotes in window")
		return 0, nil
	}

	variant := j.engine.Variant()
	for i := range series {
		if math.IsNaN(series[i].BasePrice) {
			series[i].BasePrice = variant.BasePrice(series[i].ReferenceIndex)
		}
	}

	rows, err := j.warehouse.UpsertBatch(series)
	if err != nil {
		return 0, fmt.Errorf("upserting observations: %w", err)
	}
	return rows, nil
}

// checkAlert prices the recent window with the standard parameters and fires
// when the fair price moved at least the threshold versus a week ago.
func (j *Job) checkAlert() (*Alert, error) {
	series, err := j.warehouse.GetRange(j.now().UTC().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	if series.Len() < 2 {
		return nil, nil
	}

	priced, err := j.engine.Compute(series, pricing.StandardParameters)
	if err != nil {
		return nil, err
	}
	trend, err := j.engine.TrendChange(priced, alertWindowDays)
	if err != nil {
		return nil, err
	}
	if math.Abs(trend.VariationPct) < j.alertThreshold*100 {
		return nil, nil
	}

	alert := &Alert{
		VariationPct:   trend.VariationPct,
		CurrentPrice:   trend.CurrentPrice,
		ReferencePrice: trend.ReferencePrice,
	}
	if trend.VariationPct > 0 {
		alert.Direction = "up"
		alert.Recommendation = "prices are rising, consider anticipating purchases"
	} else {
		alert.Direction = "down"
		alert.Recommendation = "prices are falling, consider postponing purchases"
	}
	return alert, nil
}

// record persists the run outcome to etl_runs.
func (j *Job) record(report RunReport) error {
	_, err := j.db.Exec(`
		INSERT INTO etl_runs (id, started_at, finished_at, rows_synced, status, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, report.ID, report.StartedAt.Unix(), report.FinishedAt.Unix(), report.RowsSynced, report.Status, report.Message)
	if err != nil {
		return fmt.Errorf("inserting etl run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest run records, most recent first.
func (j *Job) RecentRuns(limit int) ([]RunReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.Query(`
		SELECT id, started_at, finished_at, rows_synced, status, message
		FROM etl_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying etl runs: %w", err)
	}
	defer rows.Close()

	var reports []RunReport
	for rows.Next() {
		var r RunReport
		var started, finished int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.RowsSynced, &r.Status, &r.Message); err != nil {
			return nil, fmt.Errorf("scanning etl run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.FinishedAt = time.Unix(finished, 0).UTC()
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
