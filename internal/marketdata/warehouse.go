package marketdata

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/database"
)

// Warehouse provides access to the persistent market observation store.
// It is the tier-1 data source and the sink of the daily ETL job.
type Warehouse struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewWarehouse creates a new warehouse accessor
func NewWarehouse(db *sql.DB, log zerolog.Logger) *Warehouse {
	return &Warehouse{
		db:  db,
		log: log.With().Str("component", "warehouse").Logger(),
	}
}

// GetRange fetches observations with date >= from, ascending by date
func (w *Warehouse) GetRange(from time.Time) (Series, error) {
	query := `
		SELECT date, reference_index, fx_rate, base_price
		FROM market_observations
		WHERE date >= ?
		ORDER BY date ASC
	`

	rows, err := w.db.Query(query, Day(from).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query market observations: %w", err)
	}
	defer rows.Close()

	var series Series
	for rows.Next() {
		var obs Observation
		var dateUnix int64
		var basePrice sql.NullFloat64

		if err := rows.Scan(&dateUnix, &obs.ReferenceIndex, &obs.FXRate, &basePrice); err != nil {
			return nil, fmt.Errorf("failed to scan market observation: %w", err)
		}

		obs.Date = Day(time.Unix(dateUnix, 0))
		if basePrice.Valid {
			obs.BasePrice = basePrice.Float64
		} else {
			obs.BasePrice = math.NaN()
		}

		series = append(series, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating market observations: %w", err)
	}

	return series, nil
}

// LatestDate returns the most recent observation date, ok=false when the
// warehouse is empty
func (w *Warehouse) LatestDate() (time.Time, bool, error) {
	var dateUnix sql.NullInt64
	err := w.db.QueryRow("SELECT MAX(date) FROM market_observations").Scan(&dateUnix)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest observation date: %w", err)
	}
	if !dateUnix.Valid {
		return time.Time{}, false, nil
	}
	return Day(time.Unix(dateUnix.Int64, 0)), true, nil
}

// UpsertBatch writes observations keyed by date, last write wins.
// The whole batch commits atomically; a failed batch leaves the warehouse
// untouched. Returns the number of rows written.
func (w *Warehouse) UpsertBatch(series Series) (int, error) {
	if series.Empty() {
		return 0, nil
	}

	written := 0
	err := database.WithTransaction(w.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO market_observations
				(date, reference_index, fx_rate, base_price, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, obs := range series {
			if obs.Date.IsZero() || missing(obs.ReferenceIndex) || missing(obs.FXRate) {
				continue
			}
			base := sql.NullFloat64{Float64: obs.BasePrice, Valid: !missing(obs.BasePrice)}
			if _, err := stmt.Exec(Day(obs.Date).Unix(), obs.ReferenceIndex, obs.FXRate, base, now); err != nil {
				return fmt.Errorf("failed to upsert observation for %s: %w", obs.Date.Format("2006-01-02"), err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	w.log.Debug().Int("rows", written).Msg("Upserted market observations")
	return written, nil
}

// Count returns the number of stored observations
func (w *Warehouse) Count() (int, error) {
	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM market_observations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count market observations: %w", err)
	}
	return count, nil
}
