package quotes

import (
	"database/sql"
	"encoding/json"
	"time"
)

// TTLQuoteCache is how long cached provider responses stay fresh.
const TTLQuoteCache = 6 * time.Hour

// CacheRepository persists provider responses as JSON blobs with expiration
// timestamps. Stale entries are kept on purpose: they are the fallback when
// the provider is down.
type CacheRepository struct {
	db *sql.DB
}

// NewCacheRepository creates a quote cache repository
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// cachedCloses is the structure stored in the cache
type cachedCloses map[string]float64

// Store saves closes with expiration = now + TTL
func (r *CacheRepository) Store(key string, closes map[time.Time]float64) error {
	payload := make(cachedCloses, len(closes))
	for date, close := range closes {
		payload[date.Format("2006-01-02")] = close
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(TTLQuoteCache).Unix()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO quote_cache (key, data, expires_at) VALUES (?, ?, ?)",
		key, string(data), expiresAt,
	)
	return err
}

// GetIfFresh returns closes only if not expired
func (r *CacheRepository) GetIfFresh(key string) (map[time.Time]float64, bool) {
	return r.get(key, true)
}

// Get returns closes regardless of expiration status
func (r *CacheRepository) Get(key string) (map[time.Time]float64, bool) {
	return r.get(key, false)
}

func (r *CacheRepository) get(key string, freshOnly bool) (map[time.Time]float64, bool) {
	query := "SELECT data FROM quote_cache WHERE key = ?"
	args := []interface{}{key}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, time.Now().Unix())
	}

	var data string
	if err := r.db.QueryRow(query, args...).Scan(&data); err != nil {
		return nil, false
	}

	var payload cachedCloses
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, false
	}

	closes := make(map[time.Time]float64, len(payload))
	for date, close := range payload {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		closes[t] = close
	}
	return closes, true
}

// DeleteExpired removes all expired cache rows, returning the count deleted
func (r *CacheRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM quote_cache WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
