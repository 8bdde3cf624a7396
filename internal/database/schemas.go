package database

// schemas maps database names to their embedded schema definitions.
// Single source of truth for each database's tables.
var schemas = map[string]string{
	"market": `
CREATE TABLE IF NOT EXISTS market_observations (
    date            INTEGER PRIMARY KEY, -- Unix timestamp at midnight UTC
    reference_index REAL NOT NULL,
    fx_rate         REAL NOT NULL,
    base_price      REAL,
    updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_market_observations_date
    ON market_observations(date);

CREATE TABLE IF NOT EXISTS etl_runs (
    id          TEXT PRIMARY KEY,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    rows_synced INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL,
    message     TEXT
);
`,
	"cache": `
CREATE TABLE IF NOT EXISTS quote_cache (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);
`,
}
