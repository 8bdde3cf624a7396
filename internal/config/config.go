// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string  // Base directory for sqlite databases (always absolute)
	Port            int     // HTTP listen port
	LogLevel        string  // debug, info, warn, error
	DevMode         bool    // Pretty logs, permissive CORS
	QuoteBaseURL    string  // Live quote provider endpoint (empty = provider default)
	IndexSymbol     string  // Reference index symbol (crude oil front-month)
	FXSymbol        string  // FX pair symbol
	CacheTTLMinutes int     // Market data cache TTL
	ETLSchedule     string  // Cron spec for the daily sync job ("" disables)
	AlertThreshold  float64 // Fractional 7-day move that triggers an alert
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("POLYPRICE_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("POLYPRICE_PORT", 8002),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		QuoteBaseURL:    getEnv("QUOTE_BASE_URL", ""),
		IndexSymbol:     getEnv("INDEX_SYMBOL", "CL=F"),
		FXSymbol:        getEnv("FX_SYMBOL", "BRL=X"),
		CacheTTLMinutes: getEnvAsInt("CACHE_TTL_MINUTES", 60),
		ETLSchedule:     getEnv("ETL_SCHEDULE", "0 6 * * *"),
		AlertThreshold:  getEnvAsFloat("ALERT_THRESHOLD", 0.03),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.CacheTTLMinutes < 0 {
		return fmt.Errorf("cache TTL must not be negative: %d", c.CacheTTLMinutes)
	}
	if c.AlertThreshold < 0 {
		return fmt.Errorf("alert threshold must not be negative: %f", c.AlertThreshold)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
