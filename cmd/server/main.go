// Package main is the entry point for the polypropylene fair price service.
// It estimates a fair domestic price from an international reference index
// and an FX rate, keeps a local warehouse of daily observations synced by a
// scheduled ETL job, and serves pricing, quality, sensitivity and backtest
// endpoints over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/goldrush/polyprice/internal/backtest"
	backtesthandlers "github.com/goldrush/polyprice/internal/backtest/handlers"
	"github.com/goldrush/polyprice/internal/clients/quotes"
	"github.com/goldrush/polyprice/internal/config"
	"github.com/goldrush/polyprice/internal/database"
	"github.com/goldrush/polyprice/internal/etl"
	"github.com/goldrush/polyprice/internal/marketdata"
	markethandlers "github.com/goldrush/polyprice/internal/marketdata/handlers"
	"github.com/goldrush/polyprice/internal/pricing"
	pricinghandlers "github.com/goldrush/polyprice/internal/pricing/handlers"
	"github.com/goldrush/polyprice/internal/server"
	"github.com/goldrush/polyprice/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting fair price service")

	// Databases: market.db holds the observation warehouse and ETL run
	// history, cache.db holds the quote response cache.
	marketDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market database")
	}
	defer marketDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := marketDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate market database")
	}
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Data layer: warehouse (tier 1), live quote client (tier 2) and the
	// in-memory series cache in front of both.
	warehouse := marketdata.NewWarehouse(marketDB.Conn(), log)
	quoteCacheRepo := quotes.NewCacheRepository(cacheDB.Conn())
	quoteClient := quotes.NewClient(quotes.Config{
		BaseURL:     cfg.QuoteBaseURL,
		IndexSymbol: cfg.IndexSymbol,
		FXSymbol:    cfg.FXSymbol,
		CacheRepo:   quoteCacheRepo,
		Log:         log,
	})

	validator := marketdata.NewValidator(log)
	qualityScorer := marketdata.NewQualityScorer()
	seriesCache := marketdata.NewSeriesCache(time.Duration(cfg.CacheTTLMinutes) * time.Minute)

	variant := pricing.DefaultVariant()
	engine := pricing.NewEngine(variant, log)

	source := marketdata.NewSource(marketdata.SourceConfig{
		Warehouse:  warehouse,
		Quotes:     quoteClient,
		Validator:  validator,
		Cache:      seriesCache,
		DeriveBase: variant.BasePrice,
		Log:        log,
	})

	confidenceScorer := pricing.NewConfidenceScorer()
	sensitivityAnalyzer := pricing.NewSensitivityAnalyzer(source, engine, log)
	backtestValidator := backtest.NewValidator(log)

	etlJob := etl.NewJob(etl.Config{
		Warehouse:      warehouse,
		Quotes:         quoteClient,
		Engine:         engine,
		Cache:          seriesCache,
		DB:             marketDB.Conn(),
		AlertThreshold: cfg.AlertThreshold,
		Log:            log,
	})

	// Daily sync schedule. Manual runs stay available at POST /api/etl/run.
	scheduler := cron.New()
	if cfg.ETLSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.ETLSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := etlJob.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Scheduled ETL run failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ETLSchedule).Msg("Invalid ETL schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Str("schedule", cfg.ETLSchedule).Msg("ETL job scheduled")
	}

	srv := server.New(server.Config{
		Log:             log,
		Config:          cfg,
		MarketDB:        marketDB,
		CacheDB:         cacheDB,
		MarketHandler:   markethandlers.NewHandler(source, qualityScorer, log),
		PricingHandler:  pricinghandlers.NewHandler(source, engine, confidenceScorer, sensitivityAnalyzer, qualityScorer, log),
		BacktestHandler: backtesthandlers.NewHandler(source, backtestValidator, log),
		ETLJob:          etlJob,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Fair price service stopped")
}
