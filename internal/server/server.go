// Package server provides the HTTP server and routing for the fair price API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	backtesthandlers "github.com/goldrush/polyprice/internal/backtest/handlers"
	"github.com/goldrush/polyprice/internal/config"
	"github.com/goldrush/polyprice/internal/database"
	"github.com/goldrush/polyprice/internal/etl"
	markethandlers "github.com/goldrush/polyprice/internal/marketdata/handlers"
	pricinghandlers "github.com/goldrush/polyprice/internal/pricing/handlers"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	Config          *config.Config
	MarketDB        *database.DB
	CacheDB         *database.DB
	MarketHandler   *markethandlers.Handler
	PricingHandler  *pricinghandlers.Handler
	BacktestHandler *backtesthandlers.Handler
	ETLJob          *etl.Job
}

// Server represents the HTTP server
type Server struct {
	router          *chi.Mux
	server          *http.Server
	log             zerolog.Logger
	cfg             *config.Config
	marketDB        *database.DB
	cacheDB         *database.DB
	marketHandler   *markethandlers.Handler
	pricingHandler  *pricinghandlers.Handler
	backtestHandler *backtesthandlers.Handler
	systemHandlers  *SystemHandlers
	etlJob          *etl.Job
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:          chi.NewRouter(),
		log:             cfg.Log.With().Str("component", "server").Logger(),
		cfg:             cfg.Config,
		marketDB:        cfg.MarketDB,
		cacheDB:         cfg.CacheDB,
		marketHandler:   cfg.MarketHandler,
		pricingHandler:  cfg.PricingHandler,
		backtestHandler: cfg.BacktestHandler,
		systemHandlers:  NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.MarketDB, cfg.CacheDB),
		etlJob:          cfg.ETLJob,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleHealth)
		r.Get("/system", s.systemHandlers.HandleSystemStatus)

		s.marketHandler.RegisterRoutes(r)
		s.pricingHandler.RegisterRoutes(r)
		s.backtestHandler.RegisterRoutes(r)

		r.Route("/etl", func(r chi.Router) {
			r.Post("/run", s.handleTriggerETL)
			r.Get("/runs", s.handleListETLRuns)
		})
	})
}

// handleTriggerETL handles POST /api/etl/run
func (s *Server) handleTriggerETL(w http.ResponseWriter, r *http.Request) {
	s.log.Info().Msg("Manual ETL run triggered")

	report, err := s.etlJob.Run(r.Context())
	if err != nil {
		s.systemHandlers.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "ETL run failed: " + err.Error(),
			"report": report,
		})
		return
	}
	s.systemHandlers.writeJSON(w, http.StatusOK, report)
}

// handleListETLRuns handles GET /api/etl/runs
func (s *Server) handleListETLRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.etlJob.RecentRuns(20)
	if err != nil {
		s.systemHandlers.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to list ETL runs: " + err.Error(),
		})
		return
	}
	s.systemHandlers.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
