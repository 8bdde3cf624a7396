package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/analytics"
	"github.com/goldrush/polyprice/internal/export"
	"github.com/goldrush/polyprice/internal/marketdata"
	"github.com/goldrush/polyprice/internal/pricing"
)

const (
	defaultWindowDays  = 30
	maxWindowDays      = 3650
	snapshotWindowDays = 7
	defaultTrendDays   = 7
)

// Handler handles pricing HTTP requests
type Handler struct {
	source      *marketdata.Source
	engine      *pricing.Engine
	confidence  *pricing.ConfidenceScorer
	sensitivity *pricing.SensitivityAnalyzer
	quality     *marketdata.QualityScorer
	log         zerolog.Logger
}

// NewHandler creates a new pricing handler
func NewHandler(
	source *marketdata.Source,
	engine *pricing.Engine,
	confidence *pricing.ConfidenceScorer,
	sensitivity *pricing.SensitivityAnalyzer,
	quality *marketdata.QualityScorer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		source:      source,
		engine:      engine,
		confidence:  confidence,
		sensitivity: sensitivity,
		quality:     quality,
		log:         log.With().Str("handler", "pricing").Logger(),
	}
}

type computeRequest struct {
	WindowDays int                    `json:"window_days"`
	Parameters pricing.CostParameters `json:"parameters"`
	Formula    string                 `json:"formula,omitempty"`
}

// HandleCompute handles POST /api/price/compute
func (h *Handler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	var request computeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if request.WindowDays == 0 {
		request.WindowDays = defaultWindowDays
	}
	if request.WindowDays < 1 || request.WindowDays > maxWindowDays {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("window_days must be between 1 and %d", maxWindowDays))
		return
	}

	engine, err := h.engineFor(request.Formula)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.source.Fetch(r.Context(), request.WindowDays)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}

	startTime := time.Now()
	priced, err := engine.Compute(series, request.Parameters)
	if err != nil {
		var paramErr *pricing.ParameterError
		if errors.As(err, &paramErr) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Price computation failed: "+err.Error())
		return
	}

	h.log.Info().
		Int("rows", priced.Len()).
		Str("formula", engine.Variant().Name).
		Dur("elapsed", time.Since(startTime)).
		Msg("Price series computed")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"formula": engine.Variant().Name,
		"rows":    priced,
	})
}

// HandleSnapshot handles GET /api/price/snapshot. Failures degrade to a zero
// price so dashboard tiles always render.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	price := 0.0
	date := ""

	series, err := h.source.Fetch(r.Context(), snapshotWindowDays)
	if err == nil {
		if priced, cErr := h.engine.Compute(series, pricing.StandardParameters); cErr == nil {
			if last, ok := priced.LastFinalPrice(); ok {
				price = last
				date = priced[priced.Len()-1].Date.Format("2006-01-02")
			}
		}
	}
	if price == 0 {
		h.log.Warn().Err(err).Msg("Fair price snapshot degraded to zero")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"fair_price": price,
		"date":       date,
		"formula":    h.engine.Variant().Name,
	})
}

type sensitivityRequest struct {
	WindowDays int                           `json:"window_days"`
	Parameters pricing.CostParameters        `json:"parameters"`
	Ranges     map[string]pricing.DeltaRange `json:"ranges,omitempty"`
}

// HandleSensitivity handles POST /api/price/sensitivity
func (h *Handler) HandleSensitivity(w http.ResponseWriter, r *http.Request) {
	var request sensitivityRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if request.WindowDays == 0 {
		request.WindowDays = defaultWindowDays
	}

	result, err := h.sensitivity.Analyze(r.Context(), request.Parameters, request.Ranges, request.WindowDays)
	if err != nil {
		var paramErr *pricing.ParameterError
		if errors.As(err, &paramErr) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Sensitivity analysis failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleConfidence handles GET /api/price/confidence
func (h *Handler) HandleConfidence(w http.ResponseWriter, r *http.Request) {
	days, err := h.windowDays(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.source.Fetch(r.Context(), days)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}

	quality := h.quality.Score(series)
	priced, err := h.engine.Compute(series, pricing.StandardParameters)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Price computation failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.confidence.Score(priced, &quality))
}

// HandleTrend handles GET /api/price/trend
func (h *Handler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	days, err := h.windowDays(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trendDays := defaultTrendDays
	if raw := r.URL.Query().Get("window"); raw != "" {
		trendDays, err = strconv.Atoi(raw)
		if err != nil || trendDays < 1 {
			h.writeError(w, http.StatusBadRequest, "window must be a positive integer")
			return
		}
	}

	series, err := h.source.Fetch(r.Context(), days)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}
	priced, err := h.engine.Compute(series, pricing.StandardParameters)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Price computation failed: "+err.Error())
		return
	}

	trend, err := h.engine.TrendChange(priced, trendDays)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Trend computation failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, trend)
}

// HandleListFormulas handles GET /api/formulas
func (h *Handler) HandleListFormulas(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"default":  pricing.DefaultVariant().Name,
		"variants": pricing.Variants(),
	})
}

// HandleWindowMetrics handles GET /api/analytics/window
func (h *Handler) HandleWindowMetrics(w http.ResponseWriter, r *http.Request) {
	days, err := h.windowDays(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.source.Fetch(r.Context(), days)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}
	priced, err := h.engine.Compute(series, pricing.StandardParameters)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Price computation failed: "+err.Error())
		return
	}

	metrics, err := analytics.ComputeWindowMetrics(priced)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Metrics computation failed: "+err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, metrics)
}

type savingsRequest struct {
	CurrentPrice float64 `json:"current_price"`
	VolumeKg     float64 `json:"volume_kg"`
}

// HandleSavings handles POST /api/analytics/savings
func (h *Handler) HandleSavings(w http.ResponseWriter, r *http.Request) {
	var request savingsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	series, err := h.source.Fetch(r.Context(), snapshotWindowDays)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}
	priced, err := h.engine.Compute(series, pricing.StandardParameters)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Price computation failed: "+err.Error())
		return
	}
	fair, _ := priced.LastFinalPrice()

	result, err := analytics.ComputeSavingsPotential(request.CurrentPrice, fair, request.VolumeKg)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleExportXLSX handles GET /api/export/xlsx
func (h *Handler) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	days, err := h.windowDays(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.source.Fetch(r.Context(), days)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}
	priced, err := h.engine.Compute(series, pricing.StandardParameters)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Price computation failed: "+err.Error())
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, priced); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Export failed: "+err.Error())
		return
	}

	filename := fmt.Sprintf("fair-price-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Error().Err(err).Msg("Failed to write spreadsheet response")
	}
}

// engineFor returns the default engine or one bound to a requested variant.
func (h *Handler) engineFor(formula string) (*pricing.Engine, error) {
	if formula == "" || formula == h.engine.Variant().Name {
		return h.engine, nil
	}
	variant, err := pricing.VariantByName(formula)
	if err != nil {
		return nil, err
	}
	return pricing.NewEngine(variant, h.log), nil
}

// windowDays parses the days query parameter with a sane default and cap.
func (h *Handler) windowDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultWindowDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxWindowDays {
		return 0, fmt.Errorf("days must be an integer between 1 and %d", maxWindowDays)
	}
	return days, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
