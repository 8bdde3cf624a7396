package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/backtest"
	"github.com/goldrush/polyprice/internal/marketdata"
)

const (
	defaultWindowDays = 365
	maxUploadBytes    = 4 << 20

	defaultDateColumn  = "date"
	defaultPriceColumn = "price"
)

// Handler handles backtest HTTP requests
type Handler struct {
	source    *marketdata.Source
	validator *backtest.Validator
	log       zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(source *marketdata.Source, validator *backtest.Validator, log zerolog.Logger) *Handler {
	return &Handler{
		source:    source,
		validator: validator,
		log:       log.With().Str("handler", "backtest").Logger(),
	}
}

// RegisterRoutes registers all backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/backtest/validate", h.HandleValidate)
}

// HandleValidate handles POST /api/backtest/validate. The request is a
// multipart form with an observed-price CSV under "file", the column mapping
// under "date_column"/"price_column" and the formula knobs as form fields.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Missing observed price file: "+err.Error())
		return
	}
	defer file.Close()

	dateColumn := formValue(r, "date_column", defaultDateColumn)
	priceColumn := formValue(r, "price_column", defaultPriceColumn)
	observed, skipped, err := backtest.ParseObservedCSV(file, dateColumn, priceColumn)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Could not parse CSV: "+err.Error())
		return
	}

	params := backtest.FormulaParams{
		Coefficient: formFloat(r, "coefficient", 0.014),
		Spread:      formFloat(r, "spread", 0.35),
		Markup:      formFloat(r, "markup", 1.12),
	}
	windowDays := int(formFloat(r, "window_days", defaultWindowDays))
	if windowDays < 1 {
		h.writeError(w, http.StatusBadRequest, "window_days must be positive")
		return
	}

	series, err := h.source.Fetch(r.Context(), windowDays)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}

	result := h.validator.Validate(series, observed, params)

	h.log.Info().
		Str("status", result.Status).
		Int("observed", len(observed)).
		Int("skipped", skipped).
		Int("joined", len(result.Rows)).
		Msg("Backtest validated")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":       result,
		"rows_skipped": skipped,
	})
}

func formValue(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}

func formFloat(r *http.Request, key string, fallback float64) float64 {
	raw := r.FormValue(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
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
