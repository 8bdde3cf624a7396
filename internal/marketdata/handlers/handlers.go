package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/goldrush/polyprice/internal/marketdata"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 3650
)

// Handler handles market data HTTP requests
type Handler struct {
	source  *marketdata.Source
	quality *marketdata.QualityScorer
	log     zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(source *marketdata.Source, quality *marketdata.QualityScorer, log zerolog.Logger) *Handler {
	return &Handler{
		source:  source,
		quality: quality,
		log:     log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleGetData handles GET /api/market/data
func (h *Handler) HandleGetData(w http.ResponseWriter, r *http.Request) {
	days, err := windowDays(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.source.Fetch(r.Context(), days)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"window_days":  days,
		"observations": series,
	})
}

// HandleGetQuality handles GET /api/market/quality
func (h *Handler) HandleGetQuality(w http.ResponseWriter, r *http.Request) {
	days, err := windowDays(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.source.Fetch(r.Context(), days)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "Market data fetch failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.quality.Score(series))
}

// windowDays parses the days query parameter with a sane default and cap.
func windowDays(r *http.Request) (int, error) {
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
