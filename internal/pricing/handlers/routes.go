package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all pricing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/price", func(r chi.Router) {
		r.Post("/compute", h.HandleCompute)         // Full cost cascade
		r.Get("/snapshot", h.HandleSnapshot)        // Latest fair price, standard parameters
		r.Post("/sensitivity", h.HandleSensitivity) // One-at-a-time parameter impact
		r.Get("/confidence", h.HandleConfidence)    // Composite trust score
		r.Get("/trend", h.HandleTrend)              // Price move vs trailing window
	})
	r.Get("/formulas", h.HandleListFormulas)
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/window", h.HandleWindowMetrics)
		r.Post("/savings", h.HandleSavings)
	})
	r.Get("/export/xlsx", h.HandleExportXLSX)
}
