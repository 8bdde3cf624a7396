package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/goldrush/polyprice/internal/database"
)

// SystemHandlers handles health and system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	marketDB    *database.DB
	cacheDB     *database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, marketDB, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		marketDB:    marketDB,
		cacheDB:     cacheDB,
	}
}

// HandleHealth handles GET /health and GET /api/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	databases := map[string]bool{
		"market": h.marketDB.QuickCheck(r.Context()) == nil,
		"cache":  h.cacheDB.QuickCheck(r.Context()) == nil,
	}

	healthy := true
	for _, ok := range databases {
		if !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	h.writeJSON(w, status, map[string]interface{}{
		"status":    state,
		"databases": databases,
		"uptime":    time.Since(h.startupTime).Round(time.Second).String(),
	})
}

// HandleSystemStatus handles GET /api/system
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data_dir":       h.dataDir,
		"uptime":         time.Since(h.startupTime).Round(time.Second).String(),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(m.HeapAlloc) / 1024 / 1024,
		"go_version":     runtime.Version(),
	})
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
