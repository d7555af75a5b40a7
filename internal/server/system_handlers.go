package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"quantfolio/internal/database"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	db          *database.DB
	startupTime time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, db *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		db:          db,
		startupTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string  `json:"status"` // "healthy" or "unhealthy"
	Database    string  `json:"database"`
	UptimeHours float64 `json:"uptime_hours"`
}

// InfoResponse represents the system info response
type InfoResponse struct {
	GoVersion    string  `json:"go_version"`
	NumCPU       int     `json:"num_cpu"`
	NumGoroutine int     `json:"num_goroutine"`
	CPUPercent   float64 `json:"cpu_percent"`
	RAMPercent   float64 `json:"ram_percent"`
	DatabaseMB   float64 `json:"database_mb"`
	UptimeHours  float64 `json:"uptime_hours"`
}

// HandleHealth handles GET /api/system/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:      "healthy",
		Database:    "ok",
		UptimeHours: time.Since(h.startupTime).Hours(),
	}

	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Database health check failed")
		response.Status = "unhealthy"
		response.Database = err.Error()
		h.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleInfo handles GET /api/system/info
func (h *SystemHandlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	response := InfoResponse{
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		CPUPercent:   cpuPercent,
		RAMPercent:   ramPercent,
		DatabaseMB:   h.databaseSizeMB(),
		UptimeHours:  time.Since(h.startupTime).Hours(),
	}

	h.writeJSON(w, http.StatusOK, response)
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval to avoid blocking the API call for too long.
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

// databaseSizeMB returns the size of the prices database on disk
func (h *SystemHandlers) databaseSizeMB() float64 {
	info, err := os.Stat(filepath.Join(h.dataDir, "prices.db"))
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024 / 1024
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
