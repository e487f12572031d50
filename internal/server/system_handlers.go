package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/compositedge/bondmonitor/internal/database"
	"github.com/compositedge/bondmonitor/internal/modules/snapshots"
)

// SystemHandlers handles system-wide monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   []*database.DB
	snapshots   *snapshots.Manager
}

// NewSystemHandlers creates a new system handlers instance.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases []*database.DB, snapshotMgr *snapshots.Manager) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		snapshots:   snapshotMgr,
	}
}

// HandleHealth is the liveness probe: cheap, no integrity checks.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbs := make(map[string]string, len(h.databases))
	for _, db := range h.databases {
		if err := db.QuickCheck(r.Context()); err != nil {
			dbs[db.Name()] = err.Error()
			status = "degraded"
		} else {
			dbs[db.Name()] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startupTime).Seconds()),
		"databases":      dbs,
	})
}

// HandleSystemStatus returns host resource usage and data footprint.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.getSystemStats()

	snapshotAge := -1
	if snap, ok := h.snapshots.Current(); ok {
		snapshotAge = int(time.Since(snap.FetchedAt).Seconds())
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds":       int(time.Since(h.startupTime).Seconds()),
		"cpu_percent":          cpuPct,
		"memory_percent":       memPct,
		"data_dir_mb":          h.getDirSize(h.dataDir),
		"snapshot_age_seconds": snapshotAge, // -1 before the first refresh
	})
}

// getSystemStats samples CPU and RAM usage. A short sampling window keeps
// the endpoint responsive for dashboard polling.
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

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
