package server

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/tradplan/internal/database"
	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/scheduler"
	"github.com/aristath/tradplan/internal/server/apierr"
)

// TranslatorLister lists the roster
type TranslatorLister interface {
	List(ctx context.Context) ([]*domain.Translator, error)
}

// PendingSuggestions exposes the suggestion store size
type PendingSuggestions interface {
	Pending() []domain.Suggestion
}

// countedTables are reported by /system/database/stats
var countedTables = []string{"translators", "tasks", "allocations", "holidays"}

// SystemHandlers handles system-wide monitoring and operations
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	db          *database.DB
	roster      TranslatorLister
	suggestions PendingSuggestions
	jobs        *scheduler.Scheduler
	sweep       *scheduler.ConflictSweepJob
	version     string
	startup     time.Time
}

// SystemConfig holds the dependencies of the system handlers
type SystemConfig struct {
	Log         zerolog.Logger
	DataDir     string
	DB          *database.DB
	Roster      TranslatorLister
	Suggestions PendingSuggestions
	Jobs        *scheduler.Scheduler
	Sweep       *scheduler.ConflictSweepJob // nil when not registered
	Version     string
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(cfg SystemConfig) *SystemHandlers {
	return &SystemHandlers{
		log:         cfg.Log.With().Str("handler", "system").Logger(),
		dataDir:     cfg.DataDir,
		db:          cfg.DB,
		roster:      cfg.Roster,
		suggestions: cfg.Suggestions,
		jobs:        cfg.Jobs,
		sweep:       cfg.Sweep,
		version:     cfg.Version,
		startup:     time.Now(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/conflict-sweep", h.HandleTriggerSweep)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)
	})
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status             string                 `json:"status"`
	Version            string                 `json:"version"`
	UptimeSeconds      int64                  `json:"uptime_seconds"`
	CPUPercent         float64                `json:"cpu_percent"`
	MemoryPercent      float64                `json:"memory_percent"`
	DatabaseSizeBytes  int64                  `json:"database_size_bytes"`
	Translators        int                    `json:"translators"`
	ActiveTranslators  int                    `json:"active_translators"`
	PendingSuggestions int                    `json:"pending_suggestions"`
	LastSweep          *scheduler.SweepReport `json:"last_sweep,omitempty"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startup).Seconds()),
	}

	resp.CPUPercent, resp.MemoryPercent = h.hostStats()

	if h.db != nil {
		if stats, err := h.db.GetStats(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to read database stats")
		} else {
			resp.DatabaseSizeBytes = stats.SizeBytes + stats.WALSizeBytes
		}
	}

	translators, err := h.roster.List(r.Context())
	if err != nil {
		apierr.Write(w, h.log, err, nil)
		return
	}
	resp.Translators = len(translators)
	for _, t := range translators {
		if t.Active {
			resp.ActiveTranslators++
		}
	}

	if h.suggestions != nil {
		resp.PendingSuggestions = len(h.suggestions.Pending())
	}
	if h.sweep != nil {
		resp.LastSweep = h.sweep.LastReport()
	}

	apierr.WriteJSON(w, h.log, http.StatusOK, apierr.Envelope(resp))
}

// hostStats samples CPU and memory usage, zero on failure
func (h *SystemHandlers) hostStats() (float64, float64) {
	var cpuPercent, memPercent float64

	if percents, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		h.log.Debug().Err(err).Msg("Failed to sample CPU")
	} else if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		h.log.Debug().Err(err).Msg("Failed to read memory")
	} else {
		memPercent = vm.UsedPercent
	}

	return cpuPercent, memPercent
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.jobs != nil {
		jobs = h.jobs.Status()
	}

	apierr.WriteJSON(w, h.log, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	}))
}

// HandleTriggerSweep handles POST /api/system/jobs/conflict-sweep
func (h *SystemHandlers) HandleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweep == nil {
		apierr.Write(w, h.log, domain.NotFound("conflict sweep job is not registered"), nil)
		return
	}

	var err error
	if h.jobs != nil {
		err = h.jobs.RunNow(h.sweep)
	} else {
		_, err = h.sweep.Sweep(r.Context())
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Manual conflict sweep failed")
		apierr.Write(w, h.log, err, nil)
		return
	}

	apierr.WriteJSON(w, h.log, http.StatusOK, apierr.Envelope(h.sweep.LastReport()))
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		apierr.Write(w, h.log, domain.NotFound("planner database is not open"), nil)
		return
	}

	stats, err := h.db.GetStats()
	if err != nil {
		apierr.Write(w, h.log, err, nil)
		return
	}

	rows := make(map[string]int64, len(countedTables))
	for _, table := range countedTables {
		n, err := countRows(r.Context(), h.db.Conn(), table)
		if err != nil {
			apierr.Write(w, h.log, err, nil)
			return
		}
		rows[table] = n
	}

	apierr.WriteJSON(w, h.log, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"name":  h.db.Name(),
		"stats": stats,
		"rows":  rows,
	}))
}

// countRows counts a fixed table; table names never come from the request
func countRows(ctx context.Context, conn *sql.DB, table string) (int64, error) {
	var n int64
	err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	dataBytes, err := dirSize(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("data_dir", h.dataDir).Msg("Failed to size data directory")
	}

	resp := map[string]interface{}{
		"data_dir":        h.dataDir,
		"data_size_bytes": dataBytes,
	}

	if usage, err := disk.Usage(h.dataDir); err != nil {
		h.log.Debug().Err(err).Msg("Failed to read disk usage")
	} else {
		resp["disk_total_bytes"] = usage.Total
		resp["disk_free_bytes"] = usage.Free
		resp["disk_used_percent"] = usage.UsedPercent
	}

	apierr.WriteJSON(w, h.log, http.StatusOK, apierr.Envelope(resp))
}

// dirSize sums the size of regular files below path
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
