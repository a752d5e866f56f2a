package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/tradplan/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk thresholds for the maintenance check, in bytes
const (
	criticalFreeBytes = 200 << 20 // 200MB
	lowFreeBytes      = 2 << 30   // 2GB
)

// DiskUsageFunc reports free bytes for path
type DiskUsageFunc func(path string) (uint64, error)

// DBMaintenanceJob performs daily planner database maintenance
type DBMaintenanceJob struct {
	db        *database.DB
	diskUsage DiskUsageFunc
	timeout   time.Duration
	log       zerolog.Logger
}

// NewDBMaintenanceJob creates a new maintenance job for db
func NewDBMaintenanceJob(db *database.DB, log zerolog.Logger) *DBMaintenanceJob {
	return &DBMaintenanceJob{
		db:        db,
		diskUsage: freeBytes,
		timeout:   5 * time.Minute,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// SetDiskUsage replaces the disk probe (used by tests)
func (j *DBMaintenanceJob) SetDiskUsage(fn DiskUsageFunc) {
	j.diskUsage = fn
}

// Name returns the job name for scheduler
func (j *DBMaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run checks integrity, truncates the WAL and checks free disk space
func (j *DBMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting database maintenance")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// Step 1: Integrity check
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("CRITICAL: Planner database failed integrity check")
		return err
	}

	// Step 2: WAL checkpoint (prevent bloat)
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		// Not critical, the next run retries
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	// Step 3: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration_ms", time.Since(start)).
		Msg("Database maintenance completed successfully")

	return nil
}

// checkDiskSpace verifies sufficient disk space is available next to the database
func (j *DBMaintenanceJob) checkDiskSpace() error {
	free, err := j.diskUsage(filepath.Dir(j.db.Path()))
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read disk usage")
		return nil
	}

	freeMB := float64(free) / (1 << 20)
	j.log.Debug().Float64("free_mb", freeMB).Msg("Disk space check")

	switch {
	case free < criticalFreeBytes:
		j.log.Error().Float64("free_mb", freeMB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.0f MB free next to %s", freeMB, j.db.Path())
	case free < lowFreeBytes:
		j.log.Warn().Float64("free_mb", freeMB).Msg("Disk space running low")
	}
	return nil
}

func freeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
