// Package di provides dependency injection for background jobs.
package di

import (
	"fmt"

	"github.com/aristath/tradplan/internal/config"
	"github.com/aristath/tradplan/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	suggestionGCSchedule  = "@every 5m"
	dbMaintenanceSchedule = "0 2 * * *" // daily at 2 AM
)

// RegisterJobs creates the background jobs and registers them with a new
// scheduler. An empty SweepSchedule leaves the sweep available to RunNow only.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Calendar == nil {
		return nil, fmt.Errorf("services must be initialized before jobs")
	}

	sched := scheduler.New(cfg.Location, log)
	instances := &JobInstances{Scheduler: sched}

	instances.ConflictSweep = scheduler.NewConflictSweepJob(scheduler.ConflictSweepConfig{
		Roster:       container.RosterRepo,
		View:         container.Ledger,
		Detector:     container.Detector,
		Calendar:     container.Calendar,
		BusinessDays: cfg.Planning.Sweep.BusinessDays,
		Log:          log,
	})
	if cfg.SweepSchedule != "" {
		if err := sched.AddJob(cfg.SweepSchedule, instances.ConflictSweep); err != nil {
			return nil, fmt.Errorf("failed to register conflict_sweep job: %w", err)
		}
	}

	instances.SuggestionGC = scheduler.NewSuggestionGCJob(container.Store, cfg.Planning.SuggestionTTL(), log)
	if err := sched.AddJob(suggestionGCSchedule, instances.SuggestionGC); err != nil {
		return nil, fmt.Errorf("failed to register suggestion_gc job: %w", err)
	}

	if container.PlannerDB != nil {
		instances.DBMaintenance = scheduler.NewDBMaintenanceJob(container.PlannerDB, log)
		if err := sched.AddJob(dbMaintenanceSchedule, instances.DBMaintenance); err != nil {
			return nil, fmt.Errorf("failed to register db_maintenance job: %w", err)
		}
	}

	log.Info().Int("jobs", len(sched.Status())).Msg("Background jobs registered")

	return instances, nil
}
