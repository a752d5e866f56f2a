/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to services.
 */
package di

import (
	"github.com/aristath/tradplan/internal/database"
	"github.com/aristath/tradplan/internal/modules/blocks"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/aristath/tradplan/internal/modules/roster"
	"github.com/aristath/tradplan/internal/modules/tasks"
	"github.com/aristath/tradplan/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Database
	PlannerDB *database.DB

	// Repositories
	RosterRepo  roster.Repository
	LedgerRepo  ledger.Repository
	TaskRepo    tasks.Repository
	HolidayRepo *calendar.Repository

	// Core services
	Calendar  *calendar.Calendar
	Ledger    *ledger.Ledger
	Engine    *distribution.Engine
	Detector  *conflicts.Detector
	Store     *resolution.Store
	Suggester *resolution.Suggester

	// Write paths
	TaskService  *tasks.Service
	BlockService *blocks.Service
}

// JobInstances holds the scheduled jobs and the scheduler that runs them
type JobInstances struct {
	Scheduler     *scheduler.Scheduler
	ConflictSweep *scheduler.ConflictSweepJob
	SuggestionGC  *scheduler.SuggestionGCJob
	DBMaintenance *scheduler.DBMaintenanceJob
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c == nil || c.PlannerDB == nil {
		return nil
	}
	return c.PlannerDB.Close()
}
