// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/roster"
	"github.com/aristath/tradplan/internal/modules/tasks"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the sqlite repositories on planner.db
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.PlannerDB == nil {
		return fmt.Errorf("container has no planner database")
	}
	conn := container.PlannerDB.Conn()

	container.RosterRepo = roster.NewSQLiteRepository(conn, log)
	container.LedgerRepo = ledger.NewSQLiteRepository(conn, log)
	container.TaskRepo = tasks.NewSQLiteRepository(conn, log)
	container.HolidayRepo = calendar.NewRepository(conn, log)

	log.Info().Msg("All repositories initialized")

	return nil
}
