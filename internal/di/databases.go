// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/tradplan/internal/config"
	"github.com/aristath/tradplan/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens planner.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// planner.db - translators, tasks, the allocation ledger and stored holidays
	plannerDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger, // Maximum safety for the capacity ledger
		Name:    "planner",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize planner database: %w", err)
	}
	container.PlannerDB = plannerDB

	if err := plannerDB.Migrate(); err != nil {
		plannerDB.Close()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", plannerDB.Name(), err)
	}

	log.Info().Str("path", plannerDB.Path()).Msg("Planner database initialized and schema applied")

	return container, nil
}
