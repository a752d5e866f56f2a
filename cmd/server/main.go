// Package main is the entry point for the translator workload planner.
//
// The default command serves the HTTP API and runs the scheduled jobs. The
// other commands operate on the planner database directly:
//   - migrate: create or upgrade the schema
//   - sweep: run one conflict sweep and print the report
//   - roster import: load translators from a JSON file
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/tradplan/internal/config"
	"github.com/aristath/tradplan/internal/di"
	"github.com/aristath/tradplan/internal/modules/roster"
	"github.com/aristath/tradplan/internal/server"
	"github.com/aristath/tradplan/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "tradplan",
	Short:         "Translator workload planner",
	Long:          "tradplan distributes translation tasks over translators' working days and detects and resolves scheduling conflicts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled jobs",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the planner database schema",
	RunE:  runMigrate,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one conflict sweep and print the report as JSON",
	RunE:  runSweep,
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the translator roster",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import translators from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE:  runRosterImport,
}

func init() {
	rosterCmd.AddCommand(rosterImportCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(rosterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Error().Err(err).Msg("Failed to load configuration")
		return nil, fallbackLog, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	log.Info().Str("version", version).Msg("Starting tradplan")

	// Wire all dependencies using DI container
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
		Version:   version,
	})

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	jobs.Scheduler.Start()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		jobs.Scheduler.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")
	jobs.Scheduler.Stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	log.Info().Str("path", container.PlannerDB.Path()).Msg("Database schema is up to date")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	if jobs.ConflictSweep == nil {
		return errors.New("conflict sweep job is not configured")
	}

	report, err := jobs.ConflictSweep.Sweep(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runRosterImport(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open roster file: %w", err)
	}
	defer f.Close()

	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := di.InitializeRepositories(container, log); err != nil {
		return err
	}

	n, err := roster.Import(cmd.Context(), container.RosterRepo, f)
	if err != nil {
		return err
	}

	log.Info().Int("translators", n).Str("file", args[0]).Msg("Roster imported")
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d translators\n", n)
	return nil
}
