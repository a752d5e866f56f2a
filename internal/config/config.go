// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the planner database (always absolute)
	LogLevel       string
	LogPretty      bool
	Port           int
	DevMode        bool
	Timezone       string
	Location       *time.Location
	PlanningPath   string // Optional TOML file with calendar/distribution/resolution rules
	SweepSchedule  string // Cron spec for the conflict sweep, empty disables it
	RateLimitRPS   float64
	RateLimitBurst int
	Planning       Planning
}

// Load reads configuration from environment variables, then the planning rules file
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("LOG_PRETTY", false),
		Port:           getEnvAsInt("PORT", 8080),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		Timezone:       getEnv("TIMEZONE", "America/Toronto"),
		PlanningPath:   getEnv("PLANNING_CONFIG", filepath.Join(absDataDir, "planning.toml")),
		SweepSchedule:  os.Getenv("SWEEP_SCHEDULE"),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 40),
	}
	if _, set := os.LookupEnv("SWEEP_SCHEDULE"); !set {
		cfg.SweepSchedule = "*/15 * * * *"
	}

	planning, err := LoadPlanning(cfg.PlanningPath)
	if err != nil {
		return nil, err
	}
	cfg.Planning = *planning

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable and resolves the timezone
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc

	return c.Planning.Validate()
}

// DatabasePath returns the sqlite file holding the ledger
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "planner.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
