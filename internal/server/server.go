// Package server provides the HTTP server and routing for the planner.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/tradplan/internal/config"
	"github.com/aristath/tradplan/internal/di"
	blockshandlers "github.com/aristath/tradplan/internal/modules/blocks/handlers"
	calendarhandlers "github.com/aristath/tradplan/internal/modules/calendar/handlers"
	conflictshandlers "github.com/aristath/tradplan/internal/modules/conflicts/handlers"
	distributionhandlers "github.com/aristath/tradplan/internal/modules/distribution/handlers"
	ledgerhandlers "github.com/aristath/tradplan/internal/modules/ledger/handlers"
	resolutionhandlers "github.com/aristath/tradplan/internal/modules/resolution/handlers"
	rosterhandlers "github.com/aristath/tradplan/internal/modules/roster/handlers"
	taskshandlers "github.com/aristath/tradplan/internal/modules/tasks/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Jobs      *di.JobInstances
	Version   string
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	limiter        *RateLimiter
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
		limiter:   NewRateLimiter(cfg.Config.RateLimitRPS, cfg.Config.RateLimitBurst, cfg.Log),
		systemHandlers: NewSystemHandlers(SystemConfig{
			Log:         cfg.Log,
			DataDir:     cfg.Config.DataDir,
			DB:          cfg.Container.PlannerDB,
			Roster:      cfg.Container.RosterRepo,
			Suggestions: cfg.Container.Store,
			Jobs:        cfg.Jobs.Scheduler,
			Sweep:       cfg.Jobs.ConflictSweep,
			Version:     version,
		}),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(version)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler (used by tests)
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(30 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(version string) {
	s.router.Get("/health", s.handleHealth(version))

	c := s.container

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		// System monitoring and operations
		s.systemHandlers.RegisterRoutes(r)

		// Distribution previews (no ledger writes)
		distributionhandlers.NewHandler(c.Engine, c.RosterRepo, c.Ledger, s.log).RegisterRoutes(r)

		// Task write path
		taskshandlers.NewHandler(c.TaskService, c.Calendar, s.log).RegisterRoutes(r)

		// Blocages
		blockshandlers.NewHandler(c.BlockService, s.log).RegisterRoutes(r)

		// Conflict detection and suggestions
		conflictshandlers.NewHandler(c.Detector, c.Suggester, c.Ledger, c.RosterRepo, s.log).RegisterRoutes(r)
		resolutionhandlers.NewHandler(c.Store, c.TaskService, s.log).RegisterRoutes(r)

		// Read models
		rosterhandlers.NewHandler(c.RosterRepo, c.Ledger, c.Calendar, s.log).RegisterRoutes(r)
		ledgerhandlers.NewHandler(c.Ledger, c.RosterRepo, c.Calendar, s.log).RegisterRoutes(r)
		calendarhandlers.NewHandler(c.Calendar, c.HolidayRepo, s.log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
