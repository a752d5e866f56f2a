// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/tradplan/internal/config"
	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/blocks"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/aristath/tradplan/internal/modules/tasks"
	"github.com/rs/zerolog"
)

// InitializeServices creates all services
// Order: calendar -> ledger -> engine/detector -> suggestions -> write paths
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	cal, err := BuildCalendar(context.Background(), cfg, container.HolidayRepo, log)
	if err != nil {
		return fmt.Errorf("failed to build calendar: %w", err)
	}
	container.Calendar = cal

	container.Ledger = ledger.New(container.LedgerRepo, container.RosterRepo, cal, log)

	container.Engine = distribution.NewEngine(cal, distribution.Options{
		HorizonDays: cfg.Planning.Distribution.HorizonDays,
	}, log)
	container.Detector = conflicts.NewDetector(cal, log)

	container.Store = resolution.NewStore(log)
	w := cfg.Planning.Resolution.Weights
	container.Suggester = resolution.NewSuggester(
		container.Engine,
		container.Detector,
		container.Ledger,
		container.TaskRepo,
		container.RosterRepo,
		container.Store,
		resolution.Config{
			Weights: resolution.Weights{
				HoursDisplaced:    w.HoursDisplaced,
				OtherTasksTouched: w.OtherTasksTouched,
				TranslatorChange:  w.TranslatorChange,
				DueDateRisk:       w.DueDateRisk,
				Fragmentation:     w.Fragmentation,
			},
			MaxCandidates:      cfg.Planning.Resolution.MaxCandidates,
			AlwaysAlternatives: cfg.Planning.Resolution.AlwaysAlternatives,
		},
		log,
	)

	container.TaskService = tasks.NewService(
		container.TaskRepo,
		container.Ledger,
		container.Engine,
		container.Detector,
		container.RosterRepo,
		container.Store,
		log,
	)
	container.BlockService = blocks.NewService(
		container.Ledger,
		cal,
		container.Detector,
		container.Suggester,
		container.RosterRepo,
		log,
	)

	log.Info().Msg("All services initialized")

	return nil
}

// BuildCalendar merges every holiday source into one calendar: the rule set,
// the configured dates, the ICS feeds and the holidays table (nil skips it).
// Later sources rename earlier ones on the same date.
func BuildCalendar(ctx context.Context, cfg *config.Config, repo *calendar.Repository, log zerolog.Logger) (*calendar.Calendar, error) {
	rules := cfg.Planning.Calendar
	ruleSet, err := calendar.RuleSetByName(rules.HolidaySet)
	if err != nil {
		return nil, err
	}

	configured, err := calendar.ParseHolidayDates(rules.Holidays)
	if err != nil {
		return nil, err
	}

	cal := calendar.New(calendar.Options{
		Location: cfg.Location,
		Lunch:    domain.TimeRange{Start: rules.LunchStart, End: rules.LunchEnd},
		Holidays: configured,
		Rules:    ruleSet,
	})

	for _, path := range rules.ICSFiles {
		feed, err := calendar.LoadICSFile(path)
		if err != nil {
			return nil, err
		}
		cal.AddHolidays(feed...)
		log.Info().Str("path", path).Int("holidays", len(feed)).Msg("Loaded holiday calendar")
	}

	if repo != nil {
		stored, err := repo.List(ctx)
		if err != nil {
			return nil, err
		}
		cal.AddHolidays(stored...)
	}

	log.Info().
		Str("holiday_set", rules.HolidaySet).
		Int("configured", len(configured)).
		Str("timezone", cal.Location().String()).
		Msg("Calendar ready")

	return cal, nil
}
