package config

import (
	"fmt"
	"os"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

// Planning holds the tunable scheduling rules read from the TOML file
type Planning struct {
	Calendar     CalendarRules     `toml:"calendar"`
	Distribution DistributionRules `toml:"distribution"`
	Resolution   ResolutionRules   `toml:"resolution"`
	Sweep        SweepRules        `toml:"sweep"`
}

// CalendarRules configures holidays and the lunch carve-out
type CalendarRules struct {
	Holidays   []string         `toml:"holidays"`    // YYYY-MM-DD
	HolidaySet string           `toml:"holiday_set"` // "quebec" or "none"
	ICSFiles   []string         `toml:"ics_files"`
	LunchStart domain.TimeOfDay `toml:"lunch_start"`
	LunchEnd   domain.TimeOfDay `toml:"lunch_end"`
}

// DistributionRules bounds the engine's day walk
type DistributionRules struct {
	HorizonDays int `toml:"horizon_days"` // business days searched past the natural window
}

// ResolutionRules tunes the suggester
type ResolutionRules struct {
	Weights              WeightRules `toml:"weights"`
	MaxCandidates        int         `toml:"max_candidates"`
	SuggestionTTLMinutes int         `toml:"suggestion_ttl_minutes"`
	AlwaysAlternatives   bool        `toml:"always_alternatives"`
}

// SweepRules bounds the periodic conflict sweep
type SweepRules struct {
	BusinessDays int `toml:"business_days"` // horizon from today, today included
}

// WeightRules are the impact sub-score weights
type WeightRules struct {
	HoursDisplaced    float64 `toml:"hours_displaced"`
	OtherTasksTouched float64 `toml:"other_tasks_touched"`
	TranslatorChange  float64 `toml:"translator_change"`
	DueDateRisk       float64 `toml:"due_date_risk"`
	Fragmentation     float64 `toml:"fragmentation"`
}

// DefaultPlanning returns the rules used when no file is present
func DefaultPlanning() Planning {
	return Planning{
		Calendar: CalendarRules{
			HolidaySet: "quebec",
			LunchStart: domain.NewTimeOfDay(12, 0),
			LunchEnd:   domain.NewTimeOfDay(13, 0),
		},
		Distribution: DistributionRules{
			HorizonDays: 60,
		},
		Resolution: ResolutionRules{
			Weights: WeightRules{
				HoursDisplaced:    0.30,
				OtherTasksTouched: 0.15,
				TranslatorChange:  0.25,
				DueDateRisk:       0.20,
				Fragmentation:     0.10,
			},
			MaxCandidates:        3,
			SuggestionTTLMinutes: 60,
		},
		Sweep: SweepRules{
			BusinessDays: 10,
		},
	}
}

// LoadPlanning reads the TOML rules at path over the defaults.
// A missing file yields the defaults.
func LoadPlanning(path string) (*Planning, error) {
	cfg := DefaultPlanning()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading planning config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing planning config: %w", err)
	}

	return &cfg, nil
}

// Validate checks internal consistency of the rules
func (p *Planning) Validate() error {
	if p.Calendar.LunchEnd < p.Calendar.LunchStart {
		return fmt.Errorf("lunch_end %s before lunch_start %s", p.Calendar.LunchEnd, p.Calendar.LunchStart)
	}
	for _, d := range p.Calendar.Holidays {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return fmt.Errorf("invalid holiday %q: %w", d, err)
		}
	}
	switch p.Calendar.HolidaySet {
	case "", "none", "quebec":
	default:
		return fmt.Errorf("unknown holiday_set %q", p.Calendar.HolidaySet)
	}
	if p.Distribution.HorizonDays <= 0 {
		return fmt.Errorf("horizon_days must be positive")
	}
	w := p.Resolution.Weights
	for _, v := range []float64{w.HoursDisplaced, w.OtherTasksTouched, w.TranslatorChange, w.DueDateRisk, w.Fragmentation} {
		if v < 0 {
			return fmt.Errorf("impact weights must be non-negative")
		}
	}
	if w.HoursDisplaced+w.OtherTasksTouched+w.TranslatorChange+w.DueDateRisk+w.Fragmentation == 0 {
		return fmt.Errorf("impact weights must not all be zero")
	}
	if p.Resolution.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive")
	}
	if p.Sweep.BusinessDays <= 0 {
		return fmt.Errorf("sweep business_days must be positive")
	}
	return nil
}

// SuggestionTTL returns the pending-suggestion lifetime
func (p *Planning) SuggestionTTL() time.Duration {
	if p.Resolution.SuggestionTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(p.Resolution.SuggestionTTLMinutes) * time.Minute
}
