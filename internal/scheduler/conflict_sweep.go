package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// Roster lists translators for the sweep
type Roster interface {
	List(ctx context.Context) ([]*domain.Translator, error)
}

// SweepReport summarises one conflict sweep
type SweepReport struct {
	From         time.Time                   `json:"from"`
	To           time.Time                   `json:"to"`
	Translators  int                         `json:"translators"`
	Conflicts    int                         `json:"conflicts"`
	ByType       map[domain.ConflictType]int `json:"by_type"`
	ByTranslator map[string]int              `json:"by_translator"`
	FinishedAt   time.Time                   `json:"finished_at"`
}

// ConflictSweepJob re-runs detection for every active translator over the
// coming business days. It only reads the ledger.
type ConflictSweepJob struct {
	roster   Roster
	view     ledger.View
	detector *conflicts.Detector
	cal      *calendar.Calendar
	days     int
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu   sync.RWMutex
	last *SweepReport
}

// ConflictSweepConfig holds configuration for the sweep job
type ConflictSweepConfig struct {
	Roster       Roster
	View         ledger.View
	Detector     *conflicts.Detector
	Calendar     *calendar.Calendar
	BusinessDays int           // horizon, today included
	Timeout      time.Duration // per run, defaults to one minute
	Log          zerolog.Logger
}

// NewConflictSweepJob creates a new sweep job
func NewConflictSweepJob(cfg ConflictSweepConfig) *ConflictSweepJob {
	days := cfg.BusinessDays
	if days <= 0 {
		days = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &ConflictSweepJob{
		roster:   cfg.Roster,
		view:     cfg.View,
		detector: cfg.Detector,
		cal:      cfg.Calendar,
		days:     days,
		timeout:  timeout,
		now:      time.Now,
		log:      cfg.Log.With().Str("job", "conflict_sweep").Logger(),
	}
}

// SetClock injects the clock used to find today
func (j *ConflictSweepJob) SetClock(now func() time.Time) {
	j.now = now
}

// Name returns the job name
func (j *ConflictSweepJob) Name() string {
	return "conflict_sweep"
}

// Run executes the sweep
func (j *ConflictSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.Sweep(ctx)
	return err
}

// Sweep detects conflicts for every active translator and records the report
func (j *ConflictSweepJob) Sweep(ctx context.Context) (*SweepReport, error) {
	from, to := j.horizon()

	translators, err := j.roster.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}

	report := &SweepReport{
		From:         from,
		To:           to,
		ByType:       make(map[domain.ConflictType]int),
		ByTranslator: make(map[string]int),
	}
	for _, t := range translators {
		if !t.Active {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cs, err := j.detector.Detect(ctx, j.view, t, from, to, conflicts.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to detect conflicts for %s: %w", t.ID, err)
		}
		report.Translators++
		report.Conflicts += len(cs)
		if len(cs) > 0 {
			report.ByTranslator[t.ID] = len(cs)
		}
		for typ, n := range conflicts.CountByType(cs) {
			report.ByType[typ] += n
		}
	}
	report.FinishedAt = j.now()

	j.mu.Lock()
	j.last = report
	j.mu.Unlock()

	event := j.log.Info()
	if report.Conflicts > 0 {
		event = j.log.Warn()
	}
	event.
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Int("translators", report.Translators).
		Int("conflicts", report.Conflicts).
		Interface("by_type", report.ByType).
		Msg("Conflict sweep completed")

	return report, nil
}

// LastReport returns the most recent sweep, or nil before the first run
func (j *ConflictSweepJob) LastReport() *SweepReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

// horizon is [today, the days-th business day from today]
func (j *ConflictSweepJob) horizon() (time.Time, time.Time) {
	today := j.cal.Today(j.now())
	end := today
	if !j.cal.IsBusinessDay(end) {
		end = j.cal.NextBusinessDay(end)
	}
	for i := 1; i < j.days; i++ {
		end = j.cal.NextBusinessDay(end)
	}
	return today, end
}
