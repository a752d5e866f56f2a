// Package distribution spreads a task's total hours over business days under
// one of four policies: Just-In-Time, FIFO, Balanced and Manual.
//
// All arithmetic is done in hundredths of an hour so the allocated hours of a
// successful distribution sum exactly to the requested total. Time ranges are
// derived from each day's free segments (the working window minus ranged
// ledger rows), stepping over the lunch carve-out.
package distribution

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// Warning kinds
const (
	WarningPastDates      = "past_dates"
	WarningAfterDueDate   = "after_due_date"
	WarningAfterWindowEnd = "after_window_end"
)

// Request describes one distribution
type Request struct {
	Translator *domain.Translator
	TotalHours float64
	Mode       domain.DistributionMode
	// Due is the due instant; the due day is clipped to its time of day
	Due time.Time
	// Start/End are civil dates. BALANCED requires both; FIFO uses them as bounds.
	Start *time.Time
	End   *time.Time
	// Manual is the caller-supplied allocation for MANUAL
	Manual []domain.Slot
	// NoWarnings keeps the walk inside [today, due]: nothing is placed on past
	// days or after the due date, and any remainder is INFEASIBLE.
	NoWarnings bool
}

// Warning lists dates that need caller confirmation before the allocation is committed
type Warning struct {
	Code    domain.ErrorCode `json:"code"`
	Kind    string           `json:"kind"`
	Dates   []time.Time      `json:"dates"`
	Hours   float64          `json:"hours"`
	Message string           `json:"message"`
}

// Result is a proposed allocation
type Result struct {
	Mode      domain.DistributionMode `json:"mode"`
	Slots     []domain.Slot           `json:"allocations"`
	Total     float64                 `json:"total_hours"`
	Allocated float64                 `json:"allocated_hours"`
	Remaining float64                 `json:"remaining_hours"`
	RanOutOn  *time.Time              `json:"ran_out_on,omitempty"`
	Warning   *Warning                `json:"warning,omitempty"`
}

// Complete reports whether every hour was placed
func (r *Result) Complete() bool {
	return r != nil && r.Remaining == 0
}

// Days returns the number of distinct dates used
func (r *Result) Days() int {
	seen := make(map[time.Time]bool)
	for _, s := range r.Slots {
		seen[s.Date] = true
	}
	return len(seen)
}

// Options tunes the engine
type Options struct {
	// HorizonDays bounds, in business days, how far JAT looks back past today
	// and how far FIFO overflows past the due date.
	HorizonDays int
}

// Engine runs distributions. It never writes to the ledger.
type Engine struct {
	cal     *calendar.Calendar
	horizon int
	now     func() time.Time
	log     zerolog.Logger
}

// NewEngine creates an engine
func NewEngine(cal *calendar.Calendar, opts Options, log zerolog.Logger) *Engine {
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = 60
	}
	return &Engine{
		cal:     cal,
		horizon: horizon,
		now:     time.Now,
		log:     log.With().Str("component", "distribution").Logger(),
	}
}

// SetClock injects the clock; identical ledger state and clock give identical output
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Calendar returns the engine's calendar
func (e *Engine) Calendar() *calendar.Calendar {
	return e.cal
}

// Now returns the engine's current time
func (e *Engine) Now() time.Time {
	return e.now()
}

// Distribute computes an allocation for req against view.
//
// Failures are typed: INVALID_INPUT for malformed requests, and INFEASIBLE
// when hours remain unplaced. An INFEASIBLE error comes with the partial
// Result so the caller can route to resolution. Soft problems (past dates,
// overflow past the due date) are reported in Result.Warning with a nil error.
func (e *Engine) Distribute(ctx context.Context, view ledger.View, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	total := ledger.Centi(req.TotalHours)
	var (
		res *Result
		err error
	)
	switch req.Mode {
	case domain.ModeJustInTime:
		res, err = e.justInTime(ctx, view, req, total)
	case domain.ModeFIFO:
		res, err = e.fifo(ctx, view, req, total)
	case domain.ModeBalanced:
		res, err = e.balanced(ctx, view, req, total)
	case domain.ModeManual:
		return e.manual(req, total)
	}
	if err != nil {
		return nil, err
	}

	return e.finish(req, res)
}

// Allocatable returns the hours t could still take from now until due,
// counting only the free time a distribution would use.
func (e *Engine) Allocatable(ctx context.Context, view ledger.View, t *domain.Translator, due time.Time) (float64, error) {
	today, nowTOD := e.cal.Clock(e.now())
	dueDay, dueTOD := e.cal.Clock(due)

	var total int64
	for _, d := range e.cal.BusinessDays(today, dueDay) {
		plan, err := e.planDay(ctx, view, t, d, dayBounds(d, today, nowTOD, dueDay, dueTOD))
		if err != nil {
			return 0, err
		}
		total += plan.capacity
	}
	return float64(total) / 100, nil
}

func validateRequest(req Request) error {
	if req.Translator == nil {
		return domain.InvalidInput("translator is required")
	}
	if req.TotalHours <= 0 || ledger.Centi(req.TotalHours) <= 0 {
		return domain.InvalidInput("total hours must be positive, got %.2f", req.TotalHours)
	}
	if !req.Mode.Valid() {
		return domain.InvalidInput("unknown distribution mode %q", req.Mode)
	}
	if req.Due.IsZero() {
		return domain.InvalidInput("due date is required")
	}
	if req.Start != nil && req.End != nil && calendar.Day(*req.Start).After(calendar.Day(*req.End)) {
		return domain.InvalidInput("window start %s is after end %s",
			req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly))
	}
	return nil
}

// finish sorts slots, fills totals and turns a remainder into INFEASIBLE
func (e *Engine) finish(req Request, res *Result) (*Result, error) {
	sortSlots(res.Slots)

	var placed int64
	for _, s := range res.Slots {
		placed += ledger.Centi(s.Hours)
	}
	total := ledger.Centi(req.TotalHours)
	res.Mode = req.Mode
	res.Total = float64(total) / 100
	res.Allocated = float64(placed) / 100
	res.Remaining = float64(total-placed) / 100
	if res.Slots == nil {
		res.Slots = []domain.Slot{}
	}

	if placed >= total {
		return res, nil
	}

	err := domain.NewError(domain.CodeInfeasible,
		"%.2fh of %.2fh could not be placed for %s", res.Remaining, res.Total, req.Translator.ID).
		WithDetail("remaining_hours", res.Remaining).
		WithDetail("allocated_hours", res.Allocated).
		WithDetail("translator_id", req.Translator.ID)
	if res.RanOutOn != nil {
		err.WithDetail("ran_out_on", res.RanOutOn.Format(time.DateOnly))
	}

	e.log.Debug().
		Str("translator_id", req.Translator.ID).
		Str("mode", string(req.Mode)).
		Float64("remaining", res.Remaining).
		Msg("Distribution infeasible")

	return res, err
}

func sortSlots(slots []domain.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return slotStart(a) < slotStart(b)
	})
}

func slotStart(s domain.Slot) int {
	if s.StartTime == nil {
		return -1
	}
	return int(*s.StartTime)
}

const confirmSuffix = "; confirm to proceed"

func newWarning(kind string, dates []time.Time, centi int64) *Warning {
	w := &Warning{
		Code:  domain.CodePastDateWarning,
		Kind:  kind,
		Dates: dates,
		Hours: float64(centi) / 100,
	}
	switch kind {
	case WarningPastDates:
		w.Message = "some calculated dates precede the current date" + confirmSuffix
	case WarningAfterDueDate:
		w.Message = "some hours fall after the due date" + confirmSuffix
	case WarningAfterWindowEnd:
		w.Message = "some hours fall after the window end" + confirmSuffix
	}
	return w
}

// mergeWarning folds b into a. The result keeps a's code and kind and lists
// the dates of both in order.
func mergeWarning(a, b *Warning) *Warning {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	merged := *a
	merged.Dates = append(append([]time.Time(nil), a.Dates...), b.Dates...)
	sort.Slice(merged.Dates, func(i, j int) bool { return merged.Dates[i].Before(merged.Dates[j]) })
	merged.Hours = math.Round((a.Hours+b.Hours)*100) / 100
	merged.Message = strings.TrimSuffix(a.Message, confirmSuffix) + " and " + strings.TrimPrefix(b.Message, "some ")
	return &merged
}
