package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/rs/zerolog"
)

// Ledger is the single source of truth for allocated hours.
//
// Writes happen inside Update units that hold the exclusive locks of every
// translator they touch. Reads outside a unit take the translator's read
// lock only, so they wait for an in-flight unit on that translator but never
// for units on other translators.
type Ledger struct {
	repo   Repository
	roster Roster
	cal    *calendar.Calendar
	locks  *lockRegistry
	tasks  *taskTracker
	now    func() time.Time
	log    zerolog.Logger
}

// New creates a ledger over repo
func New(repo Repository, roster Roster, cal *calendar.Calendar, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		roster: roster,
		cal:    cal,
		locks:  newLockRegistry(),
		tasks:  newTaskTracker(),
		now:    time.Now,
		log:    log.With().Str("component", "ledger").Logger(),
	}
}

// SetClock overrides the clock used for row timestamps
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// EntriesFor returns the translator's rows with date in [from, to]
func (l *Ledger) EntriesFor(ctx context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error) {
	defer l.locks.rlock(translatorID)()
	return l.repo.ListByTranslator(ctx, translatorID, calendar.Day(from), calendar.Day(to))
}

// AvailableHours is capacity minus TASK and BLOCK hours on date.
// A day with no rows reports the full capacity.
func (l *Ledger) AvailableHours(ctx context.Context, translatorID string, date time.Time) (float64, error) {
	t, err := l.roster.Get(ctx, translatorID)
	if err != nil {
		return 0, err
	}
	totals, err := DayTotalsFor(ctx, l, t, date)
	if err != nil {
		return 0, err
	}
	return totals.Available, nil
}

// maxLockedReads bounds the retries of a read whose rows change translator
// between the lookup and the locked re-read
const maxLockedReads = 5

// Get returns one row, read under its translator's read lock. A row written
// by a unit still in flight is only returned once that unit has committed.
func (l *Ledger) Get(ctx context.Context, id int64) (*domain.AllocationEntry, error) {
	for attempt := 0; attempt < maxLockedReads; attempt++ {
		seen, err := l.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		unlock := l.locks.rlock(seen.TranslatorID)
		e, err := l.repo.Get(ctx, id)
		unlock()
		if err != nil {
			return nil, err
		}
		if e.TranslatorID == seen.TranslatorID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("allocation %d kept moving between translators", id)
}

// EntriesForTask returns the rows owned by a task, read under the read locks
// of every translator holding them or writing them.
func (l *Ledger) EntriesForTask(ctx context.Context, taskID int64) ([]domain.AllocationEntry, error) {
	for attempt := 0; attempt < maxLockedReads; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen, err := l.repo.ListByTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		ids := uniqueSorted(append(translatorsOf(seen), l.tasks.holders(taskID)...))

		unlock := l.locks.rlockAll(ids)
		rows, err := l.repo.ListByTask(ctx, taskID)
		moved := !coveredBy(append(translatorsOf(rows), l.tasks.holders(taskID)...), ids)
		unlock()
		if err != nil {
			return nil, err
		}
		if !moved {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("rows of task %d kept moving between translators", taskID)
}

func translatorsOf(rows []domain.AllocationEntry) []string {
	out := make([]string, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.TranslatorID)
	}
	return out
}

// coveredBy reports whether every id is in locked
func coveredBy(ids, locked []string) bool {
	set := make(map[string]bool, len(locked))
	for _, id := range locked {
		set[id] = true
	}
	for _, id := range ids {
		if !set[id] {
			return false
		}
	}
	return true
}

// AddAllocation inserts one row in its own unit. It fails with
// CAPACITY_EXCEEDED unless force is set.
func (l *Ledger) AddAllocation(ctx context.Context, e *domain.AllocationEntry, force bool) (int64, error) {
	var id int64
	err := l.Update(ctx, []string{e.TranslatorID}, func(w *Writer) error {
		var err error
		id, err = w.AddAllocation(ctx, e, force)
		return err
	})
	return id, err
}

// RemoveAllocation deletes one row in its own unit
func (l *Ledger) RemoveAllocation(ctx context.Context, id int64) error {
	e, err := l.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return l.Update(ctx, []string{e.TranslatorID}, func(w *Writer) error {
		return w.RemoveAllocation(ctx, id)
	})
}

// UpdateAllocation changes the hours of one row in its own unit
func (l *Ledger) UpdateAllocation(ctx context.Context, id int64, hours float64) error {
	e, err := l.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return l.Update(ctx, []string{e.TranslatorID}, func(w *Writer) error {
		return w.UpdateAllocation(ctx, id, hours, false)
	})
}

// Update runs fn as one atomic unit holding the write locks of translatorIDs
// (taken in sorted order). If fn returns an error or panics, every write made
// through the Writer is undone in reverse order before the locks are released.
func (l *Ledger) Update(ctx context.Context, translatorIDs []string, fn func(w *Writer) error) (err error) {
	locked, unlock := l.locks.lockAll(translatorIDs)
	defer unlock()

	w := &Writer{
		ledger:   l,
		lockedBy: locked,
		locked:   make(map[string]bool, len(locked)),
	}
	for _, id := range locked {
		w.locked[id] = true
	}
	defer w.release()

	defer func() {
		if p := recover(); p != nil {
			w.rollback(ctx)
			panic(p)
		}
		if err != nil {
			w.rollback(ctx)
		}
	}()

	return fn(w)
}

// DayTotalsFor sums one translator-day through any view
func DayTotalsFor(ctx context.Context, v View, t *domain.Translator, date time.Time) (DayTotals, error) {
	date = calendar.Day(date)
	entries, err := v.EntriesFor(ctx, t.ID, date, date)
	if err != nil {
		return DayTotals{}, err
	}
	return Totals(entries, date, t.DailyCapacity), nil
}

// Writer mutates the ledger inside an Update unit. It reads without locking
// since the unit already holds the translators' write locks.
type Writer struct {
	ledger   *Ledger
	lockedBy []string
	locked   map[string]bool
	tasks    map[int64]bool
	undo     []undoStep
	added    []int64
}

type undoStep struct {
	desc string
	fn   func(ctx context.Context) error
}

// EntriesFor reads through the unit
func (w *Writer) EntriesFor(ctx context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error) {
	return w.ledger.repo.ListByTranslator(ctx, translatorID, calendar.Day(from), calendar.Day(to))
}

// EntriesForTask reads a task's rows through the unit
func (w *Writer) EntriesForTask(ctx context.Context, taskID int64) ([]domain.AllocationEntry, error) {
	return w.ledger.repo.ListByTask(ctx, taskID)
}

// Added returns the IDs of rows inserted so far in this unit
func (w *Writer) Added() []int64 {
	return append([]int64(nil), w.added...)
}

// OnRollback registers a compensation for a write made outside the ledger
// (for example the task row itself). It runs if the unit fails.
func (w *Writer) OnRollback(desc string, fn func(ctx context.Context) error) {
	w.undo = append(w.undo, undoStep{desc: desc, fn: fn})
}

// AddAllocation inserts e. Without force it fails with CAPACITY_EXCEEDED when
// the day's TASK+BLOCK hours would exceed capacity. Forced rows are flagged.
func (w *Writer) AddAllocation(ctx context.Context, e *domain.AllocationEntry, force bool) (int64, error) {
	if err := w.checkLocked(e.TranslatorID); err != nil {
		return 0, err
	}
	if err := validateEntry(e); err != nil {
		return 0, err
	}

	t, err := w.ledger.roster.Get(ctx, e.TranslatorID)
	if err != nil {
		return 0, err
	}

	row := cloneEntry(*e)
	row.ID = 0
	row.Date = calendar.Day(row.Date)
	row.Hours = domain.RoundHours(row.Hours)
	row.CreatedAt = w.ledger.now().UTC()

	totals, err := DayTotalsFor(ctx, w, t, row.Date)
	if err != nil {
		return 0, err
	}
	if Centi(row.Hours) > Centi(totals.Available) {
		if !force {
			return 0, capacityError(t, totals, row.Hours)
		}
		row.Forced = true
	}

	w.touchTask(row.TaskID)
	id, err := w.ledger.repo.Insert(ctx, &row)
	if err != nil {
		return 0, err
	}
	w.added = append(w.added, id)
	w.undo = append(w.undo, undoStep{
		desc: fmt.Sprintf("remove allocation %d", id),
		fn:   func(ctx context.Context) error { return w.ledger.repo.Delete(ctx, id) },
	})

	w.ledger.log.Debug().
		Int64("entry_id", id).
		Str("translator_id", row.TranslatorID).
		Str("date", row.Date.Format(time.DateOnly)).
		Float64("hours", row.Hours).
		Str("type", string(row.Type)).
		Bool("forced", row.Forced).
		Msg("Allocation added")

	return id, nil
}

// RemoveAllocation deletes one row
func (w *Writer) RemoveAllocation(ctx context.Context, id int64) error {
	e, err := w.ledger.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := w.checkLocked(e.TranslatorID); err != nil {
		return err
	}
	w.touchTask(e.TaskID)
	if err := w.ledger.repo.Delete(ctx, id); err != nil {
		return err
	}

	saved := *e
	w.undo = append(w.undo, undoStep{
		desc: fmt.Sprintf("restore allocation %d", id),
		fn: func(ctx context.Context) error {
			_, err := w.ledger.repo.Insert(ctx, &saved)
			return err
		},
	})
	return nil
}

// UpdateAllocation sets the hours of one row. A ranged row keeps its start and
// gets a recomputed end. Increases are capacity-checked unless force is set.
func (w *Writer) UpdateAllocation(ctx context.Context, id int64, hours float64, force bool) error {
	if hours <= 0 {
		return domain.InvalidInput("allocation hours must be positive, got %.2f", hours)
	}

	e, err := w.ledger.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := w.checkLocked(e.TranslatorID); err != nil {
		return err
	}

	t, err := w.ledger.roster.Get(ctx, e.TranslatorID)
	if err != nil {
		return err
	}

	prev := *e
	hours = domain.RoundHours(hours)
	if delta := Centi(hours) - Centi(e.Hours); delta > 0 {
		totals, err := DayTotalsFor(ctx, w, t, e.Date)
		if err != nil {
			return err
		}
		if delta > Centi(totals.Available) {
			if !force {
				return capacityError(t, totals, hours-e.Hours)
			}
			e.Forced = true
		}
	}

	e.Hours = hours
	if e.StartTime != nil {
		win := w.ledger.cal.WorkingWindow(t, e.Date)
		e.EndTime = win.Advance(*e.StartTime, Minutes(hours)).Ptr()
	}

	w.touchTask(e.TaskID)
	if err := w.ledger.repo.Update(ctx, e); err != nil {
		return err
	}
	w.undo = append(w.undo, undoStep{
		desc: fmt.Sprintf("revert allocation %d", id),
		fn:   func(ctx context.Context) error { return w.ledger.repo.Update(ctx, &prev) },
	})
	return nil
}

// touchTask marks taskID as being written by this unit until it ends
func (w *Writer) touchTask(taskID int64) {
	if taskID == 0 || w.tasks[taskID] {
		return
	}
	if w.tasks == nil {
		w.tasks = make(map[int64]bool)
	}
	w.tasks[taskID] = true
	w.ledger.tasks.enter(taskID, w.lockedBy)
}

// release runs after rollback and before the locks are dropped
func (w *Writer) release() {
	for taskID := range w.tasks {
		w.ledger.tasks.leave(taskID, w.lockedBy)
	}
	w.tasks = nil
}

func (w *Writer) checkLocked(translatorID string) error {
	if !w.locked[translatorID] {
		return fmt.Errorf("translator %s is not locked by this unit", translatorID)
	}
	return nil
}

func (w *Writer) rollback(ctx context.Context) {
	// Compensations must run even if the caller's context was cancelled
	ctx = context.WithoutCancel(ctx)
	for i := len(w.undo) - 1; i >= 0; i-- {
		step := w.undo[i]
		if err := step.fn(ctx); err != nil {
			w.ledger.log.Error().Err(err).Str("step", step.desc).Msg("Ledger rollback step failed")
		}
	}
	w.undo = nil
	w.added = nil
}

func validateEntry(e *domain.AllocationEntry) error {
	if e.TranslatorID == "" {
		return domain.InvalidInput("allocation requires a translator")
	}
	if e.Date.IsZero() {
		return domain.InvalidInput("allocation requires a date")
	}
	if e.Hours <= 0 {
		return domain.InvalidInput("allocation hours must be positive, got %.2f", e.Hours)
	}
	switch e.Type {
	case domain.EntryTask:
		if e.TaskID == 0 {
			return domain.InvalidInput("TASK allocation requires a task id")
		}
	case domain.EntryBlock:
	default:
		return domain.InvalidInput("unknown allocation type %q", e.Type)
	}
	if (e.StartTime == nil) != (e.EndTime == nil) {
		return domain.InvalidInput("allocation time range needs both start and end")
	}
	if e.StartTime != nil && *e.EndTime <= *e.StartTime {
		return domain.InvalidInput("allocation end %s must be after start %s", e.EndTime, e.StartTime)
	}
	return nil
}

func capacityError(t *domain.Translator, totals DayTotals, requested float64) *domain.Error {
	return domain.NewError(domain.CodeCapacityExceeded,
		"%s has %.2fh available on %s, %.2fh requested",
		t.ID, totals.Available, totals.Date.Format(time.DateOnly), domain.RoundHours(requested)).
		WithDetail("translator_id", t.ID).
		WithDetail("date", totals.Date.Format(time.DateOnly)).
		WithDetail("capacity", totals.Capacity).
		WithDetail("allocated", totals.Allocated()).
		WithDetail("available", totals.Available).
		WithDetail("requested", domain.RoundHours(requested))
}
