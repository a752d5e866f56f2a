// Package conflicts derives scheduling rule violations from the ledger.
// Conflicts are never stored: every call recomputes them from the rows.
package conflicts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// namespace seeds the name-based conflict IDs
var namespace = uuid.MustParse("6f1c2a4e-9b0d-4c57-8e3a-2d5b7f9e1a60")

// Options scopes one detection run
type Options struct {
	// TriggerIDs are the ledger rows written by the change being checked.
	// A capacity violation that disappears without them is labelled
	// OVER_ALLOCATION instead of CAPACITY_EXCEEDED.
	TriggerIDs []int64
}

// Detector evaluates conflict rules per translator-day
type Detector struct {
	cal *calendar.Calendar
	log zerolog.Logger
}

// NewDetector creates a detector
func NewDetector(cal *calendar.Calendar, log zerolog.Logger) *Detector {
	return &Detector{
		cal: cal,
		log: log.With().Str("component", "conflict_detector").Logger(),
	}
}

// Detect returns every conflict of t in [from, to], sorted by date, type and ID
func (d *Detector) Detect(ctx context.Context, view ledger.View, t *domain.Translator, from, to time.Time, opts Options) ([]domain.Conflict, error) {
	from, to = calendar.Day(from), calendar.Day(to)
	if to.Before(from) {
		return nil, domain.InvalidInput("date range end %s precedes start %s",
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	entries, err := view.EntriesFor(ctx, t.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", t.ID, err)
	}

	out := d.DetectEntries(t, entries, opts)
	d.log.Debug().
		Str("translator_id", t.ID).
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Int("conflicts", len(out)).
		Msg("Detection complete")
	return out, nil
}

// DetectEntries runs the rules over already loaded rows of one translator
func (d *Detector) DetectEntries(t *domain.Translator, entries []domain.AllocationEntry, opts Options) []domain.Conflict {
	byDate := make(map[time.Time][]domain.AllocationEntry)
	var dates []time.Time
	for _, e := range entries {
		if e.TranslatorID != t.ID {
			continue
		}
		if _, ok := byDate[e.Date]; !ok {
			dates = append(dates, e.Date)
		}
		byDate[e.Date] = append(byDate[e.Date], e)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	triggers := make(map[int64]bool, len(opts.TriggerIDs))
	for _, id := range opts.TriggerIDs {
		triggers[id] = true
	}

	out := []domain.Conflict{}
	for _, date := range dates {
		day := byDate[date]
		ledger.SortEntries(day)
		win := d.cal.WorkingWindow(t, date)

		if c, ok := capacityRule(t, win, day, triggers); ok {
			out = append(out, c)
		}
		out = append(out, overlapRules(t, win, day)...)
		out = append(out, outsideRule(t, win, day)...)
	}

	sortConflicts(out)
	return out
}

func capacityRule(t *domain.Translator, win calendar.Window, day []domain.AllocationEntry, triggers map[int64]bool) (domain.Conflict, bool) {
	var allocated, triggered int64
	for _, e := range day {
		allocated += ledger.Centi(e.Hours)
		if triggers[e.ID] {
			triggered += ledger.Centi(e.Hours)
		}
	}
	capacity := ledger.Centi(t.DailyCapacity)
	if allocated <= capacity {
		return domain.Conflict{}, false
	}

	typ := domain.ConflictCapacityExceeded
	if triggered > 0 && allocated-triggered <= capacity {
		typ = domain.ConflictOverAllocation
	}

	excess := float64(allocated-capacity) / 100
	c := domain.Conflict{
		Type:           typ,
		TranslatorID:   t.ID,
		Date:           win.Date,
		HoursInvolved:  excess,
		HoursAllocated: float64(allocated) / 100,
		Capacity:       t.DailyCapacity,
		EntryIDs:       entryIDs(day),
		TaskIDs:        taskIDs(day),
	}
	if typ == domain.ConflictOverAllocation {
		c.Explanation = fmt.Sprintf("%s: the latest change brings %s to %.2fh for a %.2fh capacity (%.2fh over)",
			dayLabel(win), t.ID, c.HoursAllocated, t.DailyCapacity, excess)
	} else {
		c.Explanation = fmt.Sprintf("%s: %s has %.2fh allocated for a %.2fh capacity (%.2fh over)",
			dayLabel(win), t.ID, c.HoursAllocated, t.DailyCapacity, excess)
	}
	return withID(c), true
}

// overlapRules finds TASK/TASK and TASK/BLOCK intersections of ranged rows
func overlapRules(t *domain.Translator, win calendar.Window, day []domain.AllocationEntry) []domain.Conflict {
	var out []domain.Conflict
	for i := range day {
		a := &day[i]
		ra, ok := a.Range()
		if !ok {
			continue
		}
		for j := i + 1; j < len(day); j++ {
			b := &day[j]
			rb, ok := b.Range()
			if !ok || !ra.Intersects(rb) {
				continue
			}
			if a.Type == domain.EntryBlock && b.Type == domain.EntryBlock {
				continue
			}

			shared := domain.TimeRange{Start: max(ra.Start, rb.Start), End: min(ra.End, rb.End)}
			c := domain.Conflict{
				TranslatorID:   t.ID,
				Date:           win.Date,
				TimeRange:      &shared,
				HoursInvolved:  minutesToHours(sharedMinutes(win, shared)),
				HoursAllocated: domain.RoundHours(a.Hours + b.Hours),
				Capacity:       t.DailyCapacity,
				EntryIDs:       entryIDs([]domain.AllocationEntry{*a, *b}),
				TaskIDs:        taskIDs([]domain.AllocationEntry{*a, *b}),
			}
			if a.Type == domain.EntryTask && b.Type == domain.EntryTask {
				c.Type = domain.ConflictTaskOverlap
				c.Explanation = fmt.Sprintf("%s: tasks %d (%s) and %d (%s) overlap over %s",
					dayLabel(win), a.TaskID, ra, b.TaskID, rb, shared)
			} else {
				task, block := a, b
				if a.Type == domain.EntryBlock {
					task, block = b, a
				}
				c.Type = domain.ConflictBlock
				c.Explanation = fmt.Sprintf("%s: task %d (%s) runs into blocked time %q (%s)",
					dayLabel(win), task.TaskID, rangeOf(task), blockReason(block), rangeOf(block))
			}
			out = append(out, withID(c))
		}
	}
	return out
}

// outsideRule flags rows on non-business days, outside the window or with a lunch endpoint
func outsideRule(t *domain.Translator, win calendar.Window, day []domain.AllocationEntry) []domain.Conflict {
	var out []domain.Conflict
	for _, e := range day {
		c := domain.Conflict{
			Type:           domain.ConflictOutsideWorkingHours,
			TranslatorID:   t.ID,
			Date:           win.Date,
			HoursAllocated: e.Hours,
			Capacity:       t.DailyCapacity,
			EntryIDs:       []int64{e.ID},
			TaskIDs:        taskIDs([]domain.AllocationEntry{e}),
		}
		r, ranged := e.Range()
		if ranged {
			c.TimeRange = &r
		}

		switch {
		case !win.Business:
			c.HoursInvolved = e.Hours
			c.Explanation = fmt.Sprintf("%s is not a business day; %s has %.2fh of %s",
				dayLabel(win), t.ID, e.Hours, describe(e))
		case ranged && !win.Contains(r):
			outside := r.Minutes() - r.Overlap(win.Range())
			c.HoursInvolved = minutesToHours(outside)
			c.Explanation = fmt.Sprintf("%s: %s (%s) lies outside working hours %s",
				dayLabel(win), describe(e), r, win.Range())
		case ranged && win.EndpointInLunch(r):
			c.HoursInvolved = minutesToHours(r.Overlap(win.Lunch))
			c.Explanation = fmt.Sprintf("%s: %s (%s) starts or ends during lunch %s",
				dayLabel(win), describe(e), r, win.Lunch)
		default:
			continue
		}
		out = append(out, withID(c))
	}
	return out
}

func sharedMinutes(win calendar.Window, r domain.TimeRange) int {
	m := r.Minutes() - r.Overlap(win.Lunch)
	if m < 0 {
		return 0
	}
	return m
}

func minutesToHours(m int) float64 {
	return domain.RoundHours(float64(m) / 60)
}

func entryIDs(entries []domain.AllocationEntry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func taskIDs(entries []domain.AllocationEntry) []int64 {
	seen := make(map[int64]bool)
	ids := []int64{}
	for _, e := range entries {
		if e.Type != domain.EntryTask || seen[e.TaskID] {
			continue
		}
		seen[e.TaskID] = true
		ids = append(ids, e.TaskID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func describe(e domain.AllocationEntry) string {
	if e.Type == domain.EntryBlock {
		return fmt.Sprintf("block %q", blockReason(&e))
	}
	return fmt.Sprintf("task %d", e.TaskID)
}

func blockReason(e *domain.AllocationEntry) string {
	if e.Reason == "" {
		return "blocked"
	}
	return e.Reason
}

func rangeOf(e *domain.AllocationEntry) string {
	if r, ok := e.Range(); ok {
		return r.String()
	}
	return "no time range"
}

func dayLabel(win calendar.Window) string {
	return win.Date.Format(time.DateOnly)
}

// ConflictID returns the stable ID of a conflict
func ConflictID(c domain.Conflict) string {
	ids := make([]string, 0, len(c.EntryIDs))
	for _, id := range c.EntryIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	key := strings.Join([]string{
		string(c.Type), c.TranslatorID, c.Date.Format(time.DateOnly), strings.Join(ids, ","),
	}, "|")
	return uuid.NewSHA1(namespace, []byte(key)).String()
}

func withID(c domain.Conflict) domain.Conflict {
	c.ID = ConflictID(c)
	return c
}

func sortConflicts(cs []domain.Conflict) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.TranslatorID != b.TranslatorID {
			return a.TranslatorID < b.TranslatorID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID < b.ID
	})
}

// Involving returns the conflicts that touch entry id
func Involving(cs []domain.Conflict, id int64) []domain.Conflict {
	out := []domain.Conflict{}
	for _, c := range cs {
		for _, eid := range c.EntryIDs {
			if eid == id {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// CountByType tallies conflicts per type
func CountByType(cs []domain.Conflict) map[domain.ConflictType]int {
	counts := make(map[domain.ConflictType]int)
	for _, c := range cs {
		counts[c.Type]++
	}
	return counts
}
