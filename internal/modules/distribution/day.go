package distribution

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
)

// dayPlan is what one translator-day can still take
type dayPlan struct {
	window   calendar.Window
	segments []domain.TimeRange
	// segCaps holds each segment's capacity in hundredths of an hour
	segCaps []int64
	// capacity is min(available hours, sum(segCaps)) in hundredths
	capacity int64
}

// bounds clip a day's window: nothing before lo, nothing after hi
type bounds struct {
	lo *domain.TimeOfDay
	hi *domain.TimeOfDay
}

// planDay loads one date through view and computes its free time
func (e *Engine) planDay(ctx context.Context, view ledger.View, t *domain.Translator, date time.Time, b bounds) (dayPlan, error) {
	win := e.cal.WorkingWindow(t, date)
	plan := dayPlan{window: win}
	if !win.Business {
		return plan, nil
	}

	entries, err := view.EntriesFor(ctx, t.ID, win.Date, win.Date)
	if err != nil {
		return plan, fmt.Errorf("failed to load ledger for %s on %s: %w", t.ID, win.Date.Format(time.DateOnly), err)
	}

	plan.segments = FreeSegments(win, entries, b.lo, b.hi)
	var usable int64
	for _, seg := range plan.segments {
		c := int64(win.Usable(seg)) * 100 / 60
		plan.segCaps = append(plan.segCaps, c)
		usable += c
	}

	totals := ledger.Totals(entries, win.Date, t.DailyCapacity)
	available := ledger.Centi(totals.Available)
	plan.capacity = min(max(available, 0), usable)
	return plan, nil
}

// FreeSegments returns the parts of the window not covered by ranged rows,
// clipped to [lo, hi] when given. Segment endpoints are moved out of lunch so
// that any span placed inside a segment neither starts nor ends there.
func FreeSegments(win calendar.Window, entries []domain.AllocationEntry, lo, hi *domain.TimeOfDay) []domain.TimeRange {
	first := win.Range()
	if lo != nil && *lo > first.Start {
		first.Start = *lo
	}
	if hi != nil && *hi < first.End {
		first.End = *hi
	}
	if first.End <= first.Start {
		return nil
	}

	segs := []domain.TimeRange{first}
	for _, e := range entries {
		r, ok := e.Range()
		if !ok || !e.Date.Equal(win.Date) {
			continue
		}
		segs = subtract(segs, r)
	}

	out := make([]domain.TimeRange, 0, len(segs))
	for _, s := range segs {
		s = outOfLunch(s, win.Lunch)
		if s.End > s.Start && win.Usable(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func subtract(segs []domain.TimeRange, r domain.TimeRange) []domain.TimeRange {
	out := make([]domain.TimeRange, 0, len(segs)+1)
	for _, s := range segs {
		if !s.Intersects(r) {
			out = append(out, s)
			continue
		}
		if r.Start > s.Start {
			out = append(out, domain.TimeRange{Start: s.Start, End: r.Start})
		}
		if r.End < s.End {
			out = append(out, domain.TimeRange{Start: r.End, End: s.End})
		}
	}
	return out
}

func outOfLunch(s, lunch domain.TimeRange) domain.TimeRange {
	if lunch.Minutes() == 0 {
		return s
	}
	if s.Start >= lunch.Start && s.Start < lunch.End {
		s.Start = lunch.End
	}
	if s.End > lunch.Start && s.End <= lunch.End {
		s.End = lunch.Start
	}
	return s
}

// centiMinutes converts hundredths of an hour to whole minutes
func centiMinutes(c int64) int {
	return int((c*60 + 50) / 100)
}

// placeForward fills segments from the start of the day
func placeForward(p dayPlan, centi int64) []domain.Slot {
	var out []domain.Slot
	for i, seg := range p.segments {
		if centi == 0 {
			break
		}
		c := min(centi, p.segCaps[i])
		if c == 0 {
			continue
		}
		start := seg.Start
		end := p.window.Advance(start, centiMinutes(c))
		out = append(out, newSlot(p.window.Date, c, start, end))
		centi -= c
	}
	return out
}

// placeBackward fills segments from the end of the day
func placeBackward(p dayPlan, centi int64) []domain.Slot {
	var out []domain.Slot
	for i := len(p.segments) - 1; i >= 0 && centi > 0; i-- {
		c := min(centi, p.segCaps[i])
		if c == 0 {
			continue
		}
		end := p.segments[i].End
		start := p.window.Retreat(end, centiMinutes(c))
		out = append(out, newSlot(p.window.Date, c, start, end))
		centi -= c
	}
	return out
}

func newSlot(date time.Time, centi int64, start, end domain.TimeOfDay) domain.Slot {
	return domain.Slot{
		Date:      date,
		Hours:     float64(centi) / 100,
		StartTime: start.Ptr(),
		EndTime:   end.Ptr(),
	}
}

// dayBounds clips today to after now and the due day to before the due time
func dayBounds(d, today time.Time, now domain.TimeOfDay, dueDay time.Time, due domain.TimeOfDay) bounds {
	var b bounds
	if d.Equal(today) {
		b.lo = now.Ptr()
	}
	if d.Equal(dueDay) {
		b.hi = due.Ptr()
	}
	return b
}
