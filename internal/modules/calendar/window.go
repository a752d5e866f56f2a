package calendar

import (
	"time"

	"github.com/aristath/tradplan/internal/domain"
)

// Window is a translator's working window on one date
type Window struct {
	Date     time.Time        `json:"date"`
	Start    domain.TimeOfDay `json:"start"`
	End      domain.TimeOfDay `json:"end"`
	Lunch    domain.TimeRange `json:"lunch"`
	Business bool             `json:"business_day"`
}

// Range returns the window as a time range
func (w Window) Range() domain.TimeRange {
	return domain.TimeRange{Start: w.Start, End: w.End}
}

// UsableMinutes is the window length minus its overlap with lunch
func (w Window) UsableMinutes() int {
	return w.Usable(w.Range())
}

// UsableHours is UsableMinutes in hours
func (w Window) UsableHours() float64 {
	return float64(w.UsableMinutes()) / 60
}

// Usable returns the working minutes of r: clipped to the window, lunch excluded
func (w Window) Usable(r domain.TimeRange) int {
	in := w.Range().Overlap(r)
	if in == 0 {
		return 0
	}
	clipped := domain.TimeRange{Start: maxTime(r.Start, w.Start), End: minTime(r.End, w.End)}
	return in - clipped.Overlap(w.Lunch)
}

// Contains reports whether r lies inside the window
func (w Window) Contains(r domain.TimeRange) bool {
	return w.Range().Contains(r)
}

// EndpointInLunch reports whether r starts or ends inside the lunch hour.
// A range may bridge lunch (11:00-14:00) but not begin at 12:30 or end at 12:30.
func (w Window) EndpointInLunch(r domain.TimeRange) bool {
	l := w.Lunch
	if l.Minutes() == 0 {
		return false
	}
	startsInside := r.Start >= l.Start && r.Start < l.End
	endsInside := r.End > l.Start && r.End <= l.End
	return startsInside || endsInside
}

// Advance returns the end of a span of minutes of work starting at from,
// stepping over lunch when the span crosses it.
func (w Window) Advance(from domain.TimeOfDay, minutes int) domain.TimeOfDay {
	l := w.Lunch
	t := from
	if t >= l.Start && t < l.End {
		t = l.End
	}
	end := t + domain.TimeOfDay(minutes)
	if t < l.Start && end > l.Start {
		end += domain.TimeOfDay(l.Minutes())
	}
	return end
}

// Retreat returns the start of a span of minutes of work ending at to,
// stepping back over lunch when the span crosses it.
func (w Window) Retreat(to domain.TimeOfDay, minutes int) domain.TimeOfDay {
	l := w.Lunch
	t := to
	if t > l.Start && t <= l.End {
		t = l.Start
	}
	start := t - domain.TimeOfDay(minutes)
	if t >= l.End && start < l.End {
		start -= domain.TimeOfDay(l.Minutes())
	}
	return start
}

func maxTime(a, b domain.TimeOfDay) domain.TimeOfDay {
	if a > b {
		return a
	}
	return b
}

func minTime(a, b domain.TimeOfDay) domain.TimeOfDay {
	if a < b {
		return a
	}
	return b
}
