// Package calendar provides the business-day calendar: weekend and holiday
// exclusion plus per-translator working windows with a lunch carve-out.
//
// Dates are civil dates represented as time.Time at UTC midnight (see Day).
// Wall-clock instants are interpreted in the calendar's location.
package calendar

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/tradplan/internal/domain"
)

// Holiday is a non-working day
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// RuleSet computes the rule-based holidays of a year
type RuleSet func(year int) []Holiday

// Options configures a Calendar
type Options struct {
	Location *time.Location
	Lunch    domain.TimeRange
	Holidays []Holiday
	Rules    RuleSet
}

// Calendar answers business-day and working-window questions.
// It is safe for concurrent use.
type Calendar struct {
	loc   *time.Location
	lunch domain.TimeRange
	rules RuleSet

	mu        sync.RWMutex
	explicit  map[time.Time]string
	ruleYears map[int]map[time.Time]string
}

// New creates a calendar. A zero Lunch defaults to 12:00-13:00.
func New(opts Options) *Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	lunch := opts.Lunch
	if lunch == (domain.TimeRange{}) {
		lunch = DefaultLunch
	}

	c := &Calendar{
		loc:       loc,
		lunch:     lunch,
		rules:     opts.Rules,
		explicit:  make(map[time.Time]string),
		ruleYears: make(map[int]map[time.Time]string),
	}
	c.AddHolidays(opts.Holidays...)
	return c
}

// DefaultLunch is the midday non-working hour
var DefaultLunch = domain.TimeRange{Start: domain.NewTimeOfDay(12, 0), End: domain.NewTimeOfDay(13, 0)}

// Day truncates t to its civil date, keeping the wall-clock fields of t's location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses YYYY-MM-DD into a civil date
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

// Location returns the calendar's timezone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Lunch returns the lunch carve-out
func (c *Calendar) Lunch() domain.TimeRange {
	return c.lunch
}

// Today returns the civil date of now in the calendar's location
func (c *Calendar) Today(now time.Time) time.Time {
	return Day(now.In(c.loc))
}

// Clock splits an instant into its civil date and time of day in the calendar's location
func (c *Calendar) Clock(t time.Time) (time.Time, domain.TimeOfDay) {
	local := t.In(c.loc)
	return Day(local), domain.NewTimeOfDay(local.Hour(), local.Minute())
}

// Instant joins a civil date and a time of day into an instant in the calendar's location
func (c *Calendar) Instant(date time.Time, tod domain.TimeOfDay) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, c.loc)
}

// AddHolidays registers explicit holidays (configuration, database or ICS)
func (c *Calendar) AddHolidays(holidays ...Holiday) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range holidays {
		c.explicit[Day(h.Date)] = h.Name
	}
}

// RemoveHoliday drops an explicit holiday. Rule-based holidays stay.
func (c *Calendar) RemoveHoliday(date time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.explicit, Day(date))
}

// HolidayName returns the holiday on date, if any
func (c *Calendar) HolidayName(date time.Time) (string, bool) {
	date = Day(date)

	c.mu.RLock()
	name, ok := c.explicit[date]
	if ok {
		c.mu.RUnlock()
		return name, true
	}
	year, cached := c.ruleYears[date.Year()]
	c.mu.RUnlock()

	if c.rules == nil {
		return "", false
	}
	if !cached {
		year = c.loadRuleYear(date.Year())
	}
	name, ok = year[date]
	return name, ok
}

func (c *Calendar) loadRuleYear(y int) map[time.Time]string {
	computed := make(map[time.Time]string)
	for _, h := range c.rules(y) {
		computed[Day(h.Date)] = h.Name
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.ruleYears[y]; ok {
		return existing
	}
	c.ruleYears[y] = computed
	return computed
}

// IsHoliday reports whether date is a holiday
func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.HolidayName(date)
	return ok
}

// IsBusinessDay is false on Saturday, Sunday and holidays
func (c *Calendar) IsBusinessDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(date)
}

// NextBusinessDay returns the smallest business day strictly after date
func (c *Calendar) NextBusinessDay(date time.Time) time.Time {
	d := Day(date).AddDate(0, 0, 1)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PreviousBusinessDay returns the largest business day strictly before date
func (c *Calendar) PreviousBusinessDay(date time.Time) time.Time {
	d := Day(date).AddDate(0, 0, -1)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// DaysBetween counts calendar days in [start, end], 0 when end precedes start
func DaysBetween(start, end time.Time) int {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// DaysBetween counts calendar days in [start, end]
func (c *Calendar) DaysBetween(start, end time.Time) int {
	return DaysBetween(start, end)
}

// BusinessDaysBetween counts business days in [start, end]
func (c *Calendar) BusinessDaysBetween(start, end time.Time) int {
	return len(c.BusinessDays(start, end))
}

// BusinessDays lists the business days in [start, end] in ascending order
func (c *Calendar) BusinessDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d, e := Day(start), Day(end); !d.After(e); d = d.AddDate(0, 0, 1) {
		if c.IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// Holidays lists every holiday (explicit and rule-based) in [from, to]
func (c *Calendar) Holidays(from, to time.Time) []Holiday {
	var out []Holiday
	for d, e := Day(from), Day(to); !d.After(e); d = d.AddDate(0, 0, 1) {
		if name, ok := c.HolidayName(d); ok {
			out = append(out, Holiday{Date: d, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// WorkingWindow returns the translator's window on date
func (c *Calendar) WorkingWindow(t *domain.Translator, date time.Time) Window {
	return Window{
		Date:     Day(date),
		Start:    t.WorkStart,
		End:      t.WorkEnd,
		Lunch:    c.lunch,
		Business: c.IsBusinessDay(date),
	}
}
