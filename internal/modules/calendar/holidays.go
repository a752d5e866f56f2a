package calendar

import (
	"fmt"
	"sort"
	"time"
)

// CalculateEaster returns Gregorian Easter Sunday for year (computus)
func CalculateEaster(year int) time.Time {
	// Golden Number (position in 19-year Metonic cycle)
	a := year % 19

	b := year / 100
	c := year % 100

	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// findNthWeekday finds the nth occurrence of a weekday in a given month/year
// n: 1 = first, 2 = second, etc.
func findNthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	date := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	daysToAdd := int(weekday - date.Weekday())
	if daysToAdd < 0 {
		daysToAdd += 7
	}
	return date.AddDate(0, 0, daysToAdd+(n-1)*7)
}

// lastWeekdayBefore finds the last given weekday strictly before month/day
func lastWeekdayBefore(year int, month time.Month, day int, weekday time.Weekday) time.Time {
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for date.Weekday() != weekday {
		date = date.AddDate(0, 0, -1)
	}
	return date
}

// QuebecHolidays is the default rule set: Québec statutory holidays plus the
// federal public-service days observed by the Translation Bureau.
// Fixed-date holidays falling on a weekend are observed on the next free weekday.
func QuebecHolidays(year int) []Holiday {
	easter := CalculateEaster(year)

	movable := []Holiday{
		{Date: easter.AddDate(0, 0, -2), Name: "Vendredi saint"},
		{Date: easter.AddDate(0, 0, 1), Name: "Lundi de Pâques"},
		{Date: lastWeekdayBefore(year, time.May, 25, time.Monday), Name: "Journée nationale des patriotes"},
		{Date: findNthWeekday(year, time.September, time.Monday, 1), Name: "Fête du Travail"},
		{Date: findNthWeekday(year, time.October, time.Monday, 2), Name: "Action de grâce"},
	}

	fixed := []Holiday{
		{Date: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), Name: "Jour de l'An"},
		{Date: time.Date(year, time.June, 24, 0, 0, 0, 0, time.UTC), Name: "Fête nationale du Québec"},
		{Date: time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC), Name: "Fête du Canada"},
		{Date: time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC), Name: "Noël"},
		{Date: time.Date(year, time.December, 26, 0, 0, 0, 0, time.UTC), Name: "Lendemain de Noël"},
	}

	taken := make(map[time.Time]bool, len(movable)+len(fixed))
	out := make([]Holiday, 0, len(movable)+len(fixed))
	for _, h := range movable {
		taken[h.Date] = true
		out = append(out, h)
	}
	// Weekday fixed dates claim their day first so observed days never collide
	for _, h := range fixed {
		if isWeekend(h.Date) {
			continue
		}
		taken[h.Date] = true
		out = append(out, h)
	}
	for _, h := range fixed {
		if !isWeekend(h.Date) {
			continue
		}
		observed := h.Date
		for isWeekend(observed) || taken[observed] {
			observed = observed.AddDate(0, 0, 1)
		}
		taken[observed] = true
		out = append(out, Holiday{Date: observed, Name: h.Name + " (observé)"})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func isWeekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}

// RuleSetByName resolves a configured holiday_set
func RuleSetByName(name string) (RuleSet, error) {
	switch name {
	case "quebec":
		return QuebecHolidays, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown holiday set %q", name)
	}
}

// ParseHolidayDates turns YYYY-MM-DD strings into holidays
func ParseHolidayDates(dates []string) ([]Holiday, error) {
	out := make([]Holiday, 0, len(dates))
	for _, s := range dates {
		d, err := ParseDay(s)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", s, err)
		}
		out = append(out, Holiday{Date: d, Name: "Congé"})
	}
	return out, nil
}
