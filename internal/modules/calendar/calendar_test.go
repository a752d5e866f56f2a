package calendar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	testingpkg "github.com/aristath/tradplan/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tod(s string) domain.TimeOfDay {
	return domain.MustParseTimeOfDay(s)
}

func TestIsBusinessDay(t *testing.T) {
	cal := New(Options{
		Holidays: []Holiday{{Date: date(2026, 3, 2), Name: "Snow day"}},
		Rules:    QuebecHolidays,
	})

	tests := []struct {
		name     string
		date     time.Time
		expected bool
	}{
		{"weekday", date(2026, 1, 14), true},
		{"saturday", date(2026, 1, 10), false},
		{"sunday", date(2026, 1, 11), false},
		{"explicit holiday", date(2026, 3, 2), false},
		{"good friday", date(2026, 4, 3), false},
		{"easter monday", date(2026, 4, 6), false},
		{"fete nationale", date(2026, 6, 24), false},
		{"boxing day observed", date(2026, 12, 28), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cal.IsBusinessDay(tt.date))
		})
	}
}

func TestNextAndPreviousBusinessDay(t *testing.T) {
	cal := New(Options{Rules: QuebecHolidays})

	// Friday -> Monday
	assert.Equal(t, date(2026, 1, 12), cal.NextBusinessDay(date(2026, 1, 9)))
	// Thursday before Good Friday -> Tuesday after Easter Monday
	assert.Equal(t, date(2026, 4, 7), cal.NextBusinessDay(date(2026, 4, 2)))
	// Monday -> previous Friday
	assert.Equal(t, date(2026, 1, 9), cal.PreviousBusinessDay(date(2026, 1, 12)))
	// Strictly after, even on a business day
	assert.Equal(t, date(2026, 1, 15), cal.NextBusinessDay(date(2026, 1, 14)))
}

func TestDaysBetween(t *testing.T) {
	cal := New(Options{})

	assert.Equal(t, 1, cal.DaysBetween(date(2026, 1, 14), date(2026, 1, 14)))
	assert.Equal(t, 7, cal.DaysBetween(date(2026, 1, 12), date(2026, 1, 18)))
	assert.Equal(t, 0, cal.DaysBetween(date(2026, 1, 18), date(2026, 1, 12)))
	assert.Equal(t, 5, cal.BusinessDaysBetween(date(2026, 1, 12), date(2026, 1, 18)))
	assert.Equal(t, 6, cal.BusinessDaysBetween(date(2026, 1, 9), date(2026, 1, 16)))
}

func TestCalculateEaster(t *testing.T) {
	known := map[int]time.Time{
		2024: date(2024, 3, 31),
		2025: date(2025, 4, 20),
		2026: date(2026, 4, 5),
		2027: date(2027, 3, 28),
	}
	for year, want := range known {
		assert.Equal(t, want, CalculateEaster(year), "Easter %d", year)
	}
}

func TestQuebecHolidays_2026(t *testing.T) {
	got := make(map[time.Time]string)
	for _, h := range QuebecHolidays(2026) {
		got[h.Date] = h.Name
	}

	for _, want := range []time.Time{
		date(2026, 1, 1),
		date(2026, 4, 3),
		date(2026, 4, 6),
		date(2026, 5, 18),
		date(2026, 6, 24),
		date(2026, 7, 1),
		date(2026, 9, 7),
		date(2026, 10, 12),
		date(2026, 12, 25),
		date(2026, 12, 28),
	} {
		assert.Contains(t, got, want, want.Format(time.DateOnly))
	}
	for d := range got {
		assert.False(t, isWeekend(d), "holiday %s falls on a weekend", d.Format(time.DateOnly))
	}
}

func TestQuebecHolidays_ChristmasOnWeekendDoesNotCollide(t *testing.T) {
	// 2027: Dec 25 Saturday, Dec 26 Sunday
	hs := QuebecHolidays(2027)
	seen := make(map[time.Time]bool)
	for _, h := range hs {
		assert.False(t, seen[h.Date], "duplicate observed date %s", h.Date.Format(time.DateOnly))
		seen[h.Date] = true
	}
	assert.True(t, seen[date(2027, 12, 27)])
	assert.True(t, seen[date(2027, 12, 28)])
}

func TestWorkingWindow_Usable(t *testing.T) {
	cal := New(Options{})
	tr := testingpkg.NewTranslator("alice")

	w := cal.WorkingWindow(tr, date(2026, 1, 14))
	assert.True(t, w.Business)
	assert.Equal(t, 420, w.UsableMinutes())
	assert.Equal(t, 7.0, w.UsableHours())

	assert.Equal(t, 180, w.Usable(domain.TimeRange{Start: tod("14:00"), End: tod("17:00")}))
	assert.Equal(t, 240, w.Usable(domain.TimeRange{Start: tod("10:00"), End: tod("15:00")}))
	assert.Equal(t, 60, w.Usable(domain.TimeRange{Start: tod("07:00"), End: tod("10:00")}))

	// Window that does not span noon keeps its full length
	tr.WorkStart, tr.WorkEnd = tod("13:00"), tod("21:00")
	assert.Equal(t, 480, cal.WorkingWindow(tr, date(2026, 1, 14)).UsableMinutes())
}

func TestWindow_AdvanceAndRetreat(t *testing.T) {
	w := Window{Start: tod("09:00"), End: tod("17:00"), Lunch: DefaultLunch}

	tests := []struct {
		name  string
		got   domain.TimeOfDay
		wants string
	}{
		{"4h from 10:00 bridges lunch", w.Advance(tod("10:00"), 240), "15:00"},
		{"3h from 09:00 stops at lunch", w.Advance(tod("09:00"), 180), "12:00"},
		{"from inside lunch starts after", w.Advance(tod("12:15"), 60), "14:00"},
		{"3h back from 17:00", w.Retreat(tod("17:00"), 180), "14:00"},
		{"7h back from 17:00", w.Retreat(tod("17:00"), 420), "09:00"},
		{"4h back from 17:00 stops at lunch end", w.Retreat(tod("17:00"), 240), "13:00"},
		{"back from inside lunch", w.Retreat(tod("12:30"), 60), "11:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wants, tt.got.String())
		})
	}
}

func TestWindow_EndpointInLunch(t *testing.T) {
	w := Window{Start: tod("09:00"), End: tod("17:00"), Lunch: DefaultLunch}

	assert.False(t, w.EndpointInLunch(domain.TimeRange{Start: tod("10:00"), End: tod("15:00")}))
	assert.False(t, w.EndpointInLunch(domain.TimeRange{Start: tod("09:00"), End: tod("12:00")}))
	assert.False(t, w.EndpointInLunch(domain.TimeRange{Start: tod("13:00"), End: tod("17:00")}))
	assert.True(t, w.EndpointInLunch(domain.TimeRange{Start: tod("12:00"), End: tod("14:00")}))
	assert.True(t, w.EndpointInLunch(domain.TimeRange{Start: tod("10:00"), End: tod("12:30")}))
	assert.True(t, w.EndpointInLunch(domain.TimeRange{Start: tod("10:00"), End: tod("13:00")}))
}

func TestClockAndInstant(t *testing.T) {
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	cal := New(Options{Location: loc})

	due := time.Date(2026, 1, 15, 22, 0, 0, 0, time.UTC) // 17:00 EST
	day, at := cal.Clock(due)
	assert.Equal(t, date(2026, 1, 15), day)
	assert.Equal(t, "17:00", at.String())
	assert.True(t, cal.Instant(day, at).Equal(due))
	assert.Equal(t, date(2026, 1, 15), cal.Today(due))
}

func TestHolidaysListing(t *testing.T) {
	cal := New(Options{Rules: QuebecHolidays, Holidays: []Holiday{{Date: date(2026, 6, 1), Name: "Fermeture"}}})

	hs := cal.Holidays(date(2026, 6, 1), date(2026, 7, 31))
	require.Len(t, hs, 3)
	assert.Equal(t, "Fermeture", hs[0].Name)
	assert.Equal(t, date(2026, 6, 24), hs[1].Date)
	assert.Equal(t, date(2026, 7, 1), hs[2].Date)

	cal.RemoveHoliday(date(2026, 6, 1))
	assert.True(t, cal.IsBusinessDay(date(2026, 6, 1)))
}

func TestParseICS(t *testing.T) {
	data := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//tradplan//test//FR",
		"BEGIN:VEVENT",
		"UID:closure-1",
		"DTSTAMP:20260101T000000Z",
		"SUMMARY:Fermeture des fêtes",
		"DTSTART;VALUE=DATE:20261229",
		"DTEND;VALUE=DATE:20261231",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:meeting-1",
		"DTSTAMP:20260101T000000Z",
		"SUMMARY:Réunion",
		"DTSTART:20261215T140000Z",
		"DTEND:20261215T150000Z",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	hs, err := ParseICS(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, date(2026, 12, 29), hs[0].Date)
	assert.Equal(t, date(2026, 12, 30), hs[1].Date)
	assert.Equal(t, "Fermeture des fêtes", hs[0].Name)
}

func TestRuleSetByName(t *testing.T) {
	rs, err := RuleSetByName("quebec")
	require.NoError(t, err)
	assert.NotNil(t, rs)

	rs, err = RuleSetByName("none")
	require.NoError(t, err)
	assert.Nil(t, rs)

	_, err = RuleSetByName("atlantis")
	assert.Error(t, err)
}

func TestRepository(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "planner")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, Holiday{Date: date(2026, 8, 3), Name: "Congé civique"}))
	require.NoError(t, repo.Upsert(ctx, Holiday{Date: date(2026, 8, 3), Name: "Civic holiday"}))
	require.NoError(t, repo.Upsert(ctx, Holiday{Date: date(2026, 2, 16), Name: "Family day"}))

	hs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, date(2026, 2, 16), hs[0].Date)
	assert.Equal(t, "Civic holiday", hs[1].Name)

	require.NoError(t, repo.Delete(ctx, date(2026, 2, 16)))
	hs, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, hs, 1)
}
