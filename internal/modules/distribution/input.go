package distribution

import (
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
)

// SlotInput is the wire form of a manual allocation
type SlotInput struct {
	Date      string            `json:"date"`
	Hours     float64           `json:"hours"`
	StartTime *domain.TimeOfDay `json:"start_time,omitempty"`
	EndTime   *domain.TimeOfDay `json:"end_time,omitempty"`
}

// ParseSlots converts wire allocations into slots
func ParseSlots(in []SlotInput) ([]domain.Slot, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]domain.Slot, 0, len(in))
	for i, s := range in {
		d, err := calendar.ParseDay(s.Date)
		if err != nil {
			return nil, domain.InvalidInput("allocation %d: %q is not a YYYY-MM-DD date", i, s.Date)
		}
		out = append(out, domain.Slot{Date: d, Hours: s.Hours, StartTime: s.StartTime, EndTime: s.EndTime})
	}
	return out, nil
}

// ParseDue reads a due instant. RFC 3339 is taken as is; a bare
// "YYYY-MM-DDTHH:MM" or a date alone is read in the calendar's timezone,
// a date alone meaning the end of that day's work (17:00).
func ParseDue(cal *calendar.Calendar, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, domain.InvalidInput("due date is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, cal.Location()); err == nil {
		return t, nil
	}
	if d, err := calendar.ParseDay(s); err == nil {
		return cal.Instant(d, domain.NewTimeOfDay(17, 0)), nil
	}
	return time.Time{}, domain.InvalidInput("due: %q is not an RFC 3339 timestamp or YYYY-MM-DD date", s)
}

// ParseOptionalDay parses a YYYY-MM-DD value, nil when empty
func ParseOptionalDay(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := calendar.ParseDay(s)
	if err != nil {
		return nil, domain.InvalidInput("%s: %q is not a YYYY-MM-DD date", name, s)
	}
	return &d, nil
}
