package testing

import (
	"time"

	"github.com/aristath/tradplan/internal/domain"
)

// Date returns the civil date y-m-d as UTC midnight, the ledger's date key
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At returns a wall-clock instant in UTC
// DatePtr is Date for optional fields
func DatePtr(y int, m time.Month, d int) *time.Time {
	t := Date(y, m, d)
	return &t
}

func At(y int, m time.Month, d, hour, minute int) time.Time {
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

// FixedClock returns a clock that always reads now
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

// NewTranslator returns an active EN>FR translator working 9:00-17:00 at 7h/day
func NewTranslator(id string) *domain.Translator {
	return &domain.Translator{
		ID:            id,
		Name:          "Translator " + id,
		Divisions:     []string{"TR"},
		DailyCapacity: 7,
		WorkStart:     domain.NewTimeOfDay(9, 0),
		WorkEnd:       domain.NewTimeOfDay(17, 0),
		LanguagePairs: []string{"EN>FR"},
		Domains:       []string{"Legal"},
		Active:        true,
	}
}

// NewRosterFixtures returns a small mixed roster
func NewRosterFixtures() []*domain.Translator {
	alice := NewTranslator("alice")
	alice.Name = "Alice Tremblay"

	bruno := NewTranslator("bruno")
	bruno.Name = "Bruno Gagnon"
	bruno.SeekingWork = true

	chloe := NewTranslator("chloe")
	chloe.Name = "Chloé Roy"
	chloe.LanguagePairs = []string{"ES>FR"}

	denis := NewTranslator("denis")
	denis.Name = "Denis Côté"
	denis.Active = false

	return []*domain.Translator{alice, bruno, chloe, denis}
}

// TaskEntry builds a TASK ledger row with an explicit time range
func TaskEntry(translatorID string, taskID int64, date time.Time, hours float64, start, end string) *domain.AllocationEntry {
	e := &domain.AllocationEntry{
		Date:         date,
		TranslatorID: translatorID,
		Hours:        hours,
		Type:         domain.EntryTask,
		TaskID:       taskID,
	}
	setRange(e, start, end)
	return e
}

// BlockEntry builds a BLOCK ledger row with an explicit time range
func BlockEntry(translatorID string, date time.Time, hours float64, start, end, reason string) *domain.AllocationEntry {
	e := &domain.AllocationEntry{
		Date:         date,
		TranslatorID: translatorID,
		Hours:        hours,
		Type:         domain.EntryBlock,
		Reason:       reason,
	}
	setRange(e, start, end)
	return e
}

func setRange(e *domain.AllocationEntry, start, end string) {
	if start == "" || end == "" {
		return
	}
	e.StartTime = domain.MustParseTimeOfDay(start).Ptr()
	e.EndTime = domain.MustParseTimeOfDay(end).Ptr()
}
