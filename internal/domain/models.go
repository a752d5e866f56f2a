// Package domain provides core domain models and types.
package domain

import (
	"math"
	"strings"
	"time"
)

// HoursTolerance is the accepted difference between a task's total hours and
// the sum of its allocated hours.
const HoursTolerance = 0.01

// Priority represents the urgency of a task
type Priority string

const (
	PriorityRegular Priority = "REGULAR"
	PriorityUrgent  Priority = "URGENT"
)

// DistributionMode is the closed set of policies used to spread task hours
// over calendar days.
type DistributionMode string

const (
	// ModeJustInTime fills backward from the due date (JAT)
	ModeJustInTime DistributionMode = "JUST_IN_TIME"
	// ModeFIFO fills forward from the start date (PEPS)
	ModeFIFO DistributionMode = "FIFO"
	// ModeBalanced spreads hours evenly over an explicit window (ÉQUILIBRÉ)
	ModeBalanced DistributionMode = "BALANCED"
	// ModeManual is caller-provided and only validated
	ModeManual DistributionMode = "MANUAL"
)

// Valid reports whether m is one of the known distribution modes
func (m DistributionMode) Valid() bool {
	switch m {
	case ModeJustInTime, ModeFIFO, ModeBalanced, ModeManual:
		return true
	}
	return false
}

// EntryType distinguishes task work from blocked time in the ledger
type EntryType string

const (
	EntryTask  EntryType = "TASK"
	EntryBlock EntryType = "BLOCK"
)

// Translator is reference data supplied by the roster collaborator.
// The core never mutates it.
type Translator struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Divisions     []string  `json:"divisions"`
	DailyCapacity float64   `json:"daily_capacity"`
	WorkStart     TimeOfDay `json:"work_start"`
	WorkEnd       TimeOfDay `json:"work_end"`
	LanguagePairs []string  `json:"language_pairs"`
	Domains       []string  `json:"domains"`
	Active        bool      `json:"active"`
	SeekingWork   bool      `json:"seeking_work"`
}

// Speaks reports whether the translator is qualified for the language pair.
// An empty pair matches everyone.
func (t *Translator) Speaks(pair string) bool {
	return pair == "" || containsFold(t.LanguagePairs, pair)
}

// Covers reports whether the translator works in the given domain.
// An empty domain matches everyone.
func (t *Translator) Covers(domain string) bool {
	return domain == "" || containsFold(t.Domains, domain)
}

// Task is a unit of translation/revision work
type Task struct {
	ID            int64            `json:"id"`
	ProjectNumber string           `json:"project_number"`
	TranslatorID  string           `json:"translator_id"`
	TotalHours    float64          `json:"total_hours"`
	Due           time.Time        `json:"due"`
	Priority      Priority         `json:"priority"`
	Mode          DistributionMode `json:"mode"`
	WindowStart   *time.Time       `json:"window_start,omitempty"`
	WindowEnd     *time.Time       `json:"window_end,omitempty"`
	LanguagePair  string           `json:"language_pair,omitempty"`
	Client        string           `json:"client,omitempty"`
	Domain        string           `json:"domain,omitempty"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// AllocationEntry is one ledger row binding hours to a translator and a day
type AllocationEntry struct {
	ID           int64      `json:"id"`
	Date         time.Time  `json:"date"`
	TranslatorID string     `json:"translator_id"`
	Hours        float64    `json:"hours"`
	Type         EntryType  `json:"type"`
	StartTime    *TimeOfDay `json:"start_time,omitempty"`
	EndTime      *TimeOfDay `json:"end_time,omitempty"`
	TaskID       int64      `json:"task_id,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Forced       bool       `json:"forced"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Range returns the entry's time range when both ends are set
func (e *AllocationEntry) Range() (TimeRange, bool) {
	if e.StartTime == nil || e.EndTime == nil {
		return TimeRange{}, false
	}
	return TimeRange{Start: *e.StartTime, End: *e.EndTime}, true
}

// Slot is a proposed (date, hours, range) triple produced by the
// distribution engine or supplied by a MANUAL caller.
type Slot struct {
	Date      time.Time  `json:"date"`
	Hours     float64    `json:"hours"`
	StartTime *TimeOfDay `json:"start_time,omitempty"`
	EndTime   *TimeOfDay `json:"end_time,omitempty"`
}

// Range returns the slot's time range when both ends are set
func (s *Slot) Range() (TimeRange, bool) {
	if s.StartTime == nil || s.EndTime == nil {
		return TimeRange{}, false
	}
	return TimeRange{Start: *s.StartTime, End: *s.EndTime}, true
}

// SumSlotHours returns the total hours across slots
func SumSlotHours(slots []Slot) float64 {
	total := 0.0
	for _, s := range slots {
		total += s.Hours
	}
	return RoundHours(total)
}

// RoundHours rounds to the hundredth of an hour
func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// HoursEqual compares two hour figures within HoursTolerance
func HoursEqual(a, b float64) bool {
	return math.Abs(a-b) <= HoursTolerance+1e-9
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
