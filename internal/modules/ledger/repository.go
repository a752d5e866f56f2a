// Package ledger provides the capacity ledger: per-translator, per-day
// allocation rows for tasks and blocks, guarded by per-translator locks.
package ledger

import (
	"context"
	"time"

	"github.com/aristath/tradplan/internal/domain"
)

// Repository stores ledger rows. Implementations do no capacity checks and
// no locking of their own beyond what is needed for memory safety.
type Repository interface {
	// Insert stores e and returns its ID. A non-zero e.ID is kept (used to restore rows).
	Insert(ctx context.Context, e *domain.AllocationEntry) (int64, error)
	Get(ctx context.Context, id int64) (*domain.AllocationEntry, error)
	Delete(ctx context.Context, id int64) error
	Update(ctx context.Context, e *domain.AllocationEntry) error
	// ListByTranslator returns rows with date in [from, to], ordered by date, start time, ID
	ListByTranslator(ctx context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error)
	ListByTask(ctx context.Context, taskID int64) ([]domain.AllocationEntry, error)
}

// View is read access to ledger rows. The Ledger, a Writer inside a unit,
// and an Overlay all satisfy it.
type View interface {
	EntriesFor(ctx context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error)
}

// Roster resolves translators for capacity lookups
type Roster interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
}

// DayTotals is the TASK/BLOCK breakdown of one translator-day
type DayTotals struct {
	Date       time.Time `json:"date"`
	Capacity   float64   `json:"capacity"`
	TaskHours  float64   `json:"task_hours"`
	BlockHours float64   `json:"block_hours"`
	Available  float64   `json:"available_hours"`
}

// Allocated is the sum of TASK and BLOCK hours
func (d DayTotals) Allocated() float64 {
	return domain.RoundHours(d.TaskHours + d.BlockHours)
}

// Totals sums the rows of one date against capacity.
// Hours are summed in hundredths so repeated additions stay exact.
func Totals(entries []domain.AllocationEntry, date time.Time, capacity float64) DayTotals {
	var task, block int64
	for _, e := range entries {
		if !e.Date.Equal(date) {
			continue
		}
		switch e.Type {
		case domain.EntryTask:
			task += Centi(e.Hours)
		case domain.EntryBlock:
			block += Centi(e.Hours)
		}
	}
	return DayTotals{
		Date:       date,
		Capacity:   capacity,
		TaskHours:  float64(task) / 100,
		BlockHours: float64(block) / 100,
		Available:  float64(Centi(capacity)-task-block) / 100,
	}
}

// Centi converts hours to integer hundredths of an hour
func Centi(hours float64) int64 {
	if hours >= 0 {
		return int64(hours*100 + 0.5)
	}
	return -int64(-hours*100 + 0.5)
}

// Minutes converts hours to whole minutes, rounding half up
func Minutes(hours float64) int {
	return int((Centi(hours)*60 + 50) / 100)
}
