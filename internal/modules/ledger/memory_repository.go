package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aristath/tradplan/internal/domain"
)

// MemoryRepository is an in-memory Repository for tests and previews
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[int64]domain.AllocationEntry
	nextID  int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[int64]domain.AllocationEntry),
	}
}

// Insert stores e, assigning the next ID when e.ID is zero
func (r *MemoryRepository) Insert(_ context.Context, e *domain.AllocationEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := cloneEntry(*e)
	if row.ID == 0 {
		r.nextID++
		row.ID = r.nextID
	} else if row.ID > r.nextID {
		r.nextID = row.ID
	}
	r.entries[row.ID] = row
	return row.ID, nil
}

// Get returns one row
func (r *MemoryRepository) Get(_ context.Context, id int64) (*domain.AllocationEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, domain.NotFound("allocation %d not found", id)
	}
	row := cloneEntry(e)
	return &row, nil
}

// Delete removes one row
func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return domain.NotFound("allocation %d not found", id)
	}
	delete(r.entries, id)
	return nil
}

// Update replaces a row in place
func (r *MemoryRepository) Update(_ context.Context, e *domain.AllocationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.ID]; !ok {
		return domain.NotFound("allocation %d not found", e.ID)
	}
	r.entries[e.ID] = cloneEntry(*e)
	return nil
}

// ListByTranslator returns the translator's rows in [from, to]
func (r *MemoryRepository) ListByTranslator(_ context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AllocationEntry
	for _, e := range r.entries {
		if e.TranslatorID != translatorID || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	SortEntries(out)
	return out, nil
}

// ListByTask returns every row owned by the task
func (r *MemoryRepository) ListByTask(_ context.Context, taskID int64) ([]domain.AllocationEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AllocationEntry
	for _, e := range r.entries {
		if e.Type == domain.EntryTask && e.TaskID == taskID {
			out = append(out, cloneEntry(e))
		}
	}
	SortEntries(out)
	return out, nil
}

// SortEntries orders rows by date, start time (unranged first), then ID
func SortEntries(entries []domain.AllocationEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		as, bs := startKey(a), startKey(b)
		if as != bs {
			return as < bs
		}
		return a.ID < b.ID
	})
}

func startKey(e domain.AllocationEntry) int {
	if e.StartTime == nil {
		return -1
	}
	return int(*e.StartTime)
}

func cloneEntry(e domain.AllocationEntry) domain.AllocationEntry {
	if e.StartTime != nil {
		e.StartTime = e.StartTime.Ptr()
	}
	if e.EndTime != nil {
		e.EndTime = e.EndTime.Ptr()
	}
	return e
}
