package ledger

import (
	"context"
	"time"

	"github.com/aristath/tradplan/internal/domain"
)

// Overlay is a read-only what-if view over another View: some rows are hidden,
// simulated rows are added. The base is never written.
type Overlay struct {
	base   View
	hidden map[int64]bool
	added  []domain.AllocationEntry
	nextID int64
}

// NewOverlay creates an overlay over base
func NewOverlay(base View) *Overlay {
	return &Overlay{
		base:   base,
		hidden: make(map[int64]bool),
	}
}

// Hide removes rows from the view
func (o *Overlay) Hide(ids ...int64) *Overlay {
	for _, id := range ids {
		o.hidden[id] = true
	}
	return o
}

// Add appends simulated rows and returns their (negative) IDs
func (o *Overlay) Add(entries ...domain.AllocationEntry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		o.nextID--
		e = cloneEntry(e)
		e.ID = o.nextID
		o.added = append(o.added, e)
		ids = append(ids, e.ID)
	}
	return ids
}

// EntriesFor returns base rows minus hidden ones, plus simulated rows in range
func (o *Overlay) EntriesFor(ctx context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error) {
	base, err := o.base.EntriesFor(ctx, translatorID, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AllocationEntry, 0, len(base)+len(o.added))
	for _, e := range base {
		if !o.hidden[e.ID] {
			out = append(out, e)
		}
	}
	for _, e := range o.added {
		if e.TranslatorID != translatorID || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	SortEntries(out)
	return out, nil
}
