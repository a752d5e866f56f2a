// Package blocks manages blocked time: meetings, training and leave written
// to the ledger as BLOCK rows.
package blocks

import (
	"context"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/rs/zerolog"
)

// Roster resolves translators
type Roster interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
}

// Block is a request to block time
type Block struct {
	TranslatorID string
	Date         time.Time
	// Hours may be zero when a range is given; it is then the usable time of the range
	Hours     float64
	StartTime *domain.TimeOfDay
	EndTime   *domain.TimeOfDay
	Reason    string
	Force     bool
}

// Result is the outcome of AddBlock
type Result struct {
	Entry       *domain.AllocationEntry `json:"block"`
	Conflicts   []domain.Conflict       `json:"conflicts"`
	Suggestions []domain.Suggestion     `json:"suggestions"`
}

// Service writes and removes blocks
type Service struct {
	ledger    *ledger.Ledger
	cal       *calendar.Calendar
	detector  *conflicts.Detector
	suggester *resolution.Suggester
	roster    Roster
	log       zerolog.Logger
}

// NewService creates a block service. A nil suggester returns conflicts only.
func NewService(
	l *ledger.Ledger,
	cal *calendar.Calendar,
	detector *conflicts.Detector,
	suggester *resolution.Suggester,
	roster Roster,
	log zerolog.Logger,
) *Service {
	return &Service{
		ledger:    l,
		cal:       cal,
		detector:  detector,
		suggester: suggester,
		roster:    roster,
		log:       log.With().Str("service", "blocks").Logger(),
	}
}

// AddBlock writes a BLOCK row and reports the conflicts it causes, labelled
// with the new row as trigger, together with suggestions to resolve them.
func (s *Service) AddBlock(ctx context.Context, b Block) (*Result, error) {
	t, err := s.roster.Get(ctx, b.TranslatorID)
	if err != nil {
		return nil, err
	}
	if (b.StartTime == nil) != (b.EndTime == nil) {
		return nil, domain.InvalidInput("block time range needs both start and end")
	}

	entry := &domain.AllocationEntry{
		Date:         calendar.Day(b.Date),
		TranslatorID: t.ID,
		Hours:        b.Hours,
		Type:         domain.EntryBlock,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Reason:       b.Reason,
	}
	if r, ok := entry.Range(); ok {
		if r.End <= r.Start {
			return nil, domain.InvalidInput("block time range %s is empty", r)
		}
		usable := s.cal.WorkingWindow(t, entry.Date).Usable(r)
		switch {
		case entry.Hours == 0:
			entry.Hours = domain.RoundHours(float64(usable) / 60)
		case ledger.Minutes(entry.Hours) > usable:
			return nil, domain.InvalidInput("block of %.2fh does not fit in %s", entry.Hours, r).
				WithDetail("hours", entry.Hours).
				WithDetail("range", r.String())
		}
	}

	var found []domain.Conflict
	err = s.ledger.Update(ctx, []string{t.ID}, func(w *ledger.Writer) error {
		id, err := w.AddAllocation(ctx, entry, b.Force)
		if err != nil {
			return err
		}
		entry.ID = id

		found, err = s.detector.Detect(ctx, w, t, entry.Date, entry.Date, conflicts.Options{TriggerIDs: []int64{id}})
		return err
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.ledger.Get(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	res := &Result{Entry: stored, Conflicts: found, Suggestions: []domain.Suggestion{}}

	if len(found) > 0 && s.suggester != nil {
		res.Suggestions, err = s.suggester.Suggest(ctx, found, resolution.Request{})
		if err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Int64("entry_id", stored.ID).
		Str("translator_id", t.ID).
		Str("date", stored.Date.Format(time.DateOnly)).
		Float64("hours", stored.Hours).
		Int("conflicts", len(found)).
		Msg("Block added")
	return res, nil
}

// RemoveBlock deletes a BLOCK row. Task rows are owned by their task and
// cannot be removed here.
func (s *Service) RemoveBlock(ctx context.Context, id int64) error {
	e, err := s.ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Type != domain.EntryBlock {
		return domain.InvalidInput("allocation %d is a %s row, not a block", id, e.Type)
	}
	if err := s.ledger.RemoveAllocation(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("entry_id", id).Str("translator_id", e.TranslatorID).Msg("Block removed")
	return nil
}

// List returns a translator's blocks in [from, to]
func (s *Service) List(ctx context.Context, translatorID string, from, to time.Time) ([]domain.AllocationEntry, error) {
	if _, err := s.roster.Get(ctx, translatorID); err != nil {
		return nil, err
	}
	entries, err := s.ledger.EntriesFor(ctx, translatorID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AllocationEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == domain.EntryBlock {
			out = append(out, e)
		}
	}
	return out, nil
}
