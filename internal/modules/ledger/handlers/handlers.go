// Package handlers provides HTTP handlers for ledger reads.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Reader is the read side of the ledger
type Reader interface {
	ledger.View
	Get(ctx context.Context, id int64) (*domain.AllocationEntry, error)
	EntriesForTask(ctx context.Context, taskID int64) ([]domain.AllocationEntry, error)
}

// Roster lists translators for the summary
type Roster interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
	List(ctx context.Context) ([]*domain.Translator, error)
}

// maxSummaryDays bounds summary ranges
const maxSummaryDays = 366

// Handler handles ledger HTTP requests
type Handler struct {
	reader Reader
	roster Roster
	cal    *calendar.Calendar
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(
	reader Reader,
	roster Roster,
	cal *calendar.Calendar,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		reader: reader,
		roster: roster,
		cal:    cal,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetEntries handles GET /api/ledger/entries
// Required: translator_id, from, to. Optional: type (TASK or BLOCK)
func (h *Handler) HandleGetEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	translatorID := q.Get("translator_id")
	if translatorID == "" {
		h.writeError(w, domain.InvalidInput("translator_id is required"))
		return
	}
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var typ domain.EntryType
	switch v := domain.EntryType(q.Get("type")); v {
	case "", domain.EntryTask, domain.EntryBlock:
		typ = v
	default:
		h.writeError(w, domain.InvalidInput("type must be TASK or BLOCK, got %q", v))
		return
	}

	rows, err := h.reader.EntriesFor(r.Context(), translatorID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	entries := make([]domain.AllocationEntry, 0, len(rows))
	var total float64
	for _, e := range rows {
		if typ != "" && e.Type != typ {
			continue
		}
		entries = append(entries, e)
		total += e.Hours
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"entries":     entries,
		"count":       len(entries),
		"total_hours": domain.RoundHours(total),
	}))
}

// HandleGetEntry handles GET /api/ledger/entries/{id}
func (h *Handler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := apierr.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	e, err := h.reader.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(e))
}

// HandleGetTaskEntries handles GET /api/ledger/tasks/{id}/entries
func (h *Handler) HandleGetTaskEntries(w http.ResponseWriter, r *http.Request) {
	id, err := apierr.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries, err := h.reader.EntriesForTask(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AllocationEntry{}
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"task_id": id,
		"entries": entries,
		"count":   len(entries),
	}))
}

// TranslatorLoad is one translator's line of the summary
type TranslatorLoad struct {
	TranslatorID string  `json:"translator_id"`
	Name         string  `json:"name"`
	BusinessDays int     `json:"business_days"`
	Capacity     float64 `json:"capacity"`
	TaskHours    float64 `json:"task_hours"`
	BlockHours   float64 `json:"block_hours"`
	Utilization  float64 `json:"utilization"`
	Overbooked   int     `json:"overbooked_days"`
	SeekingWork  bool    `json:"seeking_work"`
}

// HandleGetSummary handles GET /api/ledger/summary?from=&to=[&translator_id=]
// Capacity counts business days only; hours booked on other days still count as load
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var translators []*domain.Translator
	if id := q.Get("translator_id"); id != "" {
		t, err := h.roster.Get(ctx, id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		translators = []*domain.Translator{t}
	} else {
		all, err := h.roster.List(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		for _, t := range all {
			if t.Active {
				translators = append(translators, t)
			}
		}
	}

	businessDays := h.cal.BusinessDays(from, to)
	loads := make([]TranslatorLoad, 0, len(translators))
	for _, t := range translators {
		load, err := h.load(ctx, t, from, to, businessDays)
		if err != nil {
			h.writeError(w, err)
			return
		}
		loads = append(loads, load)
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"from":        from.Format(time.DateOnly),
		"to":          to.Format(time.DateOnly),
		"translators": loads,
		"count":       len(loads),
	}))
}

func (h *Handler) load(ctx context.Context, t *domain.Translator, from, to time.Time, businessDays []time.Time) (TranslatorLoad, error) {
	entries, err := h.reader.EntriesFor(ctx, t.ID, from, to)
	if err != nil {
		return TranslatorLoad{}, err
	}

	load := TranslatorLoad{
		TranslatorID: t.ID,
		Name:         t.Name,
		BusinessDays: len(businessDays),
		Capacity:     domain.RoundHours(t.DailyCapacity * float64(len(businessDays))),
		SeekingWork:  t.SeekingWork,
	}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		totals := ledger.Totals(entries, d, t.DailyCapacity)
		load.TaskHours += totals.TaskHours
		load.BlockHours += totals.BlockHours
		if totals.Available < 0 {
			load.Overbooked++
		}
	}
	load.TaskHours = domain.RoundHours(load.TaskHours)
	load.BlockHours = domain.RoundHours(load.BlockHours)
	if load.Capacity > 0 {
		load.Utilization = domain.RoundHours((load.TaskHours + load.BlockHours) / load.Capacity)
	}
	return load, nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := apierr.ParseDate("from", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := apierr.ParseDate("to", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, domain.InvalidInput("to %s is before from %s", toStr, fromStr)
	}
	if calendar.DaysBetween(from, to) > maxSummaryDays {
		return time.Time{}, time.Time{}, domain.InvalidInput("range is limited to %d days", maxSummaryDays)
	}
	return from, to, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apierr.Write(w, h.log, err, nil)
}
