// Package handlers exposes the translator roster and per-day availability.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Roster is the read side of the translator store
type Roster interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
	List(ctx context.Context) ([]*domain.Translator, error)
}

// maxAvailabilityDays bounds the availability range
const maxAvailabilityDays = 92

// Handler handles translator HTTP requests
type Handler struct {
	roster Roster
	view   ledger.View
	cal    *calendar.Calendar
	log    zerolog.Logger
}

// NewHandler creates a new translator handler
func NewHandler(roster Roster, view ledger.View, cal *calendar.Calendar, log zerolog.Logger) *Handler {
	return &Handler{
		roster: roster,
		view:   view,
		cal:    cal,
		log:    log.With().Str("handler", "translators").Logger(),
	}
}

// HandleList handles GET /api/translators
// Optional filters: active, language_pair, domain
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.roster.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	q := r.URL.Query()
	var activeOnly *bool
	if v := q.Get("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, domain.InvalidInput("active: %q is not a boolean", v))
			return
		}
		activeOnly = &parsed
	}
	pair, dom := q.Get("language_pair"), q.Get("domain")

	translators := make([]*domain.Translator, 0, len(all))
	for _, t := range all {
		if activeOnly != nil && t.Active != *activeOnly {
			continue
		}
		if !t.Speaks(pair) || !t.Covers(dom) {
			continue
		}
		translators = append(translators, t)
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"translators": translators,
		"count":       len(translators),
	}))
}

// HandleGet handles GET /api/translators/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.roster.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(t))
}

// DayAvailability is one translator-day of the availability report
type DayAvailability struct {
	ledger.DayTotals
	BusinessDay bool    `json:"business_day"`
	Holiday     string  `json:"holiday,omitempty"`
	WorkStart   string  `json:"work_start"`
	WorkEnd     string  `json:"work_end"`
	WindowHours float64 `json:"window_hours"`
	Forced      int     `json:"forced_rows"`
}

// HandleAvailability handles GET /api/translators/{id}/availability?from=&to=
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.roster.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	from, err := apierr.ParseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	to, err := apierr.ParseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if to.Before(from) {
		h.writeError(w, domain.InvalidInput("to %s is before from %s", to.Format(time.DateOnly), from.Format(time.DateOnly)))
		return
	}
	if calendar.DaysBetween(from, to) > maxAvailabilityDays {
		h.writeError(w, domain.InvalidInput("range is limited to %d days", maxAvailabilityDays))
		return
	}

	entries, err := h.view.EntriesFor(ctx, t.ID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	days := make([]DayAvailability, 0, calendar.DaysBetween(from, to))
	var available float64
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		win := h.cal.WorkingWindow(t, d)
		day := DayAvailability{
			DayTotals:   ledger.Totals(entries, d, t.DailyCapacity),
			BusinessDay: win.Business,
			WorkStart:   win.Start.String(),
			WorkEnd:     win.End.String(),
			WindowHours: win.UsableHours(),
		}
		if name, ok := h.cal.HolidayName(d); ok {
			day.Holiday = name
		}
		for _, e := range entries {
			if e.Date.Equal(d) && e.Forced {
				day.Forced++
			}
		}
		if win.Business && day.Available > 0 {
			available += day.Available
		}
		days = append(days, day)
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"translator":      t,
		"from":            from.Format(time.DateOnly),
		"to":              to.Format(time.DateOnly),
		"days":            days,
		"available_hours": domain.RoundHours(available),
	}))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apierr.Write(w, h.log, err, nil)
}
