// Package handlers provides HTTP handlers for business-day calendar queries.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// HolidayStore persists explicit holidays
type HolidayStore interface {
	Upsert(ctx context.Context, h calendar.Holiday) error
	Delete(ctx context.Context, date time.Time) error
}

// maxRangeDays bounds business-day listings
const maxRangeDays = 366

// Handler handles calendar HTTP requests
type Handler struct {
	cal   *calendar.Calendar
	store HolidayStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewHandler creates a new calendar handler. A nil store keeps holiday
// changes in memory only.
func NewHandler(cal *calendar.Calendar, store HolidayStore, log zerolog.Logger) *Handler {
	return &Handler{
		cal:   cal,
		store: store,
		now:   time.Now,
		log:   log.With().Str("handler", "calendar").Logger(),
	}
}

// SetClock injects the clock used for "today"
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// HandleGetToday handles GET /api/calendar/today
// Returns today's business-day status and the neighbouring business days
func (h *Handler) HandleGetToday(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	today := h.cal.Today(now)

	data := map[string]interface{}{
		"timestamp":             now.In(h.cal.Location()).Format(time.RFC3339),
		"timezone":              h.cal.Location().String(),
		"date":                  today.Format(time.DateOnly),
		"business_day":          h.cal.IsBusinessDay(today),
		"next_business_day":     h.cal.NextBusinessDay(today).Format(time.DateOnly),
		"previous_business_day": h.cal.PreviousBusinessDay(today).Format(time.DateOnly),
		"lunch":                 h.cal.Lunch().String(),
	}
	if name, ok := h.cal.HolidayName(today); ok {
		data["holiday"] = name
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(data))
}

// HandleGetBusinessDays handles GET /api/calendar/business-days?from=&to=
func (h *Handler) HandleGetBusinessDays(w http.ResponseWriter, r *http.Request) {
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
	if calendar.DaysBetween(from, to) > maxRangeDays {
		h.writeError(w, domain.InvalidInput("range is limited to %d days", maxRangeDays))
		return
	}

	days := h.cal.BusinessDays(from, to)
	formatted := make([]string, 0, len(days))
	for _, d := range days {
		formatted = append(formatted, d.Format(time.DateOnly))
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"from":          from.Format(time.DateOnly),
		"to":            to.Format(time.DateOnly),
		"business_days": formatted,
		"count":         len(formatted),
		"calendar_days": calendar.DaysBetween(from, to),
	}))
}

// HandleGetHolidays handles GET /api/calendar/holidays
// Returns the holidays of a year (query param, defaults to the current year)
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.cal.Today(h.now()).Year()
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		if parsedYear, err := strconv.Atoi(yearStr); err == nil && parsedYear > 0 {
			year = parsedYear
		}
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	holidays := h.cal.Holidays(from, to)

	list := make([]map[string]interface{}, 0, len(holidays))
	for _, hol := range holidays {
		list = append(list, map[string]interface{}{
			"date": hol.Date.Format(time.DateOnly),
			"name": hol.Name,
		})
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"year":     year,
		"holidays": list,
		"count":    len(list),
	}))
}

// HolidayRequest is the body of POST /api/calendar/holidays
type HolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// HandleAddHoliday handles POST /api/calendar/holidays
func (h *Handler) HandleAddHoliday(w http.ResponseWriter, r *http.Request) {
	var body HolidayRequest
	if err := apierr.Decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	date, err := apierr.ParseDate("date", body.Date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	hol := calendar.Holiday{Date: date, Name: strings.TrimSpace(body.Name)}
	if h.store != nil {
		if err := h.store.Upsert(r.Context(), hol); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.cal.AddHolidays(hol)
	h.log.Info().Str("date", body.Date).Str("name", hol.Name).Msg("Holiday added")

	h.writeJSON(w, http.StatusCreated, apierr.Envelope(map[string]interface{}{
		"date": date.Format(time.DateOnly),
		"name": hol.Name,
	}))
}

// HandleRemoveHoliday handles DELETE /api/calendar/holidays/{date}
// Only explicit holidays can be removed; rule-based ones always apply
func (h *Handler) HandleRemoveHoliday(w http.ResponseWriter, r *http.Request) {
	date, err := apierr.ParseDate("date", chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.store != nil {
		if err := h.store.Delete(r.Context(), date); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.cal.RemoveHoliday(date)

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"deleted": date.Format(time.DateOnly),
	}))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apierr.Write(w, h.log, err, nil)
}
