// Package handlers provides HTTP handlers for task writes and reads.
package handlers

import (
	"net/http"
	"time"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/calendar"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/tasks"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles task HTTP requests
type Handler struct {
	service *tasks.Service
	cal     *calendar.Calendar
	log     zerolog.Logger
}

// NewHandler creates a new task handler
func NewHandler(service *tasks.Service, cal *calendar.Calendar, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		cal:     cal,
		log:     log.With().Str("handler", "tasks").Logger(),
	}
}

// TaskRequest is the body of POST /api/tasks and PUT /api/tasks/{id}
type TaskRequest struct {
	ProjectNumber string                   `json:"project_number"`
	TranslatorID  string                   `json:"translator_id"`
	TotalHours    float64                  `json:"total_hours"`
	Due           string                   `json:"due"`
	Priority      domain.Priority          `json:"priority,omitempty"`
	Mode          domain.DistributionMode  `json:"mode,omitempty"`
	WindowStart   string                   `json:"window_start,omitempty"`
	WindowEnd     string                   `json:"window_end,omitempty"`
	LanguagePair  string                   `json:"language_pair,omitempty"`
	Client        string                   `json:"client,omitempty"`
	Domain        string                   `json:"domain,omitempty"`
	Auto          bool                     `json:"repartition_auto"`
	Allocations   []distribution.SlotInput `json:"allocations,omitempty"`
	Force         bool                     `json:"forcer"`
	Confirm       bool                     `json:"confirm"`
	Version       int64                    `json:"version,omitempty"`
}

func (h *Handler) submission(body TaskRequest) (tasks.Submission, error) {
	due, err := distribution.ParseDue(h.cal, body.Due)
	if err != nil {
		return tasks.Submission{}, err
	}
	start, err := distribution.ParseOptionalDay("window_start", body.WindowStart)
	if err != nil {
		return tasks.Submission{}, err
	}
	end, err := distribution.ParseOptionalDay("window_end", body.WindowEnd)
	if err != nil {
		return tasks.Submission{}, err
	}
	slots, err := distribution.ParseSlots(body.Allocations)
	if err != nil {
		return tasks.Submission{}, err
	}
	return tasks.Submission{
		ProjectNumber:  body.ProjectNumber,
		TranslatorID:   body.TranslatorID,
		TotalHours:     body.TotalHours,
		Due:            due,
		Priority:       body.Priority,
		Mode:           body.Mode,
		WindowStart:    start,
		WindowEnd:      end,
		LanguagePair:   body.LanguagePair,
		Client:         body.Client,
		Domain:         body.Domain,
		AutoDistribute: body.Auto,
		Allocations:    slots,
		Force:          body.Force,
		Confirm:        body.Confirm,
		Version:        body.Version,
	}, nil
}

// HandleCreate handles POST /api/tasks
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body TaskRequest
	if err := apierr.Decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	sub, err := h.submission(body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.service.Create(r.Context(), sub)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, apierr.Envelope(res))
}

// HandleUpdate handles PUT /api/tasks/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := apierr.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body TaskRequest
	if err := apierr.Decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	sub, err := h.submission(body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.service.Update(r.Context(), id, sub)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(res))
}

// HandleGet handles GET /api/tasks/{id}
// Returns the task with its ledger rows
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := apierr.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	task, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries, err := h.service.Entries(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AllocationEntry{}
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"task":        task,
		"allocations": entries,
	}))
}

// HandleList handles GET /api/tasks
// Optional filters: translator_id, due_from, due_to (YYYY-MM-DD)
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := tasks.ListFilter{TranslatorID: q.Get("translator_id")}

	if v := q.Get("due_from"); v != "" {
		d, err := apierr.ParseDate("due_from", v)
		if err != nil {
			h.writeError(w, err)
			return
		}
		from := h.cal.Instant(d, 0)
		filter.DueFrom = &from
	}
	if v := q.Get("due_to"); v != "" {
		d, err := apierr.ParseDate("due_to", v)
		if err != nil {
			h.writeError(w, err)
			return
		}
		to := h.cal.Instant(d.AddDate(0, 0, 1), 0).Add(-time.Second)
		filter.DueTo = &to
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"tasks": list,
		"count": len(list),
	}))
}

// HandleDelete handles DELETE /api/tasks/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := apierr.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"deleted": id,
	}))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apierr.Write(w, h.log, err, nil)
}
