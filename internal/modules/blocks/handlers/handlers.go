// Package handlers provides HTTP handlers for blocked time.
package handlers

import (
	"net/http"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/blocks"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles block HTTP requests
type Handler struct {
	service *blocks.Service
	log     zerolog.Logger
}

// NewHandler creates a new block handler
func NewHandler(service *blocks.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "blocks").Logger(),
	}
}

// BlockRequest is the body of POST /api/blocks
type BlockRequest struct {
	TranslatorID string            `json:"translator_id"`
	Date         string            `json:"date"`
	Hours        float64           `json:"hours,omitempty"`
	StartTime    *domain.TimeOfDay `json:"start_time,omitempty"`
	EndTime      *domain.TimeOfDay `json:"end_time,omitempty"`
	Reason       string            `json:"reason"`
	Force        bool              `json:"forcer"`
}

// HandleAdd handles POST /api/blocks
// Returns the block with the conflicts it causes and suggestions to resolve them
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var body BlockRequest
	if err := apierr.Decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	date, err := apierr.ParseDate("date", body.Date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.service.AddBlock(r.Context(), blocks.Block{
		TranslatorID: body.TranslatorID,
		Date:         date,
		Hours:        body.Hours,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		Reason:       body.Reason,
		Force:        body.Force,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, apierr.Envelope(res))
}

// HandleRemove handles DELETE /api/blocks/{id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := apierr.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.service.RemoveBlock(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{"deleted": id}))
}

// HandleList handles GET /api/blocks?translator_id=&from=&to=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	translatorID := q.Get("translator_id")
	if translatorID == "" {
		h.writeError(w, domain.InvalidInput("translator_id is required"))
		return
	}
	from, err := apierr.ParseDate("from", q.Get("from"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	to, err := apierr.ParseDate("to", q.Get("to"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	list, err := h.service.List(r.Context(), translatorID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"blocks": list,
		"count":  len(list),
	}))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apierr.Write(w, h.log, err, nil)
}
