// Package handlers provides HTTP handlers for stored suggestions.
package handlers

import (
	"context"
	"net/http"

	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/aristath/tradplan/internal/modules/tasks"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Applier commits a suggestion through the task write path
type Applier interface {
	ApplySuggestion(ctx context.Context, suggestionID string, opts tasks.ApplyOptions) (*tasks.Result, error)
}

// ApplyRequest is the optional body of POST /api/suggestions/{id}/apply
type ApplyRequest struct {
	Force bool `json:"forcer"`
}

// Handler handles suggestion HTTP requests
type Handler struct {
	store   *resolution.Store
	applier Applier
	log     zerolog.Logger
}

// NewHandler creates a new suggestion handler
func NewHandler(store *resolution.Store, applier Applier, log zerolog.Logger) *Handler {
	return &Handler{
		store:   store,
		applier: applier,
		log:     log.With().Str("handler", "suggestions").Logger(),
	}
}

// HandleListPending handles GET /api/suggestions
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	pending := h.store.Pending()
	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"suggestions": pending,
		"count":       len(pending),
	}))
}

// HandleGet handles GET /api/suggestions/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sug, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(sug))
}

// HandleApply handles POST /api/suggestions/{id}/apply
// Rewrites the target task with the suggested allocation. A proposal that no
// longer fits answers 409 unless the body sets "forcer".
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if r.ContentLength != 0 {
		if err := apierr.Decode(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	res, err := h.applier.ApplySuggestion(r.Context(), chi.URLParam(r, "id"), tasks.ApplyOptions{Force: req.Force})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(res))
}

// HandleDismiss handles POST /api/suggestions/{id}/dismiss
// A dismissed suggestion never touched the ledger, so nothing is undone
func (h *Handler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	sug, err := h.store.Dismiss(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apierr.Envelope(sug))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apierr.Write(w, h.log, err, nil)
}
