// Package handlers provides HTTP handlers for distribution previews.
package handlers

import (
	"context"
	"net/http"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/distribution"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/rs/zerolog"
)

// TranslatorSource resolves translators
type TranslatorSource interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
}

// Handler handles distribution HTTP requests
type Handler struct {
	engine *distribution.Engine
	roster TranslatorSource
	view   ledger.View
	log    zerolog.Logger
}

// NewHandler creates a new distribution handler
func NewHandler(
	engine *distribution.Engine,
	roster TranslatorSource,
	view ledger.View,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		engine: engine,
		roster: roster,
		view:   view,
		log:    log.With().Str("handler", "distribution").Logger(),
	}
}

// PreviewRequest is the body of POST /api/distribution/preview
type PreviewRequest struct {
	TranslatorID string                   `json:"translator_id"`
	TotalHours   float64                  `json:"total_hours"`
	Mode         domain.DistributionMode  `json:"mode"`
	Due          string                   `json:"due"`
	Start        string                   `json:"start,omitempty"`
	End          string                   `json:"end,omitempty"`
	Allocations  []distribution.SlotInput `json:"allocations,omitempty"`
}

// HandlePreview handles POST /api/distribution/preview
// Computes an allocation without touching the ledger
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var body PreviewRequest
	if err := apierr.Decode(r, &body); err != nil {
		h.writeError(w, err, nil)
		return
	}

	req, err := h.buildRequest(r.Context(), body)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	res, err := h.engine.Distribute(r.Context(), h.view, req)
	if err != nil {
		// INFEASIBLE still carries the partial allocation
		var extra map[string]any
		if res != nil {
			extra = map[string]any{"data": res}
		}
		h.writeError(w, err, extra)
		return
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(res))
}

func (h *Handler) buildRequest(ctx context.Context, body PreviewRequest) (distribution.Request, error) {
	if body.TranslatorID == "" {
		return distribution.Request{}, domain.InvalidInput("translator_id is required")
	}
	t, err := h.roster.Get(ctx, body.TranslatorID)
	if err != nil {
		return distribution.Request{}, err
	}
	due, err := distribution.ParseDue(h.engine.Calendar(), body.Due)
	if err != nil {
		return distribution.Request{}, err
	}
	start, err := distribution.ParseOptionalDay("start", body.Start)
	if err != nil {
		return distribution.Request{}, err
	}
	end, err := distribution.ParseOptionalDay("end", body.End)
	if err != nil {
		return distribution.Request{}, err
	}
	manual, err := distribution.ParseSlots(body.Allocations)
	if err != nil {
		return distribution.Request{}, err
	}

	return distribution.Request{
		Translator: t,
		TotalHours: body.TotalHours,
		Mode:       body.Mode,
		Due:        due,
		Start:      start,
		End:        end,
		Manual:     manual,
	}, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

// writeError writes a typed error response
func (h *Handler) writeError(w http.ResponseWriter, err error, extra map[string]any) {
	apierr.Write(w, h.log, err, extra)
}
