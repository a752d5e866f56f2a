// Package handlers provides HTTP handlers for conflict detection and
// suggestion requests.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/aristath/tradplan/internal/domain"
	"github.com/aristath/tradplan/internal/modules/conflicts"
	"github.com/aristath/tradplan/internal/modules/ledger"
	"github.com/aristath/tradplan/internal/modules/resolution"
	"github.com/aristath/tradplan/internal/server/apierr"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Roster resolves translators
type Roster interface {
	Get(ctx context.Context, id string) (*domain.Translator, error)
	List(ctx context.Context) ([]*domain.Translator, error)
}

// LedgerReader is the ledger access the handlers need
type LedgerReader interface {
	ledger.View
	Get(ctx context.Context, id int64) (*domain.AllocationEntry, error)
}

// Handler handles conflict HTTP requests
type Handler struct {
	detector  *conflicts.Detector
	suggester *resolution.Suggester
	ledger    LedgerReader
	roster    Roster
	log       zerolog.Logger
}

// NewHandler creates a new conflict handler
func NewHandler(
	detector *conflicts.Detector,
	suggester *resolution.Suggester,
	l LedgerReader,
	roster Roster,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		detector:  detector,
		suggester: suggester,
		ledger:    l,
		roster:    roster,
		log:       log.With().Str("handler", "conflicts").Logger(),
	}
}

// HandleDetect handles GET /api/conflicts?translator_id=&from=&to=
// Without translator_id every active translator is scanned
func (h *Handler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
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

	translators, err := h.translators(r.Context(), q.Get("translator_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	found := []domain.Conflict{}
	for _, t := range translators {
		cs, err := h.detector.Detect(r.Context(), h.ledger, t, from, to, conflicts.Options{})
		if err != nil {
			h.writeError(w, err)
			return
		}
		found = append(found, cs...)
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"conflicts": found,
		"count":     len(found),
		"by_type":   conflicts.CountByType(found),
	}))
}

func (h *Handler) translators(ctx context.Context, id string) ([]*domain.Translator, error) {
	if id != "" {
		t, err := h.roster.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return []*domain.Translator{t}, nil
	}

	all, err := h.roster.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Translator, 0, len(all))
	for _, t := range all {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

// HandleAllocationFull handles GET /api/conflicts/allocation/{id}/full
// Returns the ledger row, the conflicts it takes part in and suggestions for them
func (h *Handler) HandleAllocationFull(w http.ResponseWriter, r *http.Request) {
	id, err := apierr.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	entry, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	t, err := h.roster.Get(r.Context(), entry.TranslatorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	day, err := h.detector.Detect(r.Context(), h.ledger, t, entry.Date, entry.Date, conflicts.Options{})
	if err != nil {
		h.writeError(w, err)
		return
	}
	involved := conflicts.Involving(day, id)

	suggestions := []domain.Suggestion{}
	if len(involved) > 0 {
		suggestions, err = h.suggester.Suggest(r.Context(), involved, resolution.Request{
			Alternatives: r.URL.Query().Get("alternatives") == "true",
		})
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"allocation":  entry,
		"conflicts":   involved,
		"suggestions": suggestions,
	}))
}

// SuggestRequest is the body of POST /api/conflicts/suggest
type SuggestRequest struct {
	Conflicts    []domain.Conflict `json:"conflicts"`
	Alternatives bool              `json:"alternatives"`
	CandidateIDs []string          `json:"candidate_ids,omitempty"`
}

// HandleSuggest handles POST /api/conflicts/suggest
// Conflicts are taken as given; they are not re-detected
func (h *Handler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	var body SuggestRequest
	if err := apierr.Decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if len(body.Conflicts) == 0 {
		h.writeError(w, domain.InvalidInput("at least one conflict is required"))
		return
	}
	for i, c := range body.Conflicts {
		if c.TranslatorID == "" || c.Date.IsZero() {
			h.writeError(w, domain.InvalidInput("conflict %d: translator_id and date are required", i).WithDetail("index", i))
			return
		}
		if strings.TrimSpace(c.ID) == "" {
			body.Conflicts[i].ID = conflicts.ConflictID(c)
		}
	}

	suggestions, err := h.suggester.Suggest(r.Context(), body.Conflicts, resolution.Request{
		Alternatives: body.Alternatives,
		CandidateIDs: body.CandidateIDs,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, apierr.Envelope(map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	}))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apierr.WriteJSON(w, h.log, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apierr.Write(w, h.log, err, nil)
}
