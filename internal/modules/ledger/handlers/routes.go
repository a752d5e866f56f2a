package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		// Row endpoints
		r.Get("/entries", h.HandleGetEntries)
		r.Get("/entries/{id}", h.HandleGetEntry)
		r.Get("/tasks/{id}/entries", h.HandleGetTaskEntries)

		// Load reporting
		r.Get("/summary", h.HandleGetSummary)
	})
}
