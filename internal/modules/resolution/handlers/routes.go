package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all suggestion routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/suggestions", func(r chi.Router) {
		r.Get("/", h.HandleListPending)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/apply", h.HandleApply)
		r.Post("/{id}/dismiss", h.HandleDismiss)
	})
}
