package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the translator roster routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/translators", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/availability", h.HandleAvailability)
	})
}
