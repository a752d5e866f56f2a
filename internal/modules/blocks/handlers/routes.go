package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all block routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/blocks", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleAdd)
		r.Delete("/{id}", h.HandleRemove)
	})
}
