package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all distribution routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/distribution", func(r chi.Router) {
		r.Post("/preview", h.HandlePreview)
	})
}
