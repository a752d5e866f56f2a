package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all conflict routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conflicts", func(r chi.Router) {
		r.Get("/", h.HandleDetect)
		r.Get("/allocation/{id}/full", h.HandleAllocationFull)
		r.Post("/suggest", h.HandleSuggest)
	})
}
