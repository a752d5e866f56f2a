package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all calendar routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calendar", func(r chi.Router) {
		r.Get("/today", h.HandleGetToday)
		r.Get("/business-days", h.HandleGetBusinessDays)
		r.Get("/holidays", h.HandleGetHolidays)
		r.Post("/holidays", h.HandleAddHoliday)
		r.Delete("/holidays/{date}", h.HandleRemoveHoliday)
	})
}
