package server

import (
	"net/http"

	"github.com/aristath/tradplan/internal/server/apierr"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		response := map[string]interface{}{
			"status":  "healthy",
			"version": version,
			"service": "tradplan",
		}
		if s.container.PlannerDB != nil {
			if err := s.container.PlannerDB.Conn().PingContext(r.Context()); err != nil {
				s.log.Warn().Err(err).Msg("Health check ping failed")
				status = http.StatusServiceUnavailable
				response["status"] = "degraded"
			}
		}

		apierr.WriteJSON(w, s.log, status, response)
	}
}
