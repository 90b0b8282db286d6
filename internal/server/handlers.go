package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string            `json:"status"` // healthy, degraded or unhealthy
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
}

// handleHealth handles health check requests. An unreachable database is
// unhealthy (503); an open market data breaker only degrades.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "healthy",
		Service: "spreadbook",
		Checks:  map[string]string{},
	}
	status := http.StatusOK

	if err := s.container.DB.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Database health check failed")
		response.Status = "unhealthy"
		response.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		response.Checks["database"] = "ok"
	}

	if client := s.container.TradierClient; client != nil {
		state := client.BreakerState()
		response.Checks["market_data"] = "breaker " + state
		if state == "open" && response.Status == "healthy" {
			response.Status = "degraded"
		}
	} else {
		response.Checks["market_data"] = "offline"
	}

	s.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
