package web

import (
	"context"
	"net/http"
	"time"
)

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, st)
}

type healthResponse struct {
	Status         string `json:"status"`
	RefreshRunning bool   `json:"refresh_running"`
}

// handleHealth reports liveness and store reachability.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		s.respondErrorStatus(w, r, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, healthResponse{Status: "ok", RefreshRunning: s.service.RefreshRunning()})
}
