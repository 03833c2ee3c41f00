package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/countries/internal/core"
	"github.com/JonMunkholm/countries/internal/logging"
)

// refreshWriteSlack covers encoding the response after a cycle ends.
const refreshWriteSlack = 10 * time.Second

type refreshResponse struct {
	Message string `json:"message"`
	core.RefreshResult
}

// handleRefresh runs one reconciliation cycle.
// POST /countries/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := withClient(r.Context(), r)
	s.extendWriteDeadline(w, r)

	res, err := s.service.Refresh(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, refreshResponse{
		Message:       "Database updated",
		RefreshResult: res,
	})
}

// handleListCountries lists records filtered by name, currency_code or region.
// GET /countries?name=&currency_code=&region=&sort=gdp_desc|gdp_asc
func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rows, err := s.service.ListCountries(r.Context(), core.QueryParams{
		Name:         q.Get("name"),
		CurrencyCode: q.Get("currency_code"),
		Region:       q.Get("region"),
		Sort:         q.Get("sort"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rows)
}

// GET /countries/{name}
func (s *Server) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetCountry(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, c)
}

// DELETE /countries/{name}
func (s *Server) handleDeleteCountry(w http.ResponseWriter, r *http.Request) {
	ctx := withClient(r.Context(), r)

	if err := s.service.DeleteCountry(ctx, chi.URLParam(r, "name")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extendWriteDeadline lets a refresh answer after the server-wide write
// timeout: the response may wait for the gate and then a whole cycle.
func (s *Server) extendWriteDeadline(w http.ResponseWriter, r *http.Request) {
	rc := s.cfg.Refresh
	if rc.Timeout <= 0 {
		return
	}
	deadline := time.Now().Add(rc.MaxWait + rc.Timeout + refreshWriteSlack)
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.FromContext(r.Context()).Warn("could not extend write deadline", "error", err)
	}
}
