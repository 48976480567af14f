package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCompanyOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.app.MarketService.CompanyOverview(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, o)
}

func (s *Server) handleCompanyInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.app.MarketService.Insights(r.Context(), chi.URLParam(r, "symbol"), QueryBool(r, "force"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, insights)
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.app.Cache.Status(chi.URLParam(r, "symbol"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Cache.Clear(); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheInvalidateSymbol(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Cache.InvalidateSymbol(chi.URLParam(r, "symbol")); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Cache.Invalidate(chi.URLParam(r, "symbol"), chi.URLParam(r, "resource")); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCacheRefreshDaily drops the symbol's daily resources so the next
// read refetches them.
func (s *Server) handleCacheRefreshDaily(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Cache.RefreshDaily(chi.URLParam(r, "symbol")); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
