package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type watchlistAddRequest struct {
	Symbol string `json:"symbol"`
	Notes  string `json:"notes"`
}

func (s *Server) handleWatchlistList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.app.WatchlistService.List(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req watchlistAddRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	item, err := s.app.WatchlistService.Add(r.Context(), req.Symbol, req.Notes)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.app.WatchlistService.Remove(r.Context(), chi.URLParam(r, "symbol")); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
