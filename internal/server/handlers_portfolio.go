package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/folio/internal/models"
)

const defaultChartDays = 90

func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.PortfolioService.GetPortfolio(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleHoldingAdd(w http.ResponseWriter, r *http.Request) {
	var input models.HoldingInput
	if !DecodeJSON(w, r, &input) {
		return
	}
	h, err := s.app.PortfolioService.AddHolding(r.Context(), input)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, h)
}

func (s *Server) handleHoldingGet(w http.ResponseWriter, r *http.Request) {
	h, err := s.app.PortfolioService.GetHolding(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, h)
}

func (s *Server) handleHoldingUpdate(w http.ResponseWriter, r *http.Request) {
	var update models.HoldingUpdate
	if !DecodeJSON(w, r, &update) {
		return
	}
	h, err := s.app.PortfolioService.UpdateHolding(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, h)
}

func (s *Server) handleHoldingDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.app.PortfolioService.DeleteHolding(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHoldingsByTicker(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.app.PortfolioService.HoldingsByTicker(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, holdings)
}

func (s *Server) handlePortfolioOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.app.PortfolioService.Overview(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, o)
}

// handleSnapshotTake records today's snapshot. Without force an existing
// snapshot is returned as is with alreadyExists set.
func (s *Server) handleSnapshotTake(w http.ResponseWriter, r *http.Request) {
	result, err := s.app.PortfolioService.TakeSnapshot(r.Context(), QueryBool(r, "force"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyExists || result.Skipped {
		status = http.StatusOK
	}
	WriteJSON(w, status, result)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := s.app.PortfolioService.Performance(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, perf)
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.app.PortfolioService.Snapshots(r.Context(), QueryInt(r, "days", 0))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	png, err := s.app.PortfolioService.HistoryChart(r.Context(), QueryInt(r, "days", defaultChartDays))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
