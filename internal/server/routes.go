package server

import (
	"github.com/go-chi/chi/v5"
)

// registerRoutes mounts every API route on r.
func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/version", s.handleVersion)

	r.Route("/api/portfolio", func(r chi.Router) {
		r.Post("/verify-pin", s.handleVerifyPIN)
		r.Post("/set-pin", s.handleSetPIN)
		r.Delete("/pin", s.handleRemovePIN)

		r.Group(func(r chi.Router) {
			r.Use(pinGuard(s.app.AuthService, s.logger))

			r.Get("/", s.handlePortfolioGet)
			r.Post("/", s.handleHoldingAdd)
			r.Get("/overview", s.handlePortfolioOverview)
			r.Post("/snapshot", s.handleSnapshotTake)
			r.Get("/performance", s.handlePerformance)
			r.Get("/snapshots", s.handleSnapshotList)
			r.Get("/chart", s.handleHistoryChart)
			r.Get("/ticker/{ticker}", s.handleHoldingsByTicker)
			r.Get("/{id}", s.handleHoldingGet)
			r.Put("/{id}", s.handleHoldingUpdate)
			r.Delete("/{id}", s.handleHoldingDelete)
		})
	})

	r.Route("/api/companies/{symbol}", func(r chi.Router) {
		r.Get("/overview", s.handleCompanyOverview)
		r.Get("/insights", s.handleCompanyInsights)
	})

	r.Route("/api/cache", func(r chi.Router) {
		r.Delete("/", s.handleCacheClear)
		r.Get("/{symbol}", s.handleCacheStatus)
		r.Delete("/{symbol}", s.handleCacheInvalidateSymbol)
		r.Post("/{symbol}/refresh", s.handleCacheRefreshDaily)
		r.Delete("/{symbol}/{resource}", s.handleCacheInvalidate)
	})

	r.Route("/api/watchlist", func(r chi.Router) {
		r.Get("/", s.handleWatchlistList)
		r.Post("/", s.handleWatchlistAdd)
		r.Delete("/{symbol}", s.handleWatchlistRemove)
	})
}
