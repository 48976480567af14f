package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/folio/internal/common"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}
