package server

import (
	"net/http"
)

type verifyPINRequest struct {
	PIN string `json:"pin"`
}

type setPINRequest struct {
	CurrentPIN string `json:"currentPin"`
	NewPIN     string `json:"newPin"`
}

type removePINRequest struct {
	CurrentPIN string `json:"currentPin"`
}

// handleVerifyPIN answers 200 with verified=false on a wrong PIN so clients
// can tell a bad guess from a broken request.
func (s *Server) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req verifyPINRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	v, err := s.app.AuthService.VerifyPIN(r.Context(), req.PIN)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetPIN(w http.ResponseWriter, r *http.Request) {
	var req setPINRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.app.AuthService.SetPIN(r.Context(), req.CurrentPIN, req.NewPIN); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"pinSet": true})
}

func (s *Server) handleRemovePIN(w http.ResponseWriter, r *http.Request) {
	var req removePINRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.app.AuthService.RemovePIN(r.Context(), req.CurrentPIN); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"pinSet": false})
}
