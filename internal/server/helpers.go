package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/auth"
	"github.com/bobmcallan/folio/internal/services/market"
	"github.com/bobmcallan/folio/internal/services/snapshot"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.Body == http.NoBody {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// QueryBool reads a boolean query parameter. "1", "true" and "yes" are true.
func QueryBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// QueryInt reads a positive integer query parameter, returning def when
// absent or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// statusFor maps service errors to HTTP status codes and short codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrTickerNotFound):
		return http.StatusNotFound, "ticker_not_found"
	case errors.Is(err, snapshot.ErrNotEnoughHistory):
		return http.StatusNotFound, "not_enough_history"
	case errors.Is(err, cache.ErrNoData):
		return http.StatusBadGateway, "no_data"
	case errors.Is(err, models.ErrInvalidAssetType),
		errors.Is(err, models.ErrOptionFieldsRequired),
		errors.Is(err, auth.ErrInvalidPIN),
		errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, auth.ErrIncorrectPIN):
		return http.StatusForbidden, "incorrect_pin"
	case errors.Is(err, market.ErrInsightsUnavailable):
		return http.StatusServiceUnavailable, "insights_unavailable"
	}
	return http.StatusInternalServerError, ""
}

// writeServiceError writes err with the status its kind maps to. Only
// unexpected failures are logged at error level.
func writeServiceError(w http.ResponseWriter, logger *common.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error().Err(err).Msg("Request failed")
		if status == http.StatusInternalServerError {
			WriteError(w, status, "Internal server error")
			return
		}
	}
	WriteErrorWithCode(w, status, err.Error(), code)
}
