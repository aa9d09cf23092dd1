// Package handlers holds the HTTP handlers for the LoanLens API. Handlers
// decode requests, call the application services, and encode the results;
// validation and business rules live below them.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// ErrorResponse is the error body every endpoint shares.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError maps an application error onto its HTTP status. Client
// errors carry their own message; server errors are masked to the code's
// default so internals never leak.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	message := err.Error()
	if errors.IsServerError(code) {
		message = errors.DefaultMessageForCode(code)
	}
	writeJSON(w, status, ErrorResponse{Code: code.String(), Message: message})
}

// writeErrorCode writes an error response straight from a code and message.
func writeErrorCode(w http.ResponseWriter, code errors.ErrorCode, message string) {
	if message == "" {
		message = errors.DefaultMessageForCode(code)
	}
	writeJSON(w, errors.HTTPStatusForCode(code), ErrorResponse{Code: code.String(), Message: message})
}

// decodeJSON decodes a request body into target, rejecting syntactic junk
// early. Unknown fields pass through: the UI is allowed to be newer than the
// server.
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errors.New(errors.ErrCodeBadRequest, "request body is not valid JSON")
	}
	return nil
}

// documentID extracts the {id} route parameter.
func documentID(r *http.Request) common.ID {
	return common.ID(chi.URLParam(r, "id"))
}

// parsePagination reads page and page_size query parameters, keeping
// defaults on absent or malformed values. Bounds are enforced downstream.
func parsePagination(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 {
			pageSize = ps
		}
	}
	return page, pageSize
}
