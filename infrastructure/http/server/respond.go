package server

import (
	"encoding/json"
	"estate-chat/auth"
	"estate-chat/errors"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("Failed to write response", "error", err)
	}
}

// writeError maps a service error onto its status code.
// Internal failures are logged and never described to the caller.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, errors.ErrInvalidRequest)
		return false
	}
	return true
}

// caller returns the user injected by the auth middleware.
func caller(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
