package server

import (
	"estate-chat/auth"
	"net/http"
)

type sessionResponse struct {
	UserID string `json:"user_id"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	session, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	session, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, sessionResponse{UserID: caller(r)})
}
