package server

import (
	"estate-chat/services"
	"net/http"
)

func (s *Server) getProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.Profiles(r.Context(), r.URL.Query()["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orEmpty(profiles))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req services.ProfileRequest
	if !s.decode(w, r, &req) {
		return
	}
	profile, err := s.profiles.UpdateMine(r.Context(), caller(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}
