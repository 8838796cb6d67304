package server

import (
	"estate-chat/errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type sendRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

type markThreadReadRequest struct {
	SenderID string `json:"sender_id"`
}

type markThreadReadResponse struct {
	IDs []uuid.UUID `json:"ids"`
}

func (s *Server) inbox(w http.ResponseWriter, r *http.Request) {
	messages, err := s.messages.Inbox(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orEmpty(messages))
}

func (s *Server) thread(w http.ResponseWriter, r *http.Request) {
	messages, err := s.messages.Thread(r.Context(), caller(r), chi.URLParam(r, "counterpartID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orEmpty(messages))
}

func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !s.decode(w, r, &req) {
		return
	}
	message, err := s.messages.Send(r.Context(), caller(r), req.RecipientID, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, message)
}

func (s *Server) markThreadRead(w http.ResponseWriter, r *http.Request) {
	var req markThreadReadRequest
	if !s.decode(w, r, &req) {
		return
	}
	ids, err := s.messages.MarkThreadRead(r.Context(), caller(r), req.SenderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, markThreadReadResponse{IDs: orEmpty(ids)})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, errors.ErrInvalidRequest)
		return
	}
	message, err := s.messages.MarkRead(r.Context(), caller(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	messages, err := s.messages.Search(r.Context(), caller(r), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orEmpty(messages))
}
