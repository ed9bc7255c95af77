package server

import (
	"net/http"

	"github.com/claude/freelift/internal/models"
)

type startSessionRequest struct {
	WorkoutID int64   `json:"workoutId"`
	Notes     *string `json:"notes"`
}

type endSessionRequest struct {
	Duration *int `json:"duration"`
	Calories *int `json:"calories"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	ws, err := s.sessions.Start(r.Context(), uid, req.WorkoutID, req.Notes)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var l models.ExerciseLog
	if err := decodeJSON(r, &l); err != nil {
		s.fail(w, err)
		return
	}
	logged, err := s.sessions.LogSet(r.Context(), uid, l)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, logged)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	v := &models.ValidationError{}
	if req.Duration == nil {
		v.Add("duration", "required")
	}
	if req.Calories == nil {
		v.Add("calories", "required")
	}
	if err := v.Err(); err != nil {
		s.fail(w, err)
		return
	}

	closed, err := s.sessions.End(r.Context(), uid, id, *req.Duration, *req.Calories)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	ws, err := s.sessions.Abandon(r.Context(), uid, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	detail, err := s.sessions.Detail(r.Context(), uid, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, err)
		return
	}
	sessions, err := s.sessions.Recent(r.Context(), uid, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleOpenSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	sessions, err := s.sessions.Open(r.Context(), uid)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
