package server

import (
	"net/http"

	"github.com/claude/freelift/internal/models"
)

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exercises, err := s.catalog.ListExercises(r.Context(), q.Get("muscle"), q.Get("q"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	e, err := s.catalog.GetExercise(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var e models.Exercise
	if err := decodeJSON(r, &e); err != nil {
		s.fail(w, err)
		return
	}
	created, err := s.catalog.CreateExercise(r.Context(), e)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	workouts, err := s.catalog.ListWorkouts(r.Context(), uid)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	detail, err := s.catalog.GetWorkout(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !detail.Workout.IsTemplate && detail.Workout.UserID != uid {
		s.fail(w, models.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var wk models.Workout
	if err := decodeJSON(r, &wk); err != nil {
		s.fail(w, err)
		return
	}
	created, err := s.catalog.CreateWorkout(r.Context(), uid, wk)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAddWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	var we models.WorkoutExercise
	if err := decodeJSON(r, &we); err != nil {
		s.fail(w, err)
		return
	}
	we.WorkoutID = id
	added, err := s.catalog.AddExercise(r.Context(), uid, we)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}
