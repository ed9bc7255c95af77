package server

import (
	"fmt"
	"net/http"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/stats"
)

// Profile is the /api/v1/profile response.
type Profile struct {
	User  models.User      `json:"user"`
	Stats models.UserStats `json:"stats"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	user, err := s.users.GetUser(r.Context(), uid)
	if err != nil {
		s.fail(w, err)
		return
	}
	st, err := s.stats.GetUserStats(r.Context(), uid)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Profile{User: *user, Stats: *st})
}

// handleStats returns the caller's stats. userId, when given, must name the
// caller; other users' stats are not visible.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	requested, err := queryInt(r, "userId")
	if err != nil {
		s.fail(w, err)
		return
	}
	if requested != 0 && requested != uid {
		s.fail(w, fmt.Errorf("stats for user %d: %w", requested, models.ErrNotFound))
		return
	}
	st, err := s.stats.GetUserStats(r.Context(), uid)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTrainingSummary(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	start, end, err := parseTimeRange(r, 90)
	if err != nil {
		s.fail(w, err)
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = stats.BucketWeek
	}
	periods, err := s.sessions.Summary(r.Context(), uid, bucket, start, end)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}
