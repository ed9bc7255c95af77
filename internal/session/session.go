// Package session records workout sessions and their set logs, and closes
// them into the user's stats.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/stats"
)

// Ledger is the persistence port for sessions and set logs.
type Ledger interface {
	GetWorkoutDetail(ctx context.Context, id int64) (*models.WorkoutDetail, error)
	CreateSession(ctx context.Context, ws models.WorkoutSession) (*models.WorkoutSession, error)
	GetSession(ctx context.Context, id int64) (*models.WorkoutSession, error)
	AppendLog(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error)
	SessionLogs(ctx context.Context, sessionID int64) ([]models.ExerciseLog, error)
	RecentSessions(ctx context.Context, userID, limit int) ([]models.WorkoutSession, error)
	OpenSessions(ctx context.Context, userID int) ([]models.WorkoutSession, error)
	CloseSession(ctx context.Context, id int64, userID int, c models.SessionClose, fn stats.UpdateFunc) (*models.WorkoutSession, *models.UserStats, error)
	AbandonSession(ctx context.Context, id int64, userID int, at time.Time) (*models.WorkoutSession, error)
	TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]models.TrainingPeriod, error)
}

// Recent-session listing bounds.
const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// Closed is the result of finalizing a session.
type Closed struct {
	Session models.WorkoutSession `json:"session"`
	Stats   models.UserStats      `json:"stats"`
}

// Service implements session use cases.
type Service struct {
	ledger Ledger
	agg    *stats.Aggregator
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. agg supplies the stats update applied when a
// session closes.
func NewService(ledger Ledger, agg *stats.Aggregator, log *slog.Logger) *Service {
	return &Service{ledger: ledger, agg: agg, log: log, now: time.Now}
}

// Start opens a session for workoutID. The workout must belong to userID or
// be a template.
func (s *Service) Start(ctx context.Context, userID int, workoutID int64, notes *string) (*models.WorkoutSession, error) {
	if workoutID <= 0 {
		return nil, models.Invalid("workoutId", "required")
	}
	detail, err := s.ledger.GetWorkoutDetail(ctx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("loading workout %d: %w", workoutID, err)
	}
	if detail.Workout.UserID != userID && !detail.Workout.IsTemplate {
		return nil, fmt.Errorf("workout %d: %w", workoutID, models.ErrNotFound)
	}

	ws, err := s.ledger.CreateSession(ctx, models.WorkoutSession{
		UserID:    userID,
		WorkoutID: workoutID,
		StartTime: s.now().UTC(),
		Notes:     notes,
	})
	if err != nil {
		s.log.Error("session create failed", "user_id", userID, "workout_id", workoutID, "error", err)
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.log.Info("session started", "session_id", ws.ID, "user_id", userID, "workout_id", workoutID)
	return ws, nil
}

// owned loads a session and hides sessions belonging to other users.
func (s *Service) owned(ctx context.Context, userID int, id int64) (*models.WorkoutSession, error) {
	ws, err := s.ledger.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.UserID != userID {
		return nil, fmt.Errorf("session %d: %w", id, models.ErrNotFound)
	}
	return ws, nil
}

// LogSet appends one set to an open session. The set number may not exceed
// what the session's workout prescribes for the exercise.
func (s *Service) LogSet(ctx context.Context, userID int, l models.ExerciseLog) (*models.ExerciseLog, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	ws, err := s.owned(ctx, userID, l.SessionID)
	if err != nil {
		return nil, err
	}
	if ws.Closed() {
		return nil, fmt.Errorf("session %d: %w", ws.ID, models.ErrSessionClosed)
	}

	detail, err := s.ledger.GetWorkoutDetail(ctx, ws.WorkoutID)
	if err != nil {
		return nil, fmt.Errorf("loading workout %d: %w", ws.WorkoutID, err)
	}
	prescribed := detail.PrescribedSets(l.ExerciseID)
	if prescribed == 0 {
		return nil, models.Invalid("exerciseId", "exercise is not part of this workout")
	}
	if l.SetNumber > prescribed {
		return nil, models.Invalid("setNumber", fmt.Sprintf("workout prescribes %d sets", prescribed))
	}

	logged, err := s.ledger.AppendLog(ctx, l)
	if err != nil {
		s.log.Error("log append failed", "session_id", l.SessionID, "error", err)
		return nil, fmt.Errorf("appending log: %w", err)
	}
	return logged, nil
}

// End closes an open session with its duration and calories and folds it
// into the user's stats. A second End is rejected with ErrSessionClosed.
func (s *Service) End(ctx context.Context, userID int, id int64, durationMinutes, calories int) (*Closed, error) {
	v := &models.ValidationError{}
	if durationMinutes < 0 {
		v.Add("duration", "must be non-negative")
	}
	if calories < 0 {
		v.Add("calories", "must be non-negative")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	ws, st, err := s.ledger.CloseSession(ctx, id, userID,
		models.SessionClose{EndTime: at, Duration: durationMinutes, Calories: calories},
		s.agg.Updater(durationMinutes, calories, at))
	if err != nil {
		s.log.Error("session close failed", "session_id", id, "user_id", userID, "error", err)
		return nil, fmt.Errorf("closing session %d: %w", id, err)
	}
	s.log.Info("session closed", "session_id", id, "user_id", userID,
		"duration_min", durationMinutes, "calories", calories, "total_workouts", st.TotalWorkouts)
	return &Closed{Session: *ws, Stats: stats.Snapshot(*st, at, s.agg.Location())}, nil
}

// Abandon closes an open session without counting it in stats.
func (s *Service) Abandon(ctx context.Context, userID int, id int64) (*models.WorkoutSession, error) {
	ws, err := s.ledger.AbandonSession(ctx, id, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("abandoning session %d: %w", id, err)
	}
	s.log.Info("session abandoned", "session_id", id, "user_id", userID)
	return ws, nil
}

// Detail returns a session with its logs.
func (s *Service) Detail(ctx context.Context, userID int, id int64) (*models.SessionDetail, error) {
	ws, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.ledger.SessionLogs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading logs for session %d: %w", id, err)
	}
	return &models.SessionDetail{Session: *ws, Logs: logs}, nil
}

// Recent lists the user's latest sessions. limit <= 0 selects the default.
func (s *Service) Recent(ctx context.Context, userID, limit int) ([]models.WorkoutSession, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return nil, models.Invalid("limit", fmt.Sprintf("must be at most %d", MaxRecentLimit))
	}
	return s.ledger.RecentSessions(ctx, userID, limit)
}

// Open lists sessions the user started but never closed.
func (s *Service) Open(ctx context.Context, userID int) ([]models.WorkoutSession, error) {
	return s.ledger.OpenSessions(ctx, userID)
}

// Summary aggregates finalized sessions per week or month in [start, end).
func (s *Service) Summary(ctx context.Context, userID int, bucket string, start, end time.Time) ([]models.TrainingPeriod, error) {
	v := &models.ValidationError{}
	if !stats.ValidBucket(bucket) {
		v.Add("bucket", fmt.Sprintf("must be %q or %q", stats.BucketWeek, stats.BucketMonth))
	}
	if !end.After(start) {
		v.Add("end", "must be after start")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s.ledger.TrainingSummary(ctx, userID, start, end, bucket)
}
