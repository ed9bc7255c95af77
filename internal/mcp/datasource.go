package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/freelift/internal/catalog"
	"github.com/claude/freelift/internal/client"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
)

// DataSource abstracts the data layer for MCP tools. Local (in-process
// services) and *client.Client (remote via REST API) satisfy this interface.
type DataSource interface {
	ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error)
	ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error)
	GetWorkoutDetail(ctx context.Context, id int64, userID int) (*models.WorkoutDetail, error)
	GetUserStats(ctx context.Context, userID int) (*models.UserStats, error)
	RecentSessions(ctx context.Context, userID, limit int) ([]models.WorkoutSession, error)
	GetSessionDetail(ctx context.Context, id int64, userID int) (*models.SessionDetail, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]models.TrainingPeriod, error)
}

// Compile-time checks.
var (
	_ DataSource = (*Local)(nil)
	_ DataSource = (*client.Client)(nil)
)

// Local serves MCP reads straight from the services inside the API server.
type Local struct {
	catalog  *catalog.Service
	sessions *session.Service
	stats    *stats.Aggregator
}

// NewLocal creates a Local data source.
func NewLocal(cat *catalog.Service, sessions *session.Service, agg *stats.Aggregator) *Local {
	return &Local{catalog: cat, sessions: sessions, stats: agg}
}

func (l *Local) ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error) {
	return l.catalog.ListExercises(ctx, muscleGroup, query)
}

func (l *Local) ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error) {
	return l.catalog.ListWorkouts(ctx, userID)
}

func (l *Local) GetWorkoutDetail(ctx context.Context, id int64, userID int) (*models.WorkoutDetail, error) {
	d, err := l.catalog.GetWorkout(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Workout.IsTemplate && d.Workout.UserID != userID {
		return nil, fmt.Errorf("workout %d: %w", id, models.ErrNotFound)
	}
	return d, nil
}

func (l *Local) GetUserStats(ctx context.Context, userID int) (*models.UserStats, error) {
	return l.stats.GetUserStats(ctx, userID)
}

func (l *Local) RecentSessions(ctx context.Context, userID, limit int) ([]models.WorkoutSession, error) {
	return l.sessions.Recent(ctx, userID, limit)
}

func (l *Local) GetSessionDetail(ctx context.Context, id int64, userID int) (*models.SessionDetail, error) {
	return l.sessions.Detail(ctx, userID, id)
}

func (l *Local) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]models.TrainingPeriod, error) {
	return l.sessions.Summary(ctx, userID, bucket, start, end)
}
