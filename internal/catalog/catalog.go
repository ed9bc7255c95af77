// Package catalog serves the exercise library and workout templates.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/freelift/internal/models"
)

// Repository is the persistence port for exercises and workouts.
type Repository interface {
	ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error)
	GetExercise(ctx context.Context, id int64) (*models.Exercise, error)
	CreateExercise(ctx context.Context, e models.Exercise) (*models.Exercise, error)
	ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error)
	GetWorkout(ctx context.Context, id int64) (*models.Workout, error)
	CreateWorkout(ctx context.Context, w models.Workout) (*models.Workout, error)
	AddWorkoutExercise(ctx context.Context, we models.WorkoutExercise) (*models.WorkoutExercise, error)
	GetWorkoutDetail(ctx context.Context, id int64) (*models.WorkoutDetail, error)
}

// Service validates catalog input before it reaches the repository.
type Service struct {
	repo Repository
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListExercises filters by muscle group tag and a case-insensitive substring.
func (s *Service) ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error) {
	return s.repo.ListExercises(ctx, strings.ToLower(strings.TrimSpace(muscleGroup)), strings.TrimSpace(query))
}

// GetExercise returns one exercise.
func (s *Service) GetExercise(ctx context.Context, id int64) (*models.Exercise, error) {
	return s.repo.GetExercise(ctx, id)
}

// CreateExercise validates and stores a new exercise.
func (s *Service) CreateExercise(ctx context.Context, e models.Exercise) (*models.Exercise, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	created, err := s.repo.CreateExercise(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("creating exercise %q: %w", e.Name, err)
	}
	return created, nil
}

// ListWorkouts returns userID's workouts.
func (s *Service) ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error) {
	return s.repo.ListWorkouts(ctx, userID)
}

// GetWorkout returns a workout with its ordered exercises.
func (s *Service) GetWorkout(ctx context.Context, id int64) (*models.WorkoutDetail, error) {
	return s.repo.GetWorkoutDetail(ctx, id)
}

// CreateWorkout validates and stores a workout owned by userID.
func (s *Service) CreateWorkout(ctx context.Context, userID int, w models.Workout) (*models.Workout, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	w.UserID = userID
	created, err := s.repo.CreateWorkout(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("creating workout %q: %w", w.Name, err)
	}
	return created, nil
}

// AddExercise appends a prescription to one of userID's workouts. A
// duplicate order index is a conflict.
func (s *Service) AddExercise(ctx context.Context, userID int, we models.WorkoutExercise) (*models.WorkoutExercise, error) {
	if err := we.Validate(); err != nil {
		return nil, err
	}
	w, err := s.repo.GetWorkout(ctx, we.WorkoutID)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, fmt.Errorf("workout %d: %w", we.WorkoutID, models.ErrNotFound)
	}
	added, err := s.repo.AddWorkoutExercise(ctx, we)
	if err != nil {
		return nil, fmt.Errorf("adding exercise %d to workout %d: %w", we.ExerciseID, we.WorkoutID, err)
	}
	return added, nil
}
