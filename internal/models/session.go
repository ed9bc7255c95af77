package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutSession is one timed execution of a workout. EndTime, Duration and
// CaloriesBurned stay nil until the session is closed.
type WorkoutSession struct {
	ID             int64      `json:"id"`
	UserID         int        `json:"userId"`
	WorkoutID      int64      `json:"workoutId"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime"`
	Duration       *int       `json:"duration"` // minutes
	CaloriesBurned *int       `json:"caloriesBurned"`
	Notes          *string    `json:"notes"`
	Abandoned      bool       `json:"abandoned"`
}

// Closed reports whether the session has been finalized or abandoned.
func (s *WorkoutSession) Closed() bool {
	return s.EndTime != nil
}

// SessionClose carries the values written when a session is finalized.
type SessionClose struct {
	EndTime  time.Time
	Duration int // minutes
	Calories int
}

// ExerciseLog records one completed set. ClientID makes appends idempotent:
// a retried write with the same key returns the original row.
type ExerciseLog struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"sessionId"`
	ExerciseID int64     `json:"exerciseId"`
	SetNumber  int       `json:"setNumber"`
	Reps       int       `json:"reps"`
	Weight     *float64  `json:"weight"`
	Duration   *int      `json:"duration"` // seconds
	Completed  bool      `json:"completed"`
	ClientID   uuid.UUID `json:"clientId"`
}

// Validate checks the bounds that do not depend on the workout.
func (l *ExerciseLog) Validate() error {
	v := &ValidationError{}
	if l.SessionID <= 0 {
		v.Add("sessionId", "required")
	}
	if l.ExerciseID <= 0 {
		v.Add("exerciseId", "required")
	}
	if l.SetNumber < 1 {
		v.Add("setNumber", "must be at least 1")
	}
	if l.Reps < 0 {
		v.Add("reps", "must be non-negative")
	}
	if l.Weight != nil && *l.Weight < 0 {
		v.Add("weight", "must be non-negative")
	}
	if l.Duration != nil && *l.Duration < 0 {
		v.Add("duration", "must be non-negative")
	}
	return v.Err()
}

// SessionDetail is a session with its logged sets in insertion order.
type SessionDetail struct {
	Session WorkoutSession `json:"session"`
	Logs    []ExerciseLog  `json:"logs"`
}

// UserStats holds a user's running totals.
type UserStats struct {
	UserID        int        `json:"userId"`
	TotalWorkouts int        `json:"totalWorkouts"`
	TotalMinutes  int        `json:"totalMinutes"`
	TotalCalories int        `json:"totalCalories"`
	CurrentStreak int        `json:"currentStreak"`
	LongestStreak int        `json:"longestStreak"`
	LastWorkout   *time.Time `json:"lastWorkout"`
}

// TrainingPeriod aggregates closed sessions within one week or month.
type TrainingPeriod struct {
	Period   string  `json:"period"` // first day of the bucket, YYYY-MM-DD
	Sessions int     `json:"sessions"`
	Minutes  int     `json:"minutes"`
	Calories int     `json:"calories"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Volume   float64 `json:"volume"` // sum of weight × reps
}
