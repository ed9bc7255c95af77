package models

import (
	"strings"
	"time"
)

// Exercise is a catalog entry.
type Exercise struct {
	ID           int64      `json:"id" yaml:"-"`
	Name         string     `json:"name" yaml:"name"`
	Description  string     `json:"description" yaml:"description"`
	Instructions []string   `json:"instructions" yaml:"instructions"`
	MuscleGroups []string   `json:"muscleGroups" yaml:"muscle_groups"`
	Equipment    string     `json:"equipment" yaml:"equipment"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	ImageURL     *string    `json:"imageUrl" yaml:"image_url"`
	VideoURL     *string    `json:"videoUrl" yaml:"video_url"`
	Tips         []string   `json:"tips" yaml:"tips"`
}

// Normalize trims text fields and lower-cases muscle groups, dropping blanks
// and duplicates.
func (e *Exercise) Normalize() {
	e.Name = strings.TrimSpace(e.Name)
	e.Description = strings.TrimSpace(e.Description)
	e.Equipment = strings.TrimSpace(e.Equipment)

	seen := make(map[string]bool, len(e.MuscleGroups))
	groups := e.MuscleGroups[:0]
	for _, g := range e.MuscleGroups {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		groups = append(groups, g)
	}
	e.MuscleGroups = groups
}

// Validate normalizes e and checks required fields.
func (e *Exercise) Validate() error {
	e.Normalize()
	v := &ValidationError{}
	if e.Name == "" {
		v.Add("name", "required")
	}
	if e.Description == "" {
		v.Add("description", "required")
	}
	if len(e.Instructions) == 0 {
		v.Add("instructions", "at least one step required")
	}
	if len(e.MuscleGroups) == 0 {
		v.Add("muscleGroups", "at least one muscle group required")
	}
	if e.Equipment == "" {
		v.Add("equipment", "required")
	}
	if !e.Difficulty.Valid() {
		v.Add("difficulty", "must be beginner, intermediate or advanced")
	}
	return v.Err()
}

// Matches reports whether query (case-insensitive) occurs in the name,
// description, equipment or any muscle group.
func (e *Exercise) Matches(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(e.Name), q) ||
		strings.Contains(strings.ToLower(e.Description), q) ||
		strings.Contains(strings.ToLower(e.Equipment), q) {
		return true
	}
	for _, g := range e.MuscleGroups {
		if strings.Contains(g, q) {
			return true
		}
	}
	return false
}

// HasMuscleGroup reports whether e targets group.
func (e *Exercise) HasMuscleGroup(group string) bool {
	group = strings.ToLower(strings.TrimSpace(group))
	for _, g := range e.MuscleGroups {
		if g == group {
			return true
		}
	}
	return false
}

// Workout is a named, ordered list of exercises owned by a user.
type Workout struct {
	ID          int64      `json:"id"`
	UserID      int        `json:"userId"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Duration    *int       `json:"duration"` // estimated minutes
	Difficulty  Difficulty `json:"difficulty"`
	IsTemplate  bool       `json:"isTemplate"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Validate checks the fields a client may set.
func (w *Workout) Validate() error {
	w.Name = strings.TrimSpace(w.Name)
	v := &ValidationError{}
	if w.Name == "" {
		v.Add("name", "required")
	}
	if w.Duration != nil && *w.Duration < 0 {
		v.Add("duration", "must be non-negative")
	}
	if !w.Difficulty.Valid() {
		v.Add("difficulty", "must be beginner, intermediate or advanced")
	}
	return v.Err()
}

// DefaultRestSeconds applies when a workout exercise has no rest time.
const DefaultRestSeconds = 60

// WorkoutExercise prescribes sets and reps of one exercise inside a workout.
// Order defines the sequence and is unique per workout.
type WorkoutExercise struct {
	ID         int64    `json:"id"`
	WorkoutID  int64    `json:"workoutId"`
	ExerciseID int64    `json:"exerciseId"`
	Sets       int      `json:"sets"`
	Reps       int      `json:"reps"`
	Weight     *float64 `json:"weight"`
	RestTime   *int     `json:"restTime"` // seconds
	Order      int      `json:"order"`
}

// Validate checks prescription bounds.
func (we *WorkoutExercise) Validate() error {
	v := &ValidationError{}
	if we.ExerciseID <= 0 {
		v.Add("exerciseId", "required")
	}
	if we.Sets <= 0 {
		v.Add("sets", "must be positive")
	}
	if we.Reps <= 0 {
		v.Add("reps", "must be positive")
	}
	if we.Weight != nil && *we.Weight < 0 {
		v.Add("weight", "must be non-negative")
	}
	if we.RestTime != nil && *we.RestTime < 0 {
		v.Add("restTime", "must be non-negative")
	}
	if we.Order < 0 {
		v.Add("order", "must be non-negative")
	}
	return v.Err()
}

// RestSeconds is the configured rest between sets, or DefaultRestSeconds.
func (we *WorkoutExercise) RestSeconds() int {
	if we.RestTime == nil || *we.RestTime <= 0 {
		return DefaultRestSeconds
	}
	return *we.RestTime
}

// WorkoutExerciseDetail joins a prescription with its exercise.
type WorkoutExerciseDetail struct {
	WorkoutExercise
	Exercise Exercise `json:"exercise"`
}

// WorkoutDetail is a workout with its exercises sorted by Order.
type WorkoutDetail struct {
	Workout   Workout                 `json:"workout"`
	Exercises []WorkoutExerciseDetail `json:"exercises"`
}

// PrescribedSets returns the set count for exerciseID, or 0 when the
// exercise is not part of the workout. An exercise listed twice reports its
// larger prescription since set numbers restart for each occurrence.
func (d *WorkoutDetail) PrescribedSets(exerciseID int64) int {
	most := 0
	for _, we := range d.Exercises {
		if we.ExerciseID == exerciseID && we.Sets > most {
			most = we.Sets
		}
	}
	return most
}

// TotalSets sums prescribed sets across all exercises.
func (d *WorkoutDetail) TotalSets() int {
	total := 0
	for _, we := range d.Exercises {
		total += we.Sets
	}
	return total
}

// User is an account resolved from the network identity.
type User struct {
	ID          int       `json:"id"`
	Login       string    `json:"login"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}
