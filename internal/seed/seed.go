// Package seed loads the exercise library and template workouts from YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/claude/freelift/internal/models"
	"gopkg.in/yaml.v3"
)

// Default is the built-in catalog shipped with the binary.
//
//go:embed default.yaml
var Default []byte

// File is the seed document.
type File struct {
	Exercises []models.Exercise `yaml:"exercises"`
	Workouts  []Workout         `yaml:"workouts"`
}

// Workout is a template workout whose exercises are referenced by name.
type Workout struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Duration    *int              `yaml:"duration"`
	Difficulty  models.Difficulty `yaml:"difficulty"`
	Exercises   []Prescription    `yaml:"exercises"`
}

type Prescription struct {
	Exercise string   `yaml:"exercise"`
	Sets     int      `yaml:"sets"`
	Reps     int      `yaml:"reps"`
	Weight   *float64 `yaml:"weight"`
	Rest     *int     `yaml:"rest"` // seconds
}

// Catalog is the subset of catalog.Service the loader writes through.
type Catalog interface {
	ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error)
	CreateExercise(ctx context.Context, e models.Exercise) (*models.Exercise, error)
	ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error)
	CreateWorkout(ctx context.Context, userID int, w models.Workout) (*models.Workout, error)
	AddExercise(ctx context.Context, userID int, we models.WorkoutExercise) (*models.WorkoutExercise, error)
}

// Result counts what Apply created and skipped.
type Result struct {
	ExercisesCreated int
	ExercisesSkipped int
	WorkoutsCreated  int
	WorkoutsSkipped  int
}

// Load reads a seed file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &f, nil
}

// Apply creates missing exercises and template workouts owned by ownerID.
// Exercises and workouts whose names already exist are left untouched, so
// Apply can run on every deploy.
func Apply(ctx context.Context, cat Catalog, ownerID int, f *File, log *slog.Logger) (Result, error) {
	var res Result

	existing, err := cat.ListExercises(ctx, "", "")
	if err != nil {
		return res, fmt.Errorf("listing exercises: %w", err)
	}
	ids := make(map[string]int64, len(existing))
	for _, e := range existing {
		ids[strings.ToLower(e.Name)] = e.ID
	}

	for _, e := range f.Exercises {
		key := strings.ToLower(strings.TrimSpace(e.Name))
		if _, ok := ids[key]; ok {
			res.ExercisesSkipped++
			continue
		}
		created, err := cat.CreateExercise(ctx, e)
		if err != nil {
			return res, fmt.Errorf("seeding exercise %q: %w", e.Name, err)
		}
		ids[key] = created.ID
		res.ExercisesCreated++
	}

	workouts, err := cat.ListWorkouts(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("listing workouts: %w", err)
	}
	have := make(map[string]bool, len(workouts))
	for _, w := range workouts {
		have[strings.ToLower(w.Name)] = true
	}

	for _, sw := range f.Workouts {
		if have[strings.ToLower(strings.TrimSpace(sw.Name))] {
			res.WorkoutsSkipped++
			continue
		}
		if err := applyWorkout(ctx, cat, ownerID, sw, ids); err != nil {
			return res, err
		}
		res.WorkoutsCreated++
	}

	log.Info("catalog seeded",
		"exercises_created", res.ExercisesCreated, "exercises_skipped", res.ExercisesSkipped,
		"workouts_created", res.WorkoutsCreated, "workouts_skipped", res.WorkoutsSkipped)
	return res, nil
}

func applyWorkout(ctx context.Context, cat Catalog, ownerID int, sw Workout, ids map[string]int64) error {
	// Resolve every reference before writing anything.
	exerciseIDs := make([]int64, len(sw.Exercises))
	for i, p := range sw.Exercises {
		id, ok := ids[strings.ToLower(strings.TrimSpace(p.Exercise))]
		if !ok {
			return fmt.Errorf("workout %q: %w", sw.Name, models.Invalid("exercise", fmt.Sprintf("unknown exercise %q", p.Exercise)))
		}
		exerciseIDs[i] = id
	}

	w := models.Workout{
		Name:       sw.Name,
		Duration:   sw.Duration,
		Difficulty: sw.Difficulty,
		IsTemplate: true,
	}
	if sw.Description != "" {
		w.Description = &sw.Description
	}
	created, err := cat.CreateWorkout(ctx, ownerID, w)
	if err != nil {
		return fmt.Errorf("seeding workout %q: %w", sw.Name, err)
	}

	for i, p := range sw.Exercises {
		we := models.WorkoutExercise{
			WorkoutID:  created.ID,
			ExerciseID: exerciseIDs[i],
			Sets:       p.Sets,
			Reps:       p.Reps,
			Weight:     p.Weight,
			RestTime:   p.Rest,
			Order:      i,
		}
		if _, err := cat.AddExercise(ctx, ownerID, we); err != nil {
			return fmt.Errorf("workout %q exercise %q: %w", sw.Name, p.Exercise, err)
		}
	}
	return nil
}
