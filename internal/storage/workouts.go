package storage

import (
	"context"
	"fmt"

	"github.com/claude/freelift/internal/models"
	"github.com/jackc/pgx/v5"
)

const exerciseColumns = `e.id, e.name, e.description, e.instructions, e.muscle_groups, e.equipment,
	e.difficulty, e.image_url, e.video_url, e.tips`

// ListExercises returns exercises ordered by ID. An empty muscleGroup or
// query disables that filter.
func (db *DB) ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+exerciseColumns+`
		 FROM exercises e
		 WHERE ($1 = '' OR lower($1) = ANY(e.muscle_groups))
		   AND ($2 = '' OR e.name ILIKE '%' || $2 || '%'
		        OR e.description ILIKE '%' || $2 || '%'
		        OR e.equipment ILIKE '%' || $2 || '%'
		        OR array_to_string(e.muscle_groups, ' ') ILIKE '%' || $2 || '%')
		 ORDER BY e.id`,
		muscleGroup, query)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", classify(err))
	}
	defer rows.Close()

	result := []models.Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// GetExercise returns an exercise by ID.
func (db *DB) GetExercise(ctx context.Context, id int64) (*models.Exercise, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises e WHERE e.id = $1`, id)
	e, err := scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("getting exercise %d: %w", id, err)
	}
	return e, nil
}

// CreateExercise inserts e and returns it with its new ID.
func (db *DB) CreateExercise(ctx context.Context, e models.Exercise) (*models.Exercise, error) {
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO exercises (name, description, instructions, muscle_groups, equipment,
		 difficulty, image_url, video_url, tips)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		e.Name, e.Description, nonNil(e.Instructions), e.MuscleGroups, e.Equipment,
		string(e.Difficulty), e.ImageURL, e.VideoURL, nonNil(e.Tips),
	).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting exercise: %w", classify(err))
	}
	return &e, nil
}

func scanExercise(row pgx.Row) (*models.Exercise, error) {
	var e models.Exercise
	var difficulty string
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Instructions, &e.MuscleGroups,
		&e.Equipment, &difficulty, &e.ImageURL, &e.VideoURL, &e.Tips); err != nil {
		return nil, fmt.Errorf("scanning exercise: %w", classify(err))
	}
	e.Difficulty = models.Difficulty(difficulty)
	return &e, nil
}

// ListWorkouts returns a user's workouts and all templates, newest first.
func (db *DB) ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name, description, duration, difficulty, is_template, created_at
		 FROM workouts WHERE user_id = $1 OR is_template ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", classify(err))
	}
	defer rows.Close()

	result := []models.Workout{}
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

// GetWorkout returns a workout by ID.
func (db *DB) GetWorkout(ctx context.Context, id int64) (*models.Workout, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, description, duration, difficulty, is_template, created_at
		 FROM workouts WHERE id = $1`, id)
	w, err := scanWorkout(row)
	if err != nil {
		return nil, fmt.Errorf("getting workout %d: %w", id, err)
	}
	return w, nil
}

// CreateWorkout inserts w and returns it with its ID and creation time.
func (db *DB) CreateWorkout(ctx context.Context, w models.Workout) (*models.Workout, error) {
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO workouts (user_id, name, description, duration, difficulty, is_template)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id, created_at`,
		w.UserID, w.Name, w.Description, w.Duration, string(w.Difficulty), w.IsTemplate,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting workout: %w", classify(err))
	}
	return &w, nil
}

func scanWorkout(row pgx.Row) (*models.Workout, error) {
	var w models.Workout
	var difficulty string
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.Duration,
		&difficulty, &w.IsTemplate, &w.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning workout: %w", classify(err))
	}
	w.Difficulty = models.Difficulty(difficulty)
	return &w, nil
}

// AddWorkoutExercise appends a prescription to a workout. A reused order
// index is a conflict; a missing workout or exercise is not found.
func (db *DB) AddWorkoutExercise(ctx context.Context, we models.WorkoutExercise) (*models.WorkoutExercise, error) {
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO workout_exercises (workout_id, exercise_id, sets, reps, weight, rest_time, "order")
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING id`,
		we.WorkoutID, we.ExerciseID, we.Sets, we.Reps, we.Weight, we.RestTime, we.Order,
	).Scan(&we.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting workout exercise: %w", classify(err))
	}
	return &we, nil
}

// GetWorkoutDetail returns a workout with its exercises sorted by order.
func (db *DB) GetWorkoutDetail(ctx context.Context, id int64) (*models.WorkoutDetail, error) {
	w, err := db.GetWorkout(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT we.id, we.workout_id, we.exercise_id, we.sets, we.reps, we.weight, we.rest_time, we."order",
		        `+exerciseColumns+`
		 FROM workout_exercises we
		 JOIN exercises e ON e.id = we.exercise_id
		 WHERE we.workout_id = $1
		 ORDER BY we."order"`, id)
	if err != nil {
		return nil, fmt.Errorf("querying workout exercises: %w", classify(err))
	}
	defer rows.Close()

	detail := &models.WorkoutDetail{Workout: *w, Exercises: []models.WorkoutExerciseDetail{}}
	for rows.Next() {
		var d models.WorkoutExerciseDetail
		var difficulty string
		e := &d.Exercise
		if err := rows.Scan(&d.ID, &d.WorkoutID, &d.ExerciseID, &d.Sets, &d.Reps, &d.Weight, &d.RestTime, &d.Order,
			&e.ID, &e.Name, &e.Description, &e.Instructions, &e.MuscleGroups,
			&e.Equipment, &difficulty, &e.ImageURL, &e.VideoURL, &e.Tips); err != nil {
			return nil, fmt.Errorf("scanning workout exercise: %w", err)
		}
		e.Difficulty = models.Difficulty(difficulty)
		detail.Exercises = append(detail.Exercises, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return detail, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
