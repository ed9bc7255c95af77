package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/stats"
	"github.com/jackc/pgx/v5"
)

// GetUserStats returns the user's totals, zero-valued when no row exists.
func (db *DB) GetUserStats(ctx context.Context, userID int) (*models.UserStats, error) {
	st := &models.UserStats{UserID: userID}
	err := db.Pool.QueryRow(ctx,
		`SELECT total_workouts, total_minutes, total_calories, current_streak, longest_streak, last_workout
		 FROM user_stats WHERE user_id = $1`, userID,
	).Scan(&st.TotalWorkouts, &st.TotalMinutes, &st.TotalCalories, &st.CurrentStreak, &st.LongestStreak, &st.LastWorkout)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting stats for user %d: %w", userID, classify(err))
	}
	return st, nil
}

// UpdateUserStats runs fn on the user's row under a row lock, creating the
// row on first use.
func (db *DB) UpdateUserStats(ctx context.Context, userID int, fn stats.UpdateFunc) (*models.UserStats, error) {
	var st *models.UserStats
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		st, err = updateStatsTx(ctx, tx, userID, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func updateStatsTx(ctx context.Context, tx pgx.Tx, userID int, fn stats.UpdateFunc) (*models.UserStats, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, fmt.Errorf("creating stats row: %w", classify(err))
	}

	st := &models.UserStats{UserID: userID}
	err := tx.QueryRow(ctx,
		`SELECT total_workouts, total_minutes, total_calories, current_streak, longest_streak, last_workout
		 FROM user_stats WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&st.TotalWorkouts, &st.TotalMinutes, &st.TotalCalories, &st.CurrentStreak, &st.LongestStreak, &st.LastWorkout)
	if err != nil {
		return nil, fmt.Errorf("locking stats row: %w", classify(err))
	}

	if err := fn(st); err != nil {
		return nil, fmt.Errorf("updating stats: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE user_stats
		 SET total_workouts = $2, total_minutes = $3, total_calories = $4,
		     current_streak = $5, longest_streak = $6, last_workout = $7
		 WHERE user_id = $1`,
		userID, st.TotalWorkouts, st.TotalMinutes, st.TotalCalories, st.CurrentStreak, st.LongestStreak, st.LastWorkout)
	if err != nil {
		return nil, fmt.Errorf("writing stats row: %w", classify(err))
	}
	return st, nil
}
