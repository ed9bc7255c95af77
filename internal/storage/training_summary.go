package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/freelift/internal/models"
)

// TrainingSummary returns per-period totals for a user's finalized sessions
// started in [start, end), newest period first.
func (db *DB) TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]models.TrainingPeriod, error) {
	// Query 1: session totals grouped by period
	sessionRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, start_time AT TIME ZONE 'UTC')::date AS period,
		        COUNT(*)::int,
		        COALESCE(SUM(duration), 0)::int,
		        COALESCE(SUM(calories_burned), 0)::int
		 FROM workout_sessions
		 WHERE start_time >= $2 AND start_time < $3 AND user_id = $4
		   AND end_time IS NOT NULL AND NOT abandoned
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying session summary: %w", classify(err))
	}
	defer sessionRows.Close()

	periodMap := make(map[string]*models.TrainingPeriod)
	var periodOrder []string

	for sessionRows.Next() {
		var periodTime time.Time
		var p models.TrainingPeriod
		if err := sessionRows.Scan(&periodTime, &p.Sessions, &p.Minutes, &p.Calories); err != nil {
			return nil, fmt.Errorf("scanning session summary: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		periodMap[p.Period] = &p
		periodOrder = append(periodOrder, p.Period)
	}
	if err := sessionRows.Err(); err != nil {
		return nil, err
	}

	// Query 2: completed set volume grouped by period
	setRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, s.start_time AT TIME ZONE 'UTC')::date AS period,
		        COUNT(*)::int,
		        COALESCE(SUM(l.reps), 0)::int,
		        COALESCE(SUM(l.weight * l.reps), 0)
		 FROM exercise_logs l
		 JOIN workout_sessions s ON s.id = l.session_id
		 WHERE s.start_time >= $2 AND s.start_time < $3 AND s.user_id = $4
		   AND s.end_time IS NOT NULL AND NOT s.abandoned AND l.completed
		 GROUP BY period`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying set summary: %w", classify(err))
	}
	defer setRows.Close()

	for setRows.Next() {
		var periodTime time.Time
		var sets, reps int
		var volume float64
		if err := setRows.Scan(&periodTime, &sets, &reps, &volume); err != nil {
			return nil, fmt.Errorf("scanning set summary: %w", err)
		}
		if p, ok := periodMap[periodTime.Format("2006-01-02")]; ok {
			p.Sets, p.Reps, p.Volume = sets, reps, volume
		}
	}
	if err := setRows.Err(); err != nil {
		return nil, err
	}

	result := make([]models.TrainingPeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "month"
	}
}
