package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/stats"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, workout_id, start_time, end_time, duration, calories_burned, notes, abandoned`

func scanSession(row pgx.Row) (*models.WorkoutSession, error) {
	var s models.WorkoutSession
	if err := row.Scan(&s.ID, &s.UserID, &s.WorkoutID, &s.StartTime, &s.EndTime,
		&s.Duration, &s.CaloriesBurned, &s.Notes, &s.Abandoned); err != nil {
		return nil, fmt.Errorf("scanning session: %w", classify(err))
	}
	return &s, nil
}

// CreateSession opens a session for an existing workout.
func (db *DB) CreateSession(ctx context.Context, ws models.WorkoutSession) (*models.WorkoutSession, error) {
	row := db.Pool.QueryRow(ctx,
		`INSERT INTO workout_sessions (user_id, workout_id, start_time, notes)
		 VALUES ($1,$2,$3,$4)
		 RETURNING `+sessionColumns,
		ws.UserID, ws.WorkoutID, ws.StartTime, ws.Notes)
	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return s, nil
}

// GetSession returns a session by ID.
func (db *DB) GetSession(ctx context.Context, id int64) (*models.WorkoutSession, error) {
	s, err := scanSession(db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("getting session %d: %w", id, err)
	}
	return s, nil
}

// appendLogSQL inserts a log only while its session is open. FOR SHARE
// conflicts with the close UPDATE's row lock: an insert racing a close
// waits for it and re-checks end_time, and a close waits for an insert
// that locked the row first.
const appendLogSQL = `INSERT INTO exercise_logs (session_id, exercise_id, set_number, reps, weight, duration, completed, client_id)
	SELECT $1,$2,$3,$4,$5,$6,$7,$8
	FROM workout_sessions WHERE id = $1 AND end_time IS NULL
	FOR SHARE
	ON CONFLICT (client_id) DO NOTHING
	RETURNING id`

// AppendLog adds a set log to an open session. A log never lands after the
// close commits. A repeated client ID returns the originally stored row.
func (db *DB) AppendLog(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error) {
	var clientID *uuid.UUID
	if l.ClientID != uuid.Nil {
		clientID = &l.ClientID
		existing, err := db.logByClientID(ctx, l.ClientID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	err := db.Pool.QueryRow(ctx, appendLogSQL,
		l.SessionID, l.ExerciseID, l.SetNumber, l.Reps, l.Weight, l.Duration, l.Completed, clientID,
	).Scan(&l.ID)
	if err == nil {
		return &l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("inserting exercise log: %w", classify(err))
	}

	// No row: either a concurrent retry won the client_id race, or the
	// session is missing or closed.
	if clientID != nil {
		if existing, err := db.logByClientID(ctx, l.ClientID); err == nil {
			return existing, nil
		}
	}
	s, err := db.GetSession(ctx, l.SessionID)
	if err != nil {
		return nil, err
	}
	if s.Closed() {
		return nil, fmt.Errorf("session %d: %w", s.ID, models.ErrSessionClosed)
	}
	return nil, fmt.Errorf("inserting exercise log for session %d: no row written", s.ID)
}

const logColumns = `id, session_id, exercise_id, set_number, reps, weight, duration, completed, COALESCE(client_id, '00000000-0000-0000-0000-000000000000')`

func scanLog(row pgx.Row) (*models.ExerciseLog, error) {
	var l models.ExerciseLog
	if err := row.Scan(&l.ID, &l.SessionID, &l.ExerciseID, &l.SetNumber, &l.Reps,
		&l.Weight, &l.Duration, &l.Completed, &l.ClientID); err != nil {
		return nil, fmt.Errorf("scanning exercise log: %w", classify(err))
	}
	return &l, nil
}

func (db *DB) logByClientID(ctx context.Context, clientID uuid.UUID) (*models.ExerciseLog, error) {
	return scanLog(db.Pool.QueryRow(ctx,
		`SELECT `+logColumns+` FROM exercise_logs WHERE client_id = $1`, clientID))
}

// SessionLogs returns a session's logs in insertion order.
func (db *DB) SessionLogs(ctx context.Context, sessionID int64) ([]models.ExerciseLog, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+logColumns+` FROM exercise_logs WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise logs: %w", classify(err))
	}
	defer rows.Close()

	result := []models.ExerciseLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	return result, rows.Err()
}

// RecentSessions returns a user's latest sessions, newest first.
func (db *DB) RecentSessions(ctx context.Context, userID, limit int) ([]models.WorkoutSession, error) {
	return db.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = $1
		 ORDER BY start_time DESC, id DESC
		 LIMIT $2`, userID, limit)
}

// OpenSessions returns a user's sessions that were never closed.
func (db *DB) OpenSessions(ctx context.Context, userID int) ([]models.WorkoutSession, error) {
	return db.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = $1 AND end_time IS NULL
		 ORDER BY start_time DESC, id DESC`, userID)
}

func (db *DB) querySessions(ctx context.Context, sql string, args ...any) ([]models.WorkoutSession, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", classify(err))
	}
	defer rows.Close()

	result := []models.WorkoutSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// CloseSession finalizes an open session and applies fn to the owner's
// stats row in the same transaction.
func (db *DB) CloseSession(ctx context.Context, id int64, userID int, c models.SessionClose, fn stats.UpdateFunc) (*models.WorkoutSession, *models.UserStats, error) {
	var closed *models.WorkoutSession
	var st *models.UserStats
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		closed, err = scanSession(tx.QueryRow(ctx,
			`UPDATE workout_sessions
			 SET end_time = $3, duration = $4, calories_burned = $5
			 WHERE id = $1 AND user_id = $2 AND end_time IS NULL
			 RETURNING `+sessionColumns,
			id, userID, c.EndTime, c.Duration, c.Calories))
		if errors.Is(err, models.ErrNotFound) {
			return closedOrMissing(ctx, tx, id, userID)
		}
		if err != nil {
			return fmt.Errorf("closing session %d: %w", id, err)
		}
		st, err = updateStatsTx(ctx, tx, userID, fn)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return closed, st, nil
}

// AbandonSession closes an open session without touching stats.
func (db *DB) AbandonSession(ctx context.Context, id int64, userID int, at time.Time) (*models.WorkoutSession, error) {
	var abandoned *models.WorkoutSession
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		abandoned, err = scanSession(tx.QueryRow(ctx,
			`UPDATE workout_sessions
			 SET end_time = $3, abandoned = TRUE
			 WHERE id = $1 AND user_id = $2 AND end_time IS NULL
			 RETURNING `+sessionColumns,
			id, userID, at))
		if errors.Is(err, models.ErrNotFound) {
			return closedOrMissing(ctx, tx, id, userID)
		}
		if err != nil {
			return fmt.Errorf("abandoning session %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return abandoned, nil
}

// closedOrMissing explains why a conditional close matched no row.
func closedOrMissing(ctx context.Context, tx pgx.Tx, id int64, userID int) error {
	var closed bool
	err := tx.QueryRow(ctx,
		`SELECT end_time IS NOT NULL FROM workout_sessions WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&closed)
	if err != nil {
		return fmt.Errorf("session %d: %w", id, classify(err))
	}
	if closed {
		return fmt.Errorf("session %d: %w", id, models.ErrSessionClosed)
	}
	return fmt.Errorf("session %d: %w", id, models.ErrConflict)
}
