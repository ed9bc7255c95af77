// Package pending persists session closes the server has not acknowledged,
// so the timer can retry or abandon them on the next launch.
package pending

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/freelift/internal/timer"
	_ "modernc.org/sqlite"
)

// Store is a small SQLite file of pending closes keyed by session ID.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite state database at dir/state.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pending_closes (
		session_id INTEGER PRIMARY KEY,
		workout_id INTEGER NOT NULL,
		duration   INTEGER NOT NULL,
		calories   INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &Store{db: db}, nil
}

// Save records p, replacing an earlier entry for the same session.
func (s *Store) Save(p timer.PendingClose) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO pending_closes (session_id, workout_id, duration, calories, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.SessionID, p.WorkoutID, p.Duration, p.Calories, p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving pending close for session %d: %w", p.SessionID, err)
	}
	return nil
}

// List returns pending closes, oldest first.
func (s *Store) List() ([]timer.PendingClose, error) {
	rows, err := s.db.Query(
		`SELECT session_id, workout_id, duration, calories, created_at
		 FROM pending_closes ORDER BY created_at, session_id`)
	if err != nil {
		return nil, fmt.Errorf("querying pending closes: %w", err)
	}
	defer rows.Close()

	var result []timer.PendingClose
	for rows.Next() {
		var p timer.PendingClose
		var created time.Time
		if err := rows.Scan(&p.SessionID, &p.WorkoutID, &p.Duration, &p.Calories, &created); err != nil {
			return nil, fmt.Errorf("scanning pending close: %w", err)
		}
		p.CreatedAt = created.UTC()
		result = append(result, p)
	}
	return result, rows.Err()
}

// Delete forgets the pending close for sessionID.
func (s *Store) Delete(sessionID int64) error {
	if _, err := s.db.Exec(`DELETE FROM pending_closes WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting pending close for session %d: %w", sessionID, err)
	}
	return nil
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.db.Close()
}
