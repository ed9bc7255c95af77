package pending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/freelift/internal/models"
)

// Closer ends sessions on the server.
type Closer interface {
	EndSession(ctx context.Context, sessionID int64, durationMinutes, calories int) (*models.UserStats, error)
}

// Flush replays every pending close, oldest first, and forgets the ones the
// server accepted or had already applied. It returns how many were cleared;
// failures stay stored for the next attempt.
func (s *Store) Flush(ctx context.Context, c Closer, log *slog.Logger) (int, error) {
	list, err := s.List()
	if err != nil {
		return 0, err
	}

	var (
		cleared int
		errs    []error
	)
	for _, p := range list {
		_, err := c.EndSession(ctx, p.SessionID, p.Duration, p.Calories)
		switch {
		case err == nil:
			log.Info("pending close delivered", "session_id", p.SessionID, "duration_min", p.Duration)
		case errors.Is(err, models.ErrSessionClosed), errors.Is(err, models.ErrNotFound):
			log.Warn("dropping pending close", "session_id", p.SessionID, "reason", err)
		default:
			errs = append(errs, fmt.Errorf("session %d: %w", p.SessionID, err))
			continue
		}
		if err := s.Delete(p.SessionID); err != nil {
			errs = append(errs, err)
			continue
		}
		cleared++
	}
	return cleared, errors.Join(errs...)
}
