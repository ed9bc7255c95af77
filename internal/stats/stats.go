// Package stats maintains per-user cumulative workout totals and streaks.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/freelift/internal/models"
)

// UpdateFunc mutates a user's stats row inside the store's per-user
// serialization (row lock or mutex). The row is zero-valued when absent.
type UpdateFunc func(st *models.UserStats) error

// Repository is the persistence port for user stats.
type Repository interface {
	GetUserStats(ctx context.Context, userID int) (*models.UserStats, error)
	UpdateUserStats(ctx context.Context, userID int, fn UpdateFunc) (*models.UserStats, error)
}

// Completion is one closed session as seen by the aggregator.
type Completion struct {
	DurationMinutes int
	Calories        int
	CompletedAt     time.Time
}

// Apply folds c into st. Negative duration or calories count as zero.
// Streaks count consecutive calendar days in loc with at least one session.
func Apply(st *models.UserStats, c Completion, loc *time.Location) {
	st.TotalWorkouts++
	st.TotalMinutes += max(c.DurationMinutes, 0)
	st.TotalCalories += max(c.Calories, 0)

	day := calendarDay(c.CompletedAt, loc)
	switch {
	case st.LastWorkout == nil:
		st.CurrentStreak = 1
	default:
		last := calendarDay(*st.LastWorkout, loc)
		gap := daysBetween(last, day)
		switch {
		case gap < 0:
			// Late-arriving completion for an earlier day; the streak was
			// already computed past it.
		case gap == 0:
			st.CurrentStreak = max(st.CurrentStreak, 1)
		case gap == 1:
			st.CurrentStreak++
		default:
			st.CurrentStreak = 1
		}
	}
	st.LongestStreak = max(st.LongestStreak, st.CurrentStreak)

	if st.LastWorkout == nil || c.CompletedAt.After(*st.LastWorkout) {
		at := c.CompletedAt
		st.LastWorkout = &at
	}
}

// Snapshot returns st as it should be reported at now: the current streak
// reads 0 once a full calendar day has passed without a session.
func Snapshot(st models.UserStats, now time.Time, loc *time.Location) models.UserStats {
	if st.LastWorkout != nil && daysBetween(calendarDay(*st.LastWorkout, loc), calendarDay(now, loc)) > 1 {
		st.CurrentStreak = 0
	}
	return st
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b (both from calendarDay).
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Aggregator applies session completions to user stats.
type Aggregator struct {
	repo Repository
	loc  *time.Location
	log  *slog.Logger
	now  func() time.Time
}

// NewAggregator creates an Aggregator computing calendar days in loc.
func NewAggregator(repo Repository, loc *time.Location, log *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{repo: repo, loc: loc, log: log, now: time.Now}
}

// Updater returns the UpdateFunc for one completion, for stores that apply it
// in the same transaction that closes the session.
func (a *Aggregator) Updater(durationMinutes, calories int, completedAt time.Time) UpdateFunc {
	c := Completion{DurationMinutes: durationMinutes, Calories: calories, CompletedAt: completedAt}
	return func(st *models.UserStats) error {
		Apply(st, c, a.loc)
		return nil
	}
}

// ApplySessionCompletion adds one completed session to userID's totals.
func (a *Aggregator) ApplySessionCompletion(ctx context.Context, userID, durationMinutes, calories int, completedAt time.Time) (*models.UserStats, error) {
	st, err := a.repo.UpdateUserStats(ctx, userID, a.Updater(durationMinutes, calories, completedAt))
	if err != nil {
		a.log.Error("stats update failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("applying session completion: %w", err)
	}
	snap := Snapshot(*st, a.now(), a.loc)
	return &snap, nil
}

// GetUserStats returns the current snapshot, zero-valued for a user with no
// completed sessions.
func (a *Aggregator) GetUserStats(ctx context.Context, userID int) (*models.UserStats, error) {
	st, err := a.repo.GetUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading stats for user %d: %w", userID, err)
	}
	snap := Snapshot(*st, a.now(), a.loc)
	return &snap, nil
}

// Location is the zone used for calendar-day streaks.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}
