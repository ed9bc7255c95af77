// Package memstore implements the catalog, ledger and stats repositories in
// memory, for development and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/stats"
	"github.com/google/uuid"
)

// Store holds id-indexed tables. Sequences belong to the Store, so two
// stores never share ids.
type Store struct {
	mu sync.Mutex

	users            map[int]models.User
	exercises        map[int64]models.Exercise
	workouts         map[int64]models.Workout
	workoutExercises map[int64]models.WorkoutExercise
	sessions         map[int64]models.WorkoutSession
	logs             map[int64]models.ExerciseLog
	logsByClientID   map[uuid.UUID]int64
	userStats        map[int]models.UserStats

	userSeq            atomic.Int64
	exerciseSeq        atomic.Int64
	workoutSeq         atomic.Int64
	workoutExerciseSeq atomic.Int64
	sessionSeq         atomic.Int64
	logSeq             atomic.Int64

	// statsLocks serializes read-modify-write of one user's stats row.
	statsLocks sync.Map // int -> *sync.Mutex

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:            make(map[int]models.User),
		exercises:        make(map[int64]models.Exercise),
		workouts:         make(map[int64]models.Workout),
		workoutExercises: make(map[int64]models.WorkoutExercise),
		sessions:         make(map[int64]models.WorkoutSession),
		logs:             make(map[int64]models.ExerciseLog),
		logsByClientID:   make(map[uuid.UUID]int64),
		userStats:        make(map[int]models.UserStats),
		now:              time.Now,
	}
}

func (s *Store) userLock(userID int) *sync.Mutex {
	l, _ := s.statsLocks.LoadOrStore(userID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// --- Users ---

// GetOrCreateUser finds or creates a user by login and returns its ID.
func (s *Store) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.Login == login {
			if displayName != "" {
				u.DisplayName = displayName
				s.users[id] = u
			}
			return id, nil
		}
	}
	id := int(s.userSeq.Add(1))
	s.users[id] = models.User{ID: id, Login: login, DisplayName: displayName, CreatedAt: s.now().UTC()}
	return id, nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return &u, nil
}

// --- Catalog ---

// ListExercises returns exercises ordered by ID, optionally filtered by
// muscle group and a substring query.
func (s *Store) ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Exercise, 0, len(s.exercises))
	for _, e := range s.exercises {
		if muscleGroup != "" && !e.HasMuscleGroup(muscleGroup) {
			continue
		}
		if query != "" && !e.Matches(query) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetExercise returns an exercise by ID.
func (s *Store) GetExercise(ctx context.Context, id int64) (*models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exercises[id]
	if !ok {
		return nil, fmt.Errorf("exercise %d: %w", id, models.ErrNotFound)
	}
	return &e, nil
}

// CreateExercise stores e and returns it with its new ID.
func (s *Store) CreateExercise(ctx context.Context, e models.Exercise) (*models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.exerciseSeq.Add(1)
	s.exercises[e.ID] = e
	return &e, nil
}

// ListWorkouts returns a user's workouts and all templates, newest first.
func (s *Store) ListWorkouts(ctx context.Context, userID int) ([]models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []models.Workout{}
	for _, w := range s.workouts {
		if w.UserID == userID || w.IsTemplate {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// GetWorkout returns a workout by ID.
func (s *Store) GetWorkout(ctx context.Context, id int64) (*models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workouts[id]
	if !ok {
		return nil, fmt.Errorf("workout %d: %w", id, models.ErrNotFound)
	}
	return &w, nil
}

// CreateWorkout stores w and returns it with its ID and creation time.
func (s *Store) CreateWorkout(ctx context.Context, w models.Workout) (*models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.ID = s.workoutSeq.Add(1)
	w.CreatedAt = s.now().UTC()
	s.workouts[w.ID] = w
	return &w, nil
}

// AddWorkoutExercise appends a prescription to a workout. The order index
// must be unique within the workout.
func (s *Store) AddWorkoutExercise(ctx context.Context, we models.WorkoutExercise) (*models.WorkoutExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workouts[we.WorkoutID]; !ok {
		return nil, fmt.Errorf("workout %d: %w", we.WorkoutID, models.ErrNotFound)
	}
	if _, ok := s.exercises[we.ExerciseID]; !ok {
		return nil, fmt.Errorf("exercise %d: %w", we.ExerciseID, models.ErrNotFound)
	}
	for _, existing := range s.workoutExercises {
		if existing.WorkoutID == we.WorkoutID && existing.Order == we.Order {
			return nil, fmt.Errorf("order %d already used in workout %d: %w", we.Order, we.WorkoutID, models.ErrConflict)
		}
	}
	we.ID = s.workoutExerciseSeq.Add(1)
	s.workoutExercises[we.ID] = we
	return &we, nil
}

// GetWorkoutDetail returns a workout with its exercises sorted by order.
func (s *Store) GetWorkoutDetail(ctx context.Context, id int64) (*models.WorkoutDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workouts[id]
	if !ok {
		return nil, fmt.Errorf("workout %d: %w", id, models.ErrNotFound)
	}
	detail := &models.WorkoutDetail{Workout: w, Exercises: []models.WorkoutExerciseDetail{}}
	for _, we := range s.workoutExercises {
		if we.WorkoutID != id {
			continue
		}
		e, ok := s.exercises[we.ExerciseID]
		if !ok {
			continue
		}
		detail.Exercises = append(detail.Exercises, models.WorkoutExerciseDetail{WorkoutExercise: we, Exercise: e})
	}
	sort.Slice(detail.Exercises, func(i, j int) bool {
		return detail.Exercises[i].Order < detail.Exercises[j].Order
	})
	return detail, nil
}

// --- Ledger ---

// CreateSession opens a session for an existing workout.
func (s *Store) CreateSession(ctx context.Context, ws models.WorkoutSession) (*models.WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workouts[ws.WorkoutID]; !ok {
		return nil, fmt.Errorf("workout %d: %w", ws.WorkoutID, models.ErrNotFound)
	}
	ws.ID = s.sessionSeq.Add(1)
	ws.StartTime = ws.StartTime.UTC()
	s.sessions[ws.ID] = ws
	return &ws, nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id int64) (*models.WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, models.ErrNotFound)
	}
	return &ws, nil
}

// AppendLog adds a set log to an open session. A repeated ClientID returns
// the row stored by the first call.
func (s *Store) AppendLog(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ClientID != uuid.Nil {
		if id, ok := s.logsByClientID[l.ClientID]; ok {
			existing := s.logs[id]
			return &existing, nil
		}
	}
	ws, ok := s.sessions[l.SessionID]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", l.SessionID, models.ErrNotFound)
	}
	if ws.Closed() {
		return nil, fmt.Errorf("session %d: %w", l.SessionID, models.ErrSessionClosed)
	}
	if _, ok := s.exercises[l.ExerciseID]; !ok {
		return nil, fmt.Errorf("exercise %d: %w", l.ExerciseID, models.ErrNotFound)
	}
	l.ID = s.logSeq.Add(1)
	s.logs[l.ID] = l
	if l.ClientID != uuid.Nil {
		s.logsByClientID[l.ClientID] = l.ID
	}
	return &l, nil
}

// SessionLogs returns a session's logs in insertion order.
func (s *Store) SessionLogs(ctx context.Context, sessionID int64) ([]models.ExerciseLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []models.ExerciseLog{}
	for _, l := range s.logs {
		if l.SessionID == sessionID {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// RecentSessions returns a user's latest sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, userID, limit int) ([]models.WorkoutSession, error) {
	return s.filterSessions(userID, limit, func(models.WorkoutSession) bool { return true }), nil
}

// OpenSessions returns a user's sessions that were never closed.
func (s *Store) OpenSessions(ctx context.Context, userID int) ([]models.WorkoutSession, error) {
	return s.filterSessions(userID, 0, func(ws models.WorkoutSession) bool { return !ws.Closed() }), nil
}

func (s *Store) filterSessions(userID, limit int, keep func(models.WorkoutSession) bool) []models.WorkoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []models.WorkoutSession{}
	for _, ws := range s.sessions {
		if ws.UserID == userID && keep(ws) {
			result = append(result, ws)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.After(result[j].StartTime)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// CloseSession finalizes an open session and applies fn to the owner's stats
// as one atomic step.
func (s *Store) CloseSession(ctx context.Context, id int64, userID int, c models.SessionClose, fn stats.UpdateFunc) (*models.WorkoutSession, *models.UserStats, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.sessions[id]
	if !ok || ws.UserID != userID {
		return nil, nil, fmt.Errorf("session %d: %w", id, models.ErrNotFound)
	}
	if ws.Closed() {
		return nil, nil, fmt.Errorf("session %d: %w", id, models.ErrSessionClosed)
	}

	st := s.statsRow(userID)
	if err := fn(&st); err != nil {
		return nil, nil, fmt.Errorf("updating stats: %w", err)
	}

	end := c.EndTime.UTC()
	duration, calories := c.Duration, c.Calories
	ws.EndTime = &end
	ws.Duration = &duration
	ws.CaloriesBurned = &calories
	s.sessions[id] = ws
	s.userStats[userID] = st
	return &ws, &st, nil
}

// AbandonSession closes an open session without touching stats.
func (s *Store) AbandonSession(ctx context.Context, id int64, userID int, at time.Time) (*models.WorkoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.sessions[id]
	if !ok || ws.UserID != userID {
		return nil, fmt.Errorf("session %d: %w", id, models.ErrNotFound)
	}
	if ws.Closed() {
		return nil, fmt.Errorf("session %d: %w", id, models.ErrSessionClosed)
	}
	end := at.UTC()
	ws.EndTime = &end
	ws.Abandoned = true
	s.sessions[id] = ws
	return &ws, nil
}

// TrainingSummary aggregates a user's finalized sessions started in
// [start, end) per bucket, newest period first.
func (s *Store) TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]models.TrainingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	periods := make(map[string]*models.TrainingPeriod)
	sessionPeriod := make(map[int64]string)
	for _, ws := range s.sessions {
		if ws.UserID != userID || !ws.Closed() || ws.Abandoned {
			continue
		}
		if ws.StartTime.Before(start) || !ws.StartTime.Before(end) {
			continue
		}
		key := stats.PeriodStart(ws.StartTime, bucket).Format("2006-01-02")
		p, ok := periods[key]
		if !ok {
			p = &models.TrainingPeriod{Period: key}
			periods[key] = p
		}
		p.Sessions++
		if ws.Duration != nil {
			p.Minutes += *ws.Duration
		}
		if ws.CaloriesBurned != nil {
			p.Calories += *ws.CaloriesBurned
		}
		sessionPeriod[ws.ID] = key
	}
	for _, l := range s.logs {
		key, ok := sessionPeriod[l.SessionID]
		if !ok || !l.Completed {
			continue
		}
		p := periods[key]
		p.Sets++
		p.Reps += l.Reps
		if l.Weight != nil {
			p.Volume += *l.Weight * float64(l.Reps)
		}
	}

	result := make([]models.TrainingPeriod, 0, len(periods))
	for _, p := range periods {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return strings.Compare(result[i].Period, result[j].Period) > 0 })
	return result, nil
}

// --- Stats ---

// statsRow returns the user's row or a zero row. Caller holds s.mu.
func (s *Store) statsRow(userID int) models.UserStats {
	st, ok := s.userStats[userID]
	if !ok {
		st = models.UserStats{UserID: userID}
	}
	return st
}

// GetUserStats returns the user's totals, zero-valued when none exist.
func (s *Store) GetUserStats(ctx context.Context, userID int) (*models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.statsRow(userID)
	return &st, nil
}

// UpdateUserStats runs fn on the user's row while holding that user's lock,
// creating the row on first use.
func (s *Store) UpdateUserStats(ctx context.Context, userID int, fn stats.UpdateFunc) (*models.UserStats, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	st := s.statsRow(userID)
	s.mu.Unlock()

	if err := fn(&st); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.userStats[userID] = st
	s.mu.Unlock()
	return &st, nil
}
