// Package timer drives a live workout: elapsed time, the current exercise and
// set, and rest countdowns. It writes one log per completed set and closes
// the session exactly once.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

// State is the timer's position in the workout lifecycle.
type State int

const (
	Idle State = iota
	Running
	Resting
	Paused
	Completed // all prescribed sets done
	Ended     // stopped early by the user
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Resting:
		return "resting"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further sets can be completed.
func (s State) Terminal() bool {
	return s == Completed || s == Ended
}

// Rest durations in seconds.
const (
	DefaultRest  = models.DefaultRestSeconds
	ExerciseRest = 120 // between two exercises
)

var (
	ErrSessionUnavailable = errors.New("session unavailable")
	ErrEmptyWorkout       = errors.New("workout has no exercises")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrBusy               = errors.New("a save is in progress")
	ErrAlreadyFinalized   = errors.New("session already finalized")
	ErrNotStarted         = errors.New("workout not started")
)

// Backend is what the timer needs from the session ledger.
type Backend interface {
	GetWorkout(ctx context.Context, workoutID int64) (*models.WorkoutDetail, error)
	StartSession(ctx context.Context, workoutID int64) (*models.WorkoutSession, error)
	LogSet(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error)
	EndSession(ctx context.Context, sessionID int64, durationMinutes, calories int) (*models.UserStats, error)
}

// PendingClose is a finalize that has not reached the server yet.
type PendingClose struct {
	SessionID int64     `json:"sessionId"`
	WorkoutID int64     `json:"workoutId"`
	Duration  int       `json:"duration"`
	Calories  int       `json:"calories"`
	CreatedAt time.Time `json:"createdAt"`
}

// DurationMinutes converts elapsed seconds to whole minutes, truncating.
func DurationMinutes(elapsed int) int {
	return elapsed / 60
}

// Calories estimates energy burned at 0.15 kcal per second, rounded half up.
func Calories(elapsed int) int {
	return (elapsed*15 + 50) / 100
}

// Timer is safe for concurrent use. Tick never waits on I/O.
type Timer struct {
	backend Backend
	log     *slog.Logger
	newKey  func() uuid.UUID
	now     func() time.Time

	mu          sync.Mutex
	state       State
	beforePause State
	session     *models.WorkoutSession
	workout     models.Workout
	exercises   []models.WorkoutExerciseDetail
	index       int
	set         int
	setsDone    int
	totalSets   int
	elapsed     int
	rest        int
	setStarted  int // elapsed at the start of the current set

	starting    bool
	logging     bool
	queuedTicks int
	pendingKey  uuid.UUID

	finalizing bool
	finalized  bool
	pending    *PendingClose
	stats      *models.UserStats
}

// New creates an idle Timer.
func New(backend Backend, log *slog.Logger) *Timer {
	return &Timer{
		backend: backend,
		log:     log,
		newKey:  uuid.New,
		now:     time.Now,
		rest:    DefaultRest,
	}
}

// Start opens a session for workoutID and snapshots its exercise list. On
// failure the timer stays Idle and may be started again.
func (t *Timer) Start(ctx context.Context, workoutID int64) error {
	t.mu.Lock()
	if t.state != Idle {
		t.mu.Unlock()
		return fmt.Errorf("start from %s: %w", t.state, ErrInvalidTransition)
	}
	if t.starting {
		t.mu.Unlock()
		return ErrBusy
	}
	t.starting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.starting = false
		t.mu.Unlock()
	}()

	detail, err := t.backend.GetWorkout(ctx, workoutID)
	if err != nil {
		return fmt.Errorf("%w: loading workout %d: %w", ErrSessionUnavailable, workoutID, err)
	}
	if len(detail.Exercises) == 0 {
		return fmt.Errorf("workout %d: %w", workoutID, ErrEmptyWorkout)
	}
	ws, err := t.backend.StartSession(ctx, workoutID)
	if err != nil {
		return fmt.Errorf("%w: creating session: %w", ErrSessionUnavailable, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = ws
	t.workout = detail.Workout
	t.exercises = append([]models.WorkoutExerciseDetail(nil), detail.Exercises...)
	t.totalSets = detail.TotalSets()
	t.state = Running
	t.index, t.set, t.setsDone = 0, 1, 0
	t.elapsed, t.setStarted = 0, 0
	t.rest = DefaultRest
	t.log.Info("workout started", "session_id", ws.ID, "workout_id", workoutID, "sets", t.totalSets)
	return nil
}

// Tick advances the clock by one second.
func (t *Timer) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logging {
		t.queuedTicks++
		return
	}
	t.tickLocked()
}

func (t *Timer) tickLocked() {
	switch t.state {
	case Running:
		t.elapsed++
	case Resting:
		t.elapsed++
		t.rest--
		if t.rest <= 0 {
			t.state = Running
			t.rest = DefaultRest
		}
	}
}

// drainLocked applies ticks that arrived while a write was in flight.
func (t *Timer) drainLocked() {
	for ; t.queuedTicks > 0; t.queuedTicks-- {
		t.tickLocked()
	}
}

// CompleteSet logs the current set with its prescribed reps and weight and
// moves to the next set, exercise, or completion. If the write fails nothing
// advances and a retry reuses the same idempotency key. Completing the last
// set finalizes the session.
func (t *Timer) CompleteSet(ctx context.Context) error {
	t.mu.Lock()
	switch {
	case t.state == Idle:
		t.mu.Unlock()
		return ErrNotStarted
	case t.logging || t.finalizing:
		t.mu.Unlock()
		return ErrBusy
	case t.state != Running && t.state != Resting:
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("complete set while %s: %w", state, ErrInvalidTransition)
	}

	if t.pendingKey == uuid.Nil {
		t.pendingKey = t.newKey()
	}
	we := t.exercises[t.index]
	seconds := t.elapsed - t.setStarted
	entry := models.ExerciseLog{
		SessionID:  t.session.ID,
		ExerciseID: we.ExerciseID,
		SetNumber:  t.set,
		Reps:       we.Reps,
		Weight:     we.Weight,
		Duration:   &seconds,
		Completed:  true,
		ClientID:   t.pendingKey,
	}
	t.logging = true
	t.mu.Unlock()

	_, err := t.backend.LogSet(ctx, entry)

	t.mu.Lock()
	t.logging = false
	t.drainLocked()
	if err != nil {
		t.mu.Unlock()
		t.log.Error("set log failed", "session_id", entry.SessionID, "exercise_id", entry.ExerciseID, "set", entry.SetNumber, "error", err)
		return fmt.Errorf("logging set %d of exercise %d: %w", entry.SetNumber, entry.ExerciseID, err)
	}

	t.pendingKey = uuid.Nil
	t.setsDone++
	t.setStarted = t.elapsed
	switch {
	case t.set < we.Sets:
		t.set++
		t.state = Resting
		t.rest = we.RestSeconds()
	case t.index+1 < len(t.exercises):
		t.index++
		t.set = 1
		t.state = Resting
		t.rest = ExerciseRest
	default:
		t.state = Completed
	}
	done := t.state == Completed
	t.mu.Unlock()

	if done {
		return t.Finalize(ctx)
	}
	return nil
}

// SkipRest ends the current rest period early.
func (t *Timer) SkipRest() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Resting {
		return fmt.Errorf("skip rest while %s: %w", t.state, ErrInvalidTransition)
	}
	t.state = Running
	t.rest = DefaultRest
	return nil
}

// Pause freezes the clock, remembering whether the user was resting.
func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logging {
		return ErrBusy
	}
	if t.state != Running && t.state != Resting {
		return fmt.Errorf("pause while %s: %w", t.state, ErrInvalidTransition)
	}
	t.beforePause = t.state
	t.state = Paused
	return nil
}

// Resume restarts the clock in the state Pause left.
func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Paused {
		return fmt.Errorf("resume while %s: %w", t.state, ErrInvalidTransition)
	}
	t.state = t.beforePause
	return nil
}

// EndEarly stops the workout before all sets are done and finalizes it. It
// works from Running, Resting and Paused, but returns ErrBusy while a set
// write or finalize is in flight; callers wait for that write and call again.
func (t *Timer) EndEarly(ctx context.Context) error {
	t.mu.Lock()
	switch {
	case t.state == Idle:
		t.mu.Unlock()
		return ErrNotStarted
	case t.logging || t.finalizing:
		t.mu.Unlock()
		return ErrBusy
	case t.state.Terminal():
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("end while %s: %w", state, ErrInvalidTransition)
	}
	t.state = Ended
	t.mu.Unlock()
	return t.Finalize(ctx)
}

// Finalize closes the session with elapsed/60 minutes and the calorie
// estimate. It succeeds once; later calls return ErrAlreadyFinalized. A
// failed finalize may be retried, and PendingClose exposes it meanwhile.
func (t *Timer) Finalize(ctx context.Context) error {
	t.mu.Lock()
	switch {
	case t.finalized:
		t.mu.Unlock()
		return ErrAlreadyFinalized
	case t.finalizing:
		t.mu.Unlock()
		return ErrBusy
	case !t.state.Terminal():
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("finalize while %s: %w", state, ErrInvalidTransition)
	}
	if t.pending == nil {
		t.pending = &PendingClose{
			SessionID: t.session.ID,
			WorkoutID: t.session.WorkoutID,
			Duration:  DurationMinutes(t.elapsed),
			Calories:  Calories(t.elapsed),
			CreatedAt: t.now().UTC(),
		}
	}
	p := *t.pending
	t.finalizing = true
	t.mu.Unlock()

	st, err := t.backend.EndSession(ctx, p.SessionID, p.Duration, p.Calories)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalizing = false
	if errors.Is(err, models.ErrSessionClosed) {
		// An earlier attempt committed but its response was lost.
		t.log.Warn("session already closed on server", "session_id", p.SessionID)
		t.finalized = true
		t.pending = nil
		return nil
	}
	if err != nil {
		t.log.Error("finalize failed", "session_id", p.SessionID, "error", err)
		return fmt.Errorf("closing session %d: %w", p.SessionID, err)
	}
	t.finalized = true
	t.pending = nil
	t.stats = st
	t.log.Info("workout finalized", "session_id", p.SessionID, "state", t.state,
		"duration_min", p.Duration, "calories", p.Calories)
	return nil
}

// PendingClose returns the close that still has to reach the server, or nil.
func (t *Timer) PendingClose() *PendingClose {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return nil
	}
	p := *t.pending
	return &p
}

// Snapshot is a consistent view of the timer for display.
type Snapshot struct {
	State         State
	SessionID     int64
	WorkoutName   string
	Elapsed       int
	RestRemaining int
	ExerciseIndex int
	ExerciseCount int
	Exercise      models.WorkoutExerciseDetail
	Set           int
	SetsDone      int
	TotalSets     int
	Saving        bool
	Finalized     bool
	Stats         *models.UserStats
}

// Snapshot returns the current timer state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		State:         t.state,
		WorkoutName:   t.workout.Name,
		Elapsed:       t.elapsed,
		RestRemaining: t.rest,
		ExerciseIndex: t.index,
		ExerciseCount: len(t.exercises),
		Set:           t.set,
		SetsDone:      t.setsDone,
		TotalSets:     t.totalSets,
		Saving:        t.logging || t.finalizing,
		Finalized:     t.finalized,
		Stats:         t.stats,
	}
	if t.session != nil {
		s.SessionID = t.session.ID
	}
	if t.index < len(t.exercises) {
		s.Exercise = t.exercises[t.index]
	}
	return s
}
