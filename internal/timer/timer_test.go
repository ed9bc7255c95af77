package timer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/claude/freelift/internal/models"
	"github.com/google/uuid"
)

type mockBackend struct {
	mu      sync.Mutex
	logs    []models.ExerciseLog
	ends    int
	getFn   func(ctx context.Context, workoutID int64) (*models.WorkoutDetail, error)
	startFn func(ctx context.Context, workoutID int64) (*models.WorkoutSession, error)
	logFn   func(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error)
	endFn   func(ctx context.Context, sessionID int64, duration, calories int) (*models.UserStats, error)
}

func (m *mockBackend) GetWorkout(ctx context.Context, workoutID int64) (*models.WorkoutDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, workoutID)
	}
	return workout(2, 2), nil
}

func (m *mockBackend) StartSession(ctx context.Context, workoutID int64) (*models.WorkoutSession, error) {
	if m.startFn != nil {
		return m.startFn(ctx, workoutID)
	}
	return &models.WorkoutSession{ID: 9, UserID: 1, WorkoutID: workoutID}, nil
}

func (m *mockBackend) LogSet(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error) {
	if m.logFn != nil {
		if _, err := m.logFn(ctx, l); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return &l, nil
}

func (m *mockBackend) EndSession(ctx context.Context, sessionID int64, duration, calories int) (*models.UserStats, error) {
	m.mu.Lock()
	m.ends++
	m.mu.Unlock()
	if m.endFn != nil {
		return m.endFn(ctx, sessionID, duration, calories)
	}
	return &models.UserStats{TotalWorkouts: 1, TotalMinutes: duration, TotalCalories: calories}, nil
}

// workout builds a workout with the given set counts per exercise.
func workout(sets ...int) *models.WorkoutDetail {
	d := &models.WorkoutDetail{Workout: models.Workout{ID: 1, Name: "Test"}}
	for i, n := range sets {
		rest := 30
		d.Exercises = append(d.Exercises, models.WorkoutExerciseDetail{
			WorkoutExercise: models.WorkoutExercise{ExerciseID: int64(i + 1), Sets: n, Reps: 10, RestTime: &rest, Order: i},
		})
	}
	return d
}

func newTimer(t *testing.T, b Backend) *Timer {
	t.Helper()
	return New(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func started(t *testing.T, b Backend) *Timer {
	t.Helper()
	tm := newTimer(t, b)
	if err := tm.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return tm
}

func TestStartFailureStaysIdle(t *testing.T) {
	tests := []struct {
		name    string
		backend *mockBackend
		want    error
	}{
		{"workout load fails", &mockBackend{getFn: func(context.Context, int64) (*models.WorkoutDetail, error) {
			return nil, models.ErrUnavailable
		}}, ErrSessionUnavailable},
		{"session create fails", &mockBackend{startFn: func(context.Context, int64) (*models.WorkoutSession, error) {
			return nil, models.ErrUnavailable
		}}, ErrSessionUnavailable},
		{"empty workout", &mockBackend{getFn: func(context.Context, int64) (*models.WorkoutDetail, error) {
			return workout(), nil
		}}, ErrEmptyWorkout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := newTimer(t, tt.backend)
			err := tm.Start(context.Background(), 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if s := tm.Snapshot().State; s != Idle {
				t.Errorf("state = %s, want idle", s)
			}
		})
	}
}

func TestStartTwice(t *testing.T) {
	tm := started(t, &mockBackend{})
	if err := tm.Start(context.Background(), 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Start err = %v, want ErrInvalidTransition", err)
	}
}

func TestLogsEveryPrescribedSetInOrder(t *testing.T) {
	b := &mockBackend{getFn: func(context.Context, int64) (*models.WorkoutDetail, error) {
		return workout(3, 1, 2), nil
	}}
	tm := started(t, b)
	for i := 0; i < 6; i++ {
		if err := tm.CompleteSet(context.Background()); err != nil {
			t.Fatalf("CompleteSet %d: %v", i, err)
		}
	}

	if len(b.logs) != 6 {
		t.Fatalf("logs = %d, want 6", len(b.logs))
	}
	for i := 1; i < len(b.logs); i++ {
		prev, cur := b.logs[i-1], b.logs[i]
		if cur.ExerciseID < prev.ExerciseID || (cur.ExerciseID == prev.ExerciseID && cur.SetNumber <= prev.SetNumber) {
			t.Errorf("log %d (%d,%d) not after (%d,%d)", i, cur.ExerciseID, cur.SetNumber, prev.ExerciseID, prev.SetNumber)
		}
	}
	keys := make(map[uuid.UUID]bool)
	for _, l := range b.logs {
		if keys[l.ClientID] {
			t.Errorf("client id %s reused", l.ClientID)
		}
		keys[l.ClientID] = true
	}
	if s := tm.Snapshot(); s.State != Completed || !s.Finalized {
		t.Errorf("state = %s finalized=%v, want completed and finalized", s.State, s.Finalized)
	}
	if b.ends != 1 {
		t.Errorf("EndSession calls = %d, want 1", b.ends)
	}
}

func TestRestDurations(t *testing.T) {
	tm := started(t, &mockBackend{})
	ctx := context.Background()

	tm.CompleteSet(ctx)
	if s := tm.Snapshot(); s.State != Resting || s.RestRemaining != 30 || s.Set != 2 {
		t.Errorf("after set 1: %+v, want resting 30s on set 2", s)
	}
	tm.CompleteSet(ctx)
	if s := tm.Snapshot(); s.State != Resting || s.RestRemaining != ExerciseRest || s.ExerciseIndex != 1 || s.Set != 1 {
		t.Errorf("after exercise 1: %+v, want resting %ds on exercise 2", s, ExerciseRest)
	}
}

func TestRestCountdownReturnsToRunning(t *testing.T) {
	tm := started(t, &mockBackend{})
	tm.CompleteSet(context.Background())
	for i := 0; i < 30; i++ {
		tm.Tick()
	}
	s := tm.Snapshot()
	if s.State != Running || s.RestRemaining != DefaultRest {
		t.Errorf("after rest: state=%s rest=%d, want running %d", s.State, s.RestRemaining, DefaultRest)
	}
	if s.Elapsed != 30 {
		t.Errorf("elapsed = %d, want 30", s.Elapsed)
	}
}

func TestSkipRestAlwaysResetsToDefault(t *testing.T) {
	for _, ticks := range []int{0, 1, 17, 29} {
		tm := started(t, &mockBackend{})
		tm.CompleteSet(context.Background())
		for i := 0; i < ticks; i++ {
			tm.Tick()
		}
		if err := tm.SkipRest(); err != nil {
			t.Fatalf("SkipRest after %d ticks: %v", ticks, err)
		}
		if s := tm.Snapshot(); s.State != Running || s.RestRemaining != DefaultRest {
			t.Errorf("after %d ticks: state=%s rest=%d", ticks, s.State, s.RestRemaining)
		}
	}

	tm := started(t, &mockBackend{})
	if err := tm.SkipRest(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SkipRest while running err = %v, want ErrInvalidTransition", err)
	}
}

func TestPauseResumePreservesState(t *testing.T) {
	tm := started(t, &mockBackend{})
	tm.CompleteSet(context.Background())
	tm.Tick()
	tm.Tick()

	if err := tm.Pause(); err != nil {
		t.Fatal(err)
	}
	before := tm.Snapshot()
	for i := 0; i < 10; i++ {
		tm.Tick()
	}
	if err := tm.CompleteSet(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("CompleteSet while paused err = %v", err)
	}
	if err := tm.Resume(); err != nil {
		t.Fatal(err)
	}
	after := tm.Snapshot()
	if after.State != Resting || after.Elapsed != before.Elapsed || after.RestRemaining != before.RestRemaining {
		t.Errorf("resume: %+v, want resting with elapsed %d rest %d", after, before.Elapsed, before.RestRemaining)
	}
	if err := tm.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Resume err = %v", err)
	}
}

func TestFailedLogDoesNotAdvance(t *testing.T) {
	fail := true
	b := &mockBackend{}
	var keys []uuid.UUID
	b.logFn = func(_ context.Context, l models.ExerciseLog) (*models.ExerciseLog, error) {
		keys = append(keys, l.ClientID)
		if fail {
			return nil, models.ErrUnavailable
		}
		return &l, nil
	}
	tm := started(t, b)

	err := tm.CompleteSet(context.Background())
	if !errors.Is(err, models.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if s := tm.Snapshot(); s.State != Running || s.Set != 1 || s.SetsDone != 0 {
		t.Errorf("after failure: %+v, want unchanged", s)
	}

	fail = false
	if err := tm.CompleteSet(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != keys[1] {
		t.Errorf("retry keys = %v, want the same key twice", keys)
	}
	if s := tm.Snapshot(); s.Set != 2 {
		t.Errorf("set = %d, want 2", s.Set)
	}
}

func TestTicksDuringWriteAreQueued(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &mockBackend{logFn: func(_ context.Context, l models.ExerciseLog) (*models.ExerciseLog, error) {
		close(entered)
		<-release
		return &l, nil
	}}
	tm := started(t, b)

	done := make(chan error)
	go func() { done <- tm.CompleteSet(context.Background()) }()
	<-entered

	tm.Tick()
	tm.Tick()
	tm.Tick()
	if s := tm.Snapshot(); s.Elapsed != 0 || !s.Saving {
		t.Errorf("during write: elapsed=%d saving=%v, want 0 and true", s.Elapsed, s.Saving)
	}
	if err := tm.Pause(); !errors.Is(err, ErrBusy) {
		t.Errorf("Pause during write err = %v, want ErrBusy", err)
	}
	if err := tm.CompleteSet(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("CompleteSet during write err = %v, want ErrBusy", err)
	}
	if err := tm.EndEarly(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("EndEarly during write err = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	s := tm.Snapshot()
	if s.Elapsed != 3 {
		t.Errorf("elapsed = %d, want 3", s.Elapsed)
	}
	if s.State != Resting || s.RestRemaining != 30 {
		t.Errorf("state=%s rest=%d, want resting 30", s.State, s.RestRemaining)
	}
}

func TestFinalizeDurationAndCalories(t *testing.T) {
	var gotDuration, gotCalories int
	b := &mockBackend{endFn: func(_ context.Context, _ int64, d, c int) (*models.UserStats, error) {
		gotDuration, gotCalories = d, c
		return &models.UserStats{}, nil
	}}
	tm := started(t, b)
	for i := 0; i < 125; i++ {
		tm.Tick()
	}
	if err := tm.EndEarly(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotDuration != 2 || gotCalories != 19 {
		t.Errorf("close = %d min %d cal, want 2 min 19 cal", gotDuration, gotCalories)
	}
	if s := tm.Snapshot().State; s != Ended {
		t.Errorf("state = %s, want ended", s)
	}
}

func TestCaloriesRounding(t *testing.T) {
	tests := []struct{ elapsed, minutes, calories int }{
		{0, 0, 0},
		{10, 0, 2},
		{59, 0, 9},
		{60, 1, 9},
		{125, 2, 19},
		{3600, 60, 540},
	}
	for _, tt := range tests {
		if got := DurationMinutes(tt.elapsed); got != tt.minutes {
			t.Errorf("DurationMinutes(%d) = %d, want %d", tt.elapsed, got, tt.minutes)
		}
		if got := Calories(tt.elapsed); got != tt.calories {
			t.Errorf("Calories(%d) = %d, want %d", tt.elapsed, got, tt.calories)
		}
	}
}

func TestSecondFinalizeRejected(t *testing.T) {
	b := &mockBackend{}
	tm := started(t, b)
	if err := tm.EndEarly(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := tm.Finalize(context.Background()); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("second Finalize err = %v, want ErrAlreadyFinalized", err)
	}
	if b.ends != 1 {
		t.Errorf("EndSession calls = %d, want 1", b.ends)
	}
}

func TestFailedFinalizeIsPendingAndRetryable(t *testing.T) {
	calls := 0
	b := &mockBackend{endFn: func(_ context.Context, _ int64, d, c int) (*models.UserStats, error) {
		calls++
		switch calls {
		case 1:
			return nil, models.ErrUnavailable
		case 2:
			// First attempt committed, response lost.
			return nil, models.ErrSessionClosed
		}
		return &models.UserStats{}, nil
	}}
	tm := started(t, b)
	for i := 0; i < 90; i++ {
		tm.Tick()
	}

	if err := tm.EndEarly(context.Background()); !errors.Is(err, models.ErrUnavailable) {
		t.Fatalf("EndEarly err = %v, want ErrUnavailable", err)
	}
	p := tm.PendingClose()
	if p == nil || p.SessionID != 9 || p.Duration != 1 || p.Calories != 14 {
		t.Fatalf("pending = %+v", p)
	}

	if err := tm.Finalize(context.Background()); err != nil {
		t.Fatalf("retry err = %v", err)
	}
	if tm.PendingClose() != nil {
		t.Error("pending close kept after success")
	}
	if err := tm.Finalize(context.Background()); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("third Finalize err = %v", err)
	}
}

func TestEndEarlyTransitions(t *testing.T) {
	tm := newTimer(t, &mockBackend{})
	if err := tm.EndEarly(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("EndEarly from idle err = %v, want ErrNotStarted", err)
	}
	if err := tm.Finalize(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Finalize from idle err = %v, want ErrInvalidTransition", err)
	}

	tm = started(t, &mockBackend{})
	tm.Pause()
	if err := tm.EndEarly(context.Background()); err != nil {
		t.Fatalf("EndEarly while paused: %v", err)
	}
	if err := tm.EndEarly(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("EndEarly after end err = %v", err)
	}
	before := tm.Snapshot().Elapsed
	tm.Tick()
	if tm.Snapshot().Elapsed != before {
		t.Error("Tick advanced an ended timer")
	}
}
