package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/freelift/internal/catalog"
	"github.com/claude/freelift/internal/memstore"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	"github.com/claude/freelift/internal/timer"
	"github.com/google/uuid"
)

type fixture struct {
	store    *memstore.Store
	catalog  *catalog.Service
	sessions *session.Service
	agg      *stats.Aggregator
	workout  *models.Workout
	exercise []*models.Exercise
}

// newFixture creates a 2 exercise × 2 set workout owned by user 1.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	f := &fixture{
		store:   store,
		catalog: catalog.NewService(store),
		agg:     stats.NewAggregator(store, time.UTC, log),
	}
	f.sessions = session.NewService(store, f.agg, log)

	var err error
	f.workout, err = f.catalog.CreateWorkout(ctx, 1, models.Workout{Name: "Full body", Difficulty: models.DifficultyBeginner})
	if err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"Push-ups", "Squats"} {
		e, err := f.catalog.CreateExercise(ctx, models.Exercise{
			Name:         name,
			Description:  name,
			Instructions: []string{"Do it"},
			MuscleGroups: []string{"legs"},
			Equipment:    "None",
			Difficulty:   models.DifficultyBeginner,
		})
		if err != nil {
			t.Fatal(err)
		}
		f.exercise = append(f.exercise, e)
		if _, err := f.catalog.AddExercise(ctx, 1, models.WorkoutExercise{WorkoutID: f.workout.ID, ExerciseID: e.ID, Sets: 2, Reps: 10, Order: i}); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestLogSetValidatesAgainstWorkout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws, err := f.sessions.Start(ctx, 1, f.workout.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		userID    int
		log       models.ExerciseLog
		wantField string
		wantErr   error
	}{
		{"set beyond prescription", 1, models.ExerciseLog{SessionID: ws.ID, ExerciseID: f.exercise[0].ID, SetNumber: 3, Reps: 10}, "setNumber", nil},
		{"exercise not in workout", 1, models.ExerciseLog{SessionID: ws.ID, ExerciseID: 99, SetNumber: 1, Reps: 10}, "exerciseId", nil},
		{"zero set", 1, models.ExerciseLog{SessionID: ws.ID, ExerciseID: f.exercise[0].ID, SetNumber: 0}, "setNumber", nil},
		{"other user", 2, models.ExerciseLog{SessionID: ws.ID, ExerciseID: f.exercise[0].ID, SetNumber: 1, Reps: 10}, "", models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sessions.LogSet(ctx, tt.userID, tt.log)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var verr *models.ValidationError
			if !errors.As(err, &verr) || verr.Fields[0].Field != tt.wantField {
				t.Errorf("err = %v, want validation error on %s", err, tt.wantField)
			}
		})
	}
}

func TestEndTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws, _ := f.sessions.Start(ctx, 1, f.workout.ID, nil)

	closed, err := f.sessions.End(ctx, 1, ws.ID, 2, 19)
	if err != nil {
		t.Fatal(err)
	}
	if closed.Stats.TotalWorkouts != 1 || *closed.Session.Duration != 2 {
		t.Errorf("closed = %+v", closed)
	}

	_, err = f.sessions.End(ctx, 1, ws.ID, 2, 19)
	if !errors.Is(err, models.ErrSessionClosed) {
		t.Errorf("second End err = %v, want ErrSessionClosed", err)
	}
	st, _ := f.agg.GetUserStats(ctx, 1)
	if st.TotalWorkouts != 1 {
		t.Errorf("TotalWorkouts = %d after rejected close, want 1", st.TotalWorkouts)
	}

	_, err = f.sessions.LogSet(ctx, 1, models.ExerciseLog{SessionID: ws.ID, ExerciseID: f.exercise[0].ID, SetNumber: 1, Reps: 10})
	if !errors.Is(err, models.ErrSessionClosed) {
		t.Errorf("LogSet after close err = %v, want ErrSessionClosed", err)
	}
}

func TestEndRejectsNegativeValues(t *testing.T) {
	f := newFixture(t)
	ws, _ := f.sessions.Start(context.Background(), 1, f.workout.ID, nil)
	_, err := f.sessions.End(context.Background(), 1, ws.ID, -1, -1)
	var verr *models.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Errorf("err = %v, want two field errors", err)
	}
}

func TestStartForeignWorkout(t *testing.T) {
	f := newFixture(t)
	if _, err := f.sessions.Start(context.Background(), 2, f.workout.ID, nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := f.sessions.Start(context.Background(), 1, 0, nil); err == nil {
		t.Error("expected validation error for missing workout id")
	}
}

func TestRecentAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ws, _ := f.sessions.Start(ctx, 1, f.workout.ID, nil)
		if i < 2 {
			f.sessions.End(ctx, 1, ws.ID, 10, 90)
		}
	}

	recent, err := f.sessions.Recent(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Errorf("recent = %d, want 2", len(recent))
	}
	if _, err := f.sessions.Recent(ctx, 1, 1000); err == nil {
		t.Error("expected limit validation error")
	}
	open, _ := f.sessions.Open(ctx, 1)
	if len(open) != 1 {
		t.Errorf("open = %d, want 1", len(open))
	}

	now := time.Now()
	periods, err := f.sessions.Summary(ctx, 1, stats.BucketMonth, now.AddDate(0, -1, 0), now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(periods) != 1 || periods[0].Sessions != 2 || periods[0].Minutes != 20 {
		t.Errorf("periods = %+v", periods)
	}
	if _, err := f.sessions.Summary(ctx, 1, "1 day", now, now); err == nil {
		t.Error("expected bucket validation error")
	}
}

// localBackend drives the timer straight against the services.
type localBackend struct {
	f      *fixture
	userID int
}

func (b *localBackend) GetWorkout(ctx context.Context, id int64) (*models.WorkoutDetail, error) {
	return b.f.catalog.GetWorkout(ctx, id)
}

func (b *localBackend) StartSession(ctx context.Context, workoutID int64) (*models.WorkoutSession, error) {
	return b.f.sessions.Start(ctx, b.userID, workoutID, nil)
}

func (b *localBackend) LogSet(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error) {
	return b.f.sessions.LogSet(ctx, b.userID, l)
}

func (b *localBackend) EndSession(ctx context.Context, id int64, duration, calories int) (*models.UserStats, error) {
	closed, err := b.f.sessions.End(ctx, b.userID, id, duration, calories)
	if err != nil {
		return nil, err
	}
	return &closed.Stats, nil
}

func TestTimerEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tm := timer.New(&localBackend{f: f, userID: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := tm.Start(ctx, f.workout.ID); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 45; j++ {
			tm.Tick()
		}
		if err := tm.CompleteSet(ctx); err != nil {
			t.Fatalf("CompleteSet %d: %v", i, err)
		}
	}

	snap := tm.Snapshot()
	if snap.State != timer.Completed || !snap.Finalized {
		t.Fatalf("state = %s finalized=%v", snap.State, snap.Finalized)
	}
	if snap.Stats == nil || snap.Stats.TotalWorkouts != 1 {
		t.Errorf("stats = %+v, want one workout", snap.Stats)
	}

	detail, err := f.sessions.Detail(ctx, 1, snap.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Logs) != 4 {
		t.Errorf("logs = %d, want 4", len(detail.Logs))
	}
	if !detail.Session.Closed() || *detail.Session.Duration != snap.Elapsed/60 {
		t.Errorf("session = %+v", detail.Session)
	}
	for _, l := range detail.Logs {
		if l.ClientID == uuid.Nil {
			t.Error("log stored without client id")
		}
	}
	if err := tm.Finalize(ctx); !errors.Is(err, timer.ErrAlreadyFinalized) {
		t.Errorf("second Finalize err = %v", err)
	}
	st, _ := f.agg.GetUserStats(ctx, 1)
	if st.TotalWorkouts != 1 {
		t.Errorf("TotalWorkouts = %d, want 1", st.TotalWorkouts)
	}
}
