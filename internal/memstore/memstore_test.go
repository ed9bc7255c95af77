package memstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/stats"
	"github.com/google/uuid"
)

func seedWorkout(t *testing.T, s *Store) (*models.Workout, *models.Exercise) {
	t.Helper()
	ctx := context.Background()
	e, err := s.CreateExercise(ctx, models.Exercise{
		Name:         "Push-ups",
		Description:  "Classic",
		Instructions: []string{"Push"},
		MuscleGroups: []string{"chest", "triceps"},
		Equipment:    "None",
		Difficulty:   models.DifficultyBeginner,
	})
	if err != nil {
		t.Fatalf("CreateExercise: %v", err)
	}
	w, err := s.CreateWorkout(ctx, models.Workout{UserID: 1, Name: "Upper", Difficulty: models.DifficultyBeginner})
	if err != nil {
		t.Fatalf("CreateWorkout: %v", err)
	}
	if _, err := s.AddWorkoutExercise(ctx, models.WorkoutExercise{WorkoutID: w.ID, ExerciseID: e.ID, Sets: 2, Reps: 10, Order: 0}); err != nil {
		t.Fatalf("AddWorkoutExercise: %v", err)
	}
	return w, e
}

func TestStoresHaveIndependentSequences(t *testing.T) {
	a, b := New(), New()
	wa, _ := seedWorkout(t, a)
	wb, _ := seedWorkout(t, b)
	if wa.ID != 1 || wb.ID != 1 {
		t.Errorf("workout ids = %d, %d, want 1, 1", wa.ID, wb.ID)
	}
}

func TestAddWorkoutExerciseDuplicateOrder(t *testing.T) {
	s := New()
	w, e := seedWorkout(t, s)
	_, err := s.AddWorkoutExercise(context.Background(), models.WorkoutExercise{WorkoutID: w.ID, ExerciseID: e.ID, Sets: 1, Reps: 1, Order: 0})
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	_, err = s.AddWorkoutExercise(context.Background(), models.WorkoutExercise{WorkoutID: 99, ExerciseID: e.ID, Sets: 1, Reps: 1, Order: 1})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing workout err = %v, want ErrNotFound", err)
	}
}

func TestListExercisesFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedWorkout(t, s)
	if _, err := s.CreateExercise(ctx, models.Exercise{Name: "Squats", Description: "Legs", MuscleGroups: []string{"quadriceps"}, Equipment: "Barbell"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		muscle, query string
		want          int
	}{
		{"", "", 2},
		{"chest", "", 1},
		{"", "barbell", 1},
		{"quadriceps", "push", 0},
	}
	for _, tt := range tests {
		got, err := s.ListExercises(ctx, tt.muscle, tt.query)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tt.want {
			t.Errorf("ListExercises(%q, %q) = %d results, want %d", tt.muscle, tt.query, len(got), tt.want)
		}
	}
}

func TestAppendLogIdempotentAndClosed(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, e := seedWorkout(t, s)
	ws, err := s.CreateSession(ctx, models.WorkoutSession{UserID: 1, WorkoutID: w.ID, StartTime: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	key := uuid.New()
	first, err := s.AppendLog(ctx, models.ExerciseLog{SessionID: ws.ID, ExerciseID: e.ID, SetNumber: 1, Reps: 10, Completed: true, ClientID: key})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.AppendLog(ctx, models.ExerciseLog{SessionID: ws.ID, ExerciseID: e.ID, SetNumber: 1, Reps: 10, Completed: true, ClientID: key})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("retried append got id %d, want %d", second.ID, first.ID)
	}
	logs, _ := s.SessionLogs(ctx, ws.ID)
	if len(logs) != 1 {
		t.Errorf("logs = %d, want 1", len(logs))
	}

	noop := func(*models.UserStats) error { return nil }
	if _, _, err := s.CloseSession(ctx, ws.ID, 1, models.SessionClose{EndTime: time.Now(), Duration: 1, Calories: 1}, noop); err != nil {
		t.Fatal(err)
	}
	_, err = s.AppendLog(ctx, models.ExerciseLog{SessionID: ws.ID, ExerciseID: e.ID, SetNumber: 2, Reps: 10, ClientID: uuid.New()})
	if !errors.Is(err, models.ErrSessionClosed) {
		t.Errorf("append after close err = %v, want ErrSessionClosed", err)
	}
}

func TestAppendLogRacingClose(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, e := seedWorkout(t, s)
	ws, _ := s.CreateSession(ctx, models.WorkoutSession{UserID: 1, WorkoutID: w.ID, StartTime: time.Now()})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		written int
	)
	for i := range 20 {
		wg.Add(1)
		go func(set int) {
			defer wg.Done()
			_, err := s.AppendLog(ctx, models.ExerciseLog{SessionID: ws.ID, ExerciseID: e.ID, SetNumber: set, Reps: 5, Completed: true, ClientID: uuid.New()})
			switch {
			case err == nil:
				mu.Lock()
				written++
				mu.Unlock()
			case !errors.Is(err, models.ErrSessionClosed):
				t.Errorf("append set %d: %v", set, err)
			}
		}(i + 1)
	}
	noop := func(*models.UserStats) error { return nil }
	if _, _, err := s.CloseSession(ctx, ws.ID, 1, models.SessionClose{EndTime: time.Now(), Duration: 1, Calories: 1}, noop); err != nil {
		t.Fatal(err)
	}
	atClose, _ := s.SessionLogs(ctx, ws.ID)
	wg.Wait()

	logs, _ := s.SessionLogs(ctx, ws.ID)
	if len(logs) != len(atClose) {
		t.Errorf("%d logs landed after the close", len(logs)-len(atClose))
	}
	if len(logs) != written {
		t.Errorf("stored logs = %d, successful appends = %d", len(logs), written)
	}
}

func TestCloseSessionOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, _ := seedWorkout(t, s)
	ws, _ := s.CreateSession(ctx, models.WorkoutSession{UserID: 1, WorkoutID: w.ID, StartTime: time.Now()})

	calls := 0
	fn := func(st *models.UserStats) error {
		calls++
		st.TotalWorkouts++
		return nil
	}
	if _, _, err := s.CloseSession(ctx, ws.ID, 1, models.SessionClose{EndTime: time.Now(), Duration: 2, Calories: 19}, fn); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.CloseSession(ctx, ws.ID, 1, models.SessionClose{EndTime: time.Now(), Duration: 2, Calories: 19}, fn)
	if !errors.Is(err, models.ErrSessionClosed) || !errors.Is(err, models.ErrConflict) {
		t.Errorf("second close err = %v, want ErrSessionClosed", err)
	}
	if calls != 1 {
		t.Errorf("stats updated %d times, want 1", calls)
	}
	if _, err := s.AbandonSession(ctx, ws.ID, 1, time.Now()); !errors.Is(err, models.ErrSessionClosed) {
		t.Errorf("abandon after close err = %v, want ErrSessionClosed", err)
	}
}

func TestCloseSessionFailedUpdateLeavesSessionOpen(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, _ := seedWorkout(t, s)
	ws, _ := s.CreateSession(ctx, models.WorkoutSession{UserID: 1, WorkoutID: w.ID, StartTime: time.Now()})

	boom := errors.New("boom")
	_, _, err := s.CloseSession(ctx, ws.ID, 1, models.SessionClose{EndTime: time.Now()}, func(*models.UserStats) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, _ := s.GetSession(ctx, ws.ID)
	if got.Closed() {
		t.Error("session closed despite failed stats update")
	}
}

func TestAbandonLeavesStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, _ := seedWorkout(t, s)
	ws, _ := s.CreateSession(ctx, models.WorkoutSession{UserID: 1, WorkoutID: w.ID, StartTime: time.Now()})

	got, err := s.AbandonSession(ctx, ws.ID, 1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Abandoned || got.EndTime == nil {
		t.Errorf("abandoned session = %+v", got)
	}
	st, _ := s.GetUserStats(ctx, 1)
	if st.TotalWorkouts != 0 {
		t.Errorf("TotalWorkouts = %d, want 0", st.TotalWorkouts)
	}
	open, _ := s.OpenSessions(ctx, 1)
	if len(open) != 0 {
		t.Errorf("open sessions = %d, want 0", len(open))
	}
}

func TestConcurrentCompletionsSumMinutes(t *testing.T) {
	s := New()
	agg := stats.NewAggregator(s, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for _, minutes := range []int{10, 15} {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			if _, err := agg.ApplySessionCompletion(ctx, 7, m, 50, at); err != nil {
				t.Errorf("ApplySessionCompletion: %v", err)
			}
		}(minutes)
	}
	wg.Wait()

	st, _ := s.GetUserStats(ctx, 7)
	if st.TotalMinutes != 25 {
		t.Errorf("TotalMinutes = %d, want 25", st.TotalMinutes)
	}
	if st.TotalWorkouts != 2 {
		t.Errorf("TotalWorkouts = %d, want 2", st.TotalWorkouts)
	}
	if st.CurrentStreak != 1 || st.LongestStreak != 1 {
		t.Errorf("streak = %d/%d, want 1/1", st.CurrentStreak, st.LongestStreak)
	}
}

func TestTrainingSummary(t *testing.T) {
	s := New()
	ctx := context.Background()
	w, e := seedWorkout(t, s)
	noop := func(*models.UserStats) error { return nil }
	weight := 20.0

	starts := []time.Time{
		time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),  // Monday
		time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), // Sunday, same week
		time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), // next week
	}
	for _, start := range starts {
		ws, _ := s.CreateSession(ctx, models.WorkoutSession{UserID: 1, WorkoutID: w.ID, StartTime: start})
		if _, err := s.AppendLog(ctx, models.ExerciseLog{SessionID: ws.ID, ExerciseID: e.ID, SetNumber: 1, Reps: 10, Weight: &weight, Completed: true, ClientID: uuid.New()}); err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.CloseSession(ctx, ws.ID, 1, models.SessionClose{EndTime: start.Add(30 * time.Minute), Duration: 30, Calories: 270}, noop); err != nil {
			t.Fatal(err)
		}
	}
	// Abandoned sessions are excluded.
	ab, _ := s.CreateSession(ctx, models.WorkoutSession{UserID: 1, WorkoutID: w.ID, StartTime: starts[0]})
	s.AbandonSession(ctx, ab.ID, 1, starts[0])

	got, err := s.TrainingSummary(ctx, 1, starts[0].AddDate(0, 0, -1), starts[2].AddDate(0, 0, 1), stats.BucketWeek)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("periods = %d, want 2", len(got))
	}
	if got[0].Period != "2024-03-11" || got[0].Sessions != 1 {
		t.Errorf("latest period = %+v", got[0])
	}
	first := got[1]
	if first.Period != "2024-03-04" || first.Sessions != 2 || first.Minutes != 60 || first.Sets != 2 || first.Reps != 20 || first.Volume != 400 {
		t.Errorf("first period = %+v", first)
	}
}
