package mcp

import (
	"context"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/stats"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last days days.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List exercises from the library, optionally filtered by muscle group and a search term matched against name, description and equipment."),
	mcp.WithString("muscle", mcp.Description("Muscle group tag (e.g. chest, legs, core)")),
	mcp.WithString("query", mcp.Description("Case-insensitive search term")),
)

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List the user's workouts and the shared templates."),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get a workout with its ordered exercises, prescribed sets, reps, weight and rest."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Workout ID")),
)

var toolGetUserStats = mcp.NewTool("get_user_stats",
	mcp.WithDescription("Totals (workouts, minutes, calories) and current/longest daily streak."),
)

var toolGetRecentSessions = mcp.NewTool("get_recent_sessions",
	mcp.WithDescription("Most recent workout sessions, newest first."),
	mcp.WithNumber("limit", mcp.Description("Number of sessions (1-100). Defaults to 10.")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("A workout session with every logged set."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Session ID")),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Weekly or monthly training volume: sessions, minutes, calories, sets, reps and weight x reps volume per period."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 6 months ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 month'."), mcp.Enum(stats.BucketWeek, stats.BucketMonth)),
)

var toolComparePeriods = mcp.NewTool("compare_periods",
	mcp.WithDescription("Compare training totals between two time periods (e.g. this month vs last month)."),
	mcp.WithString("period_a_start", mcp.Required(), mcp.Description("Period A start date")),
	mcp.WithString("period_a_end", mcp.Required(), mcp.Description("Period A end date")),
	mcp.WithString("period_b_start", mcp.Required(), mcp.Description("Period B start date")),
	mcp.WithString("period_b_end", mcp.Required(), mcp.Description("Period B end date")),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercises, err := h.ds.ListExercises(ctx, req.GetString("muscle", ""), req.GetString("query", ""))
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(exercises)
}

func (h *handlers) listWorkouts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workouts, err := h.ds.ListWorkouts(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(workouts)
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil || id <= 0 {
		return mcp.NewToolResultError("id must be a positive integer"), nil
	}
	detail, err := h.ds.GetWorkoutDetail(ctx, int64(id), UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(detail)
}

func (h *handlers) getUserStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.ds.GetUserStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_user_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(st)
}

func (h *handlers) getRecentSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit < 1 || limit > 100 {
		return mcp.NewToolResultError("limit must be between 1 and 100"), nil
	}
	sessions, err := h.ds.RecentSessions(ctx, UserIDFromContext(ctx), limit)
	if err != nil {
		h.log.Error("mcp get_recent_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(sessions)
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil || id <= 0 {
		return mcp.NewToolResultError("id must be a positive integer"), nil
	}
	detail, err := h.ds.GetSessionDetail(ctx, int64(id), UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(detail)
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 183)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", stats.BucketMonth)
	summary, err := h.ds.GetTrainingSummary(ctx, start, end, bucket, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(summary)
}

// periodTotals sums every bucket of a training summary.
type periodTotals struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Sessions int     `json:"sessions"`
	Minutes  int     `json:"minutes"`
	Calories int     `json:"calories"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Volume   float64 `json:"volume"`
}

func sumPeriods(start, end time.Time, periods []models.TrainingPeriod) periodTotals {
	t := periodTotals{Start: start.Format("2006-01-02"), End: end.Format("2006-01-02")}
	for _, p := range periods {
		t.Sessions += p.Sessions
		t.Minutes += p.Minutes
		t.Calories += p.Calories
		t.Sets += p.Sets
		t.Reps += p.Reps
		t.Volume += p.Volume
	}
	return t
}

func (h *handlers) comparePeriods(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := []string{"period_a_start", "period_a_end", "period_b_start", "period_b_end"}
	var bounds [4]time.Time
	for i, name := range names {
		raw, err := req.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(name + " is required"), nil
		}
		bounds[i], err = parseFlexTime(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid " + name + ": " + err.Error()), nil
		}
	}

	uid := UserIDFromContext(ctx)
	a, err := h.ds.GetTrainingSummary(ctx, bounds[0], bounds[1], stats.BucketWeek, uid)
	if err != nil {
		h.log.Error("mcp compare_periods A", "error", err)
		return mcp.NewToolResultError("query failed for period A: " + err.Error()), nil
	}
	b, err := h.ds.GetTrainingSummary(ctx, bounds[2], bounds[3], stats.BucketWeek, uid)
	if err != nil {
		h.log.Error("mcp compare_periods B", "error", err)
		return mcp.NewToolResultError("query failed for period B: " + err.Error()), nil
	}

	return jsonResult(map[string]any{
		"period_a": sumPeriods(bounds[0], bounds[1], a),
		"period_b": sumPeriods(bounds[2], bounds[3], b),
	})
}
