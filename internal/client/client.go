// Package client talks to the FreeLift REST API. Reads are retried with
// backoff while the server is unavailable; writes are sent once and surface
// models.ErrUnavailable so the caller decides whether to retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/timer"
)

// Compile-time check: Client drives the workout timer.
var _ timer.Backend = (*Client)(nil)

const readAttempts = 3

// Client implements the timer backend and the MCP data source over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration // first retry delay, doubled per attempt
}

// New creates a Client targeting the given base URL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		backoff:    time.Second,
	}
}

// do sends one request and decodes a 2xx body into out. Transport failures
// and 5xx responses are reported as models.ErrUnavailable.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("client: %s %s: %w: %w", method, path, models.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w: %w", models.ErrUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		return responseError(method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func responseError(method, path string, status int, data []byte) error {
	var body models.APIError
	if err := json.Unmarshal(data, &body); err != nil || body.Kind == "" {
		body = models.APIError{Message: strings.TrimSpace(string(data))}
		switch {
		case status == http.StatusNotFound:
			body.Kind = models.KindNotFound
		case status == http.StatusConflict:
			body.Kind = models.KindConflict
		case status >= 500:
			body.Kind = models.KindUnavailable
		}
	}
	if status >= 500 && body.Kind == models.KindInternal {
		body.Kind = models.KindUnavailable
	}
	return fmt.Errorf("client: %s %s returned %d: %w", method, path, status, body.Err())
}

// get retries on models.ErrUnavailable with exponential backoff.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	var err error
	for attempt := range readAttempts {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err = c.do(ctx, http.MethodGet, path, params, nil, out)
		if err == nil || !errors.Is(err, models.ErrUnavailable) {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", readAttempts, err)
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

// --- Timer backend ---

// GetWorkout fetches a workout with its ordered exercises.
func (c *Client) GetWorkout(ctx context.Context, workoutID int64) (*models.WorkoutDetail, error) {
	var d models.WorkoutDetail
	if err := c.get(ctx, "/api/v1/workouts/"+strconv.FormatInt(workoutID, 10), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// StartSession opens a session for workoutID.
func (c *Client) StartSession(ctx context.Context, workoutID int64) (*models.WorkoutSession, error) {
	var ws models.WorkoutSession
	in := map[string]any{"workoutId": workoutID}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", nil, in, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// LogSet appends a set log. Retries must reuse l.ClientID.
func (c *Client) LogSet(ctx context.Context, l models.ExerciseLog) (*models.ExerciseLog, error) {
	var out models.ExerciseLog
	if err := c.do(ctx, http.MethodPost, "/api/v1/logs", nil, l, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Closed mirrors the end-session response.
type Closed struct {
	Session models.WorkoutSession `json:"session"`
	Stats   models.UserStats      `json:"stats"`
}

// EndSession finalizes a session and returns the updated stats.
func (c *Client) EndSession(ctx context.Context, sessionID int64, durationMinutes, calories int) (*models.UserStats, error) {
	var out Closed
	in := map[string]int{"duration": durationMinutes, "calories": calories}
	path := "/api/v1/sessions/" + strconv.FormatInt(sessionID, 10) + "/end"
	if err := c.do(ctx, http.MethodPatch, path, nil, in, &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

// AbandonSession closes a session without counting it.
func (c *Client) AbandonSession(ctx context.Context, sessionID int64) (*models.WorkoutSession, error) {
	var ws models.WorkoutSession
	path := "/api/v1/sessions/" + strconv.FormatInt(sessionID, 10) + "/abandon"
	if err := c.do(ctx, http.MethodPatch, path, nil, nil, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// OpenSessions lists sessions the caller never closed.
func (c *Client) OpenSessions(ctx context.Context) ([]models.WorkoutSession, error) {
	var out []models.WorkoutSession
	if err := c.get(ctx, "/api/v1/sessions/open", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Read API ---
// The userID arguments exist to match the MCP data source; the server
// derives the user from the connection.

func (c *Client) ListExercises(ctx context.Context, muscleGroup, query string) ([]models.Exercise, error) {
	params := url.Values{}
	if muscleGroup != "" {
		params.Set("muscle", muscleGroup)
	}
	if query != "" {
		params.Set("q", query)
	}
	var out []models.Exercise
	if err := c.get(ctx, "/api/v1/exercises", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListWorkouts(ctx context.Context, _ int) ([]models.Workout, error) {
	var out []models.Workout
	if err := c.get(ctx, "/api/v1/workouts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetWorkoutDetail(ctx context.Context, id int64, _ int) (*models.WorkoutDetail, error) {
	return c.GetWorkout(ctx, id)
}

func (c *Client) GetUserStats(ctx context.Context, _ int) (*models.UserStats, error) {
	var st models.UserStats
	if err := c.get(ctx, "/api/v1/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) RecentSessions(ctx context.Context, _ int, limit int) ([]models.WorkoutSession, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out []models.WorkoutSession
	if err := c.get(ctx, "/api/v1/sessions/recent", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSessionDetail(ctx context.Context, id int64, _ int) (*models.SessionDetail, error) {
	var out models.SessionDetail
	if err := c.get(ctx, "/api/v1/sessions/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, _ int) ([]models.TrainingPeriod, error) {
	params := timeParams(start, end)
	params.Set("bucket", bucket)
	var out []models.TrainingPeriod
	if err := c.get(ctx, "/api/v1/stats/summary", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me returns the identity the server resolved for this client.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.get(ctx, "/api/v1/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
