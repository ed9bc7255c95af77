package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind onto its status code. Internal and
// storage failures are logged; caller mistakes are not.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	body := models.NewAPIError(err)
	status := http.StatusInternalServerError
	switch body.Kind {
	case models.KindValidation:
		status = http.StatusBadRequest
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindConflict:
		status = http.StatusConflict
	case models.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		if log != nil {
			log.Error("request failed", "error", err)
		}
		if status == http.StatusInternalServerError {
			body.Message = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	writeError(w, s.log, err)
}

// decodeJSON reads a request body into v. A value of the wrong type is a
// validation error on its field; unparseable JSON is one on "body".
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return models.Invalid(typeErr.Field, fmt.Sprintf("must be %s, got %s", typeErr.Type, typeErr.Value))
	}
	return models.Invalid("body", "invalid JSON: "+err.Error())
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Invalid("id", "must be a positive integer")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; missing yields 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Invalid(name, "must be an integer")
	}
	return n, nil
}

// parseTimeRange reads start/end as RFC 3339 or YYYY-MM-DD. A date-only end
// covers the whole day. Defaults to the last 7 days.
func parseTimeRange(r *http.Request, defaultDays int) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	end = time.Now()
	if endStr != "" {
		var dateOnly bool
		end, dateOnly, err = parseTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, models.Invalid("end", "must be RFC 3339 or YYYY-MM-DD")
		}
		if dateOnly {
			end = end.Add(24 * time.Hour)
		}
	}

	if startStr == "" {
		return end.AddDate(0, 0, -defaultDays), end, nil
	}
	start, _, err = parseTime(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, models.Invalid("start", "must be RFC 3339 or YYYY-MM-DD")
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	return t, true, err
}
