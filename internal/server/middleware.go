package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/freelift/internal/models"
)

// deny writes an auth failure in the same body shape as every other error.
func deny(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.APIError{Message: message, Kind: models.KindUnauthorized})
}

// APIKeyAuth guards write routes with the X-API-Key header: 401 when the
// header is absent, 403 when it does not match.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			switch {
			case key == "":
				deny(w, http.StatusUnauthorized, "missing API key")
			case subtle.ConstantTimeCompare([]byte(key), want) != 1:
				deny(w, http.StatusForbidden, "invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

type accessKey struct{}

// access is filled in while a request runs so the log line can carry the
// caller resolved further down the chain.
type access struct {
	userID int
}

// noteUser records the resolved caller for RequestLogging, if it is running.
func noteUser(ctx context.Context, id int) {
	if a, ok := ctx.Value(accessKey{}).(*access); ok {
		a.userID = id
	}
}

// RequestLogging logs one line per request. Server errors log at error
// level and caller errors at warn.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			a := &access{}
			lw := &loggedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(lw, r.WithContext(context.WithValue(r.Context(), accessKey{}, a)))

			level := slog.LevelInfo
			switch {
			case lw.status >= 500:
				level = slog.LevelError
			case lw.status >= 400:
				level = slog.LevelWarn
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", lw.status,
				"bytes", lw.bytes,
				"duration", time.Since(start).String(),
			}
			if a.userID != 0 {
				attrs = append(attrs, "user_id", a.userID)
			}
			log.Log(r.Context(), level, "request", attrs...)
		})
	}
}

// CORS lets browser clients reach the API and the MCP endpoint, which
// uses PATCH and the Mcp-Session-Id header.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Mcp-Session-Id")
		h.Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggedWriter captures the status and body size for RequestLogging.
type loggedWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *loggedWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggedWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush keeps streamed MCP responses flowing through the wrapper.
func (w *loggedWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *loggedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
