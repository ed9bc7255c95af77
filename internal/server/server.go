package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/freelift/internal/catalog"
	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	"github.com/go-chi/chi/v5"
)

// Users resolves the callers behind requests.
type Users interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	GetUser(ctx context.Context, id int) (*models.User, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	users    Users
	catalog  *catalog.Service
	sessions *session.Service
	stats    *stats.Aggregator
	whois    WhoIser
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(users Users, cat *catalog.Service, sessions *session.Service, agg *stats.Aggregator, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		users:    users,
		catalog:  cat,
		sessions: sessions,
		stats:    agg,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches request identity from the dev user to the
// tailnet peer reported by WhoIs.
func (s *Server) SetTailscale(w WhoIser) {
	s.whois = w
}

// MountMCP serves an MCP handler at /mcp behind the same identity middleware.
func (s *Server) MountMCP(h http.Handler) {
	s.router.With(s.identity).Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/me", s.handleMe)
		r.Get("/profile", s.handleProfile)

		r.Get("/exercises", s.handleListExercises)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)

		// Catalog writes (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/exercises", s.handleCreateExercise)
			r.Post("/workouts", s.handleCreateWorkout)
			r.Post("/workouts/{id}/exercises", s.handleAddWorkoutExercise)
		})

		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions/recent", s.handleRecentSessions)
		r.Get("/sessions/open", s.handleOpenSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Patch("/sessions/{id}/end", s.handleEndSession)
		r.Patch("/sessions/{id}/abandon", s.handleAbandonSession)
		r.Post("/logs", s.handleLogSet)

		r.Get("/stats", s.handleStats)
		r.Get("/stats/summary", s.handleTrainingSummary)
	})
}
