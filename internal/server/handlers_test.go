package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/freelift/internal/mcp"
	"github.com/claude/freelift/internal/memstore"
	"github.com/claude/freelift/internal/models"
)

func TestMeReturnsStoredUserID(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ids := map[string]int{}
	for _, login := range []string{"local", "carol@example.com", "dave@example.com"} {
		id, err := store.GetOrCreateUser(ctx, login, "")
		if err != nil {
			t.Fatal(err)
		}
		ids[login] = id
	}

	tests := []struct {
		name     string
		who      fakeWhoIs
		wantName string
	}{
		{"existing user", fakeWhoIs{login: "dave@example.com", name: "Dave"}, "Dave"},
		{"another existing user", fakeWhoIs{login: "carol@example.com", name: "Carol"}, "Carol"},
		{"new user without a display name", fakeWhoIs{login: "erin@example.com"}, "erin@example.com"},
	}
	s := &Server{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := TailscaleIdentity(tt.who, store)(http.HandlerFunc(s.handleMe))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			info := decodeBody[UserInfo](t, rec)

			want, err := store.GetOrCreateUser(ctx, tt.who.login, "")
			if err != nil {
				t.Fatal(err)
			}
			if info.ID != want || info.Login != tt.who.login || info.DisplayName != tt.wantName {
				t.Errorf("me = %+v, want id %d login %s name %s", info, want, tt.who.login, tt.wantName)
			}
			if prior, ok := ids[tt.who.login]; ok && prior != info.ID {
				t.Errorf("id = %d, but %s was created as %d", info.ID, tt.who.login, prior)
			}
		})
	}
}

func TestMeThroughRouter(t *testing.T) {
	srv, store := newTestServer(t)

	info := decodeBody[UserInfo](t, request(t, srv, http.MethodGet, "/api/v1/me", "", false))
	if info != devUser {
		t.Errorf("dev me = %+v, want %+v", info, devUser)
	}

	srv.SetTailscale(fakeWhoIs{login: "frank@example.com", name: "Frank"})
	first := decodeBody[UserInfo](t, request(t, srv, http.MethodGet, "/api/v1/me", "", false))
	again := decodeBody[UserInfo](t, request(t, srv, http.MethodGet, "/api/v1/me", "", false))
	if first.ID != again.ID || first.ID == devUserID {
		t.Errorf("ids = %d then %d, want one stable non-dev id", first.ID, again.ID)
	}
	u, err := store.GetUser(context.Background(), first.ID)
	if err != nil || u.Login != "frank@example.com" {
		t.Errorf("stored user %d = %+v, %v", first.ID, u, err)
	}
}

func TestIdentityReachesMCP(t *testing.T) {
	store := memstore.New()
	store.GetOrCreateUser(context.Background(), "local", "")
	id, _ := store.GetOrCreateUser(context.Background(), "gina@example.com", "Gina")

	var got int
	h := TailscaleIdentity(fakeWhoIs{login: "gina@example.com"}, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = mcp.UserIDFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if got != id {
		t.Errorf("mcp user = %d, want %d", got, id)
	}
}

type failingUsers struct{ err error }

func (f failingUsers) GetOrCreateUser(context.Context, string, string) (int, error) { return 0, f.err }
func (f failingUsers) GetUser(context.Context, int) (*models.User, error) { return nil, f.err }

func TestTailscaleIdentityFailures(t *testing.T) {
	tests := []struct {
		name   string
		who    fakeWhoIs
		users  Users
		status int
		kind   string
	}{
		{"unknown peer", fakeWhoIs{err: errors.New("no peer")}, memstore.New(), http.StatusUnauthorized, models.KindUnauthorized},
		{"user store down", fakeWhoIs{login: "hal@example.com"}, failingUsers{fmt.Errorf("pool closed: %w", models.ErrUnavailable)}, http.StatusServiceUnavailable, models.KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			h := TailscaleIdentity(tt.who, tt.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

			if rec.Code != tt.status || reached {
				t.Fatalf("status = %d, reached = %v; want %d without reaching the handler", rec.Code, reached, tt.status)
			}
			if body := decodeBody[models.APIError](t, rec); body.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", body.Kind, tt.kind)
			}
		})
	}
}

func TestProfileNeedsIdentity(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.handleProfile(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if body := decodeBody[models.APIError](t, rec); body.Kind != models.KindUnauthorized {
		t.Errorf("kind = %q, want %q", body.Kind, models.KindUnauthorized)
	}
}
