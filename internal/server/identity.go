package server

import (
	"context"
	"net/http"

	"github.com/claude/freelift/internal/mcp"
	"tailscale.com/client/tailscale/apitype"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	userInfoKey
)

// devUserID is the user every request maps to without Tailscale. The binary
// creates it at startup under DevLogin.
const devUserID = 1

const (
	DevLogin       = "local"
	DevDisplayName = "Local Dev User"
)

// UserInfo is the caller identity returned by /api/v1/me.
type UserInfo struct {
	ID          int    `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
}

var devUser = UserInfo{ID: devUserID, Login: DevLogin, DisplayName: DevDisplayName}

// WhoIser identifies tailnet peers. *local.Client satisfies it.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// DevIdentity maps every request to the local dev user.
func DevIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), devUser)))
	})
}

// TailscaleIdentity resolves the peer's login via WhoIs and maps it to a
// user row, creating one on first contact.
func TailscaleIdentity(whois WhoIser, users Users) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := whois.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil || who.UserProfile == nil {
				deny(w, http.StatusUnauthorized, "unknown tailnet peer")
				return
			}
			login := who.UserProfile.LoginName
			name := who.UserProfile.DisplayName
			if name == "" {
				name = login
			}
			id, err := users.GetOrCreateUser(r.Context(), login, name)
			if err != nil {
				writeError(w, nil, err)
				return
			}
			info := UserInfo{ID: id, Login: login, DisplayName: name}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), info)))
		})
	}
}

func withIdentity(ctx context.Context, info UserInfo) context.Context {
	ctx = context.WithValue(ctx, userIDKey, info.ID)
	ctx = context.WithValue(ctx, userInfoKey, info)
	noteUser(ctx, info.ID)
	return mcp.WithUserID(ctx, info.ID)
}

// identity picks Tailscale or dev identity per request, so SetTailscale may
// be called after routes are built.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.users)(next).ServeHTTP(w, r)
	})
}

// userIDFromContext returns the caller's user ID, falling back to the dev user.
func userIDFromContext(r *http.Request) int {
	if id, ok := r.Context().Value(userIDKey).(int); ok {
		return id
	}
	return devUserID
}

func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return devUser
}

// mustUserID returns the identity set by middleware, writing 401 when none ran.
func mustUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := r.Context().Value(userIDKey).(int)
	if !ok || id <= 0 {
		deny(w, http.StatusUnauthorized, "no identity")
		return 0, false
	}
	return id, true
}
