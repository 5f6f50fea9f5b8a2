package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Identity is the opaque (user, role) fact supplied per request by the
// fronting session layer. It is trusted as-is; no credentials are verified
// here.
type Identity struct {
	UserID string
	Role   string
	Email  string
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity reads the session headers into the request context. Requests
// without a user id stay unauthenticated; role checks happen per route.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: r.Header.Get("X-User-Id"),
			Role:   r.Header.Get("X-User-Role"),
			Email:  r.Header.Get("X-User-Email"),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func identityFrom(r *http.Request) Identity {
	id, _ := r.Context().Value(identityKey).(Identity)
	return id
}

// RequireAuth rejects unauthenticated requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFrom(r).UserID == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects everything but an authenticated ADMIN.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		if id.UserID == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
			return
		}
		if !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger writes one structured line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
