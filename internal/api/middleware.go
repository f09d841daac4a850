// Package api implements the skillvault REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DefaultUserHeader carries the acting user id when none is configured.
const DefaultUserHeader = "X-User-ID"

type ctxKey int

const userKey ctxKey = iota

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserMiddleware stores the user id from header in the request context. The
// header is trusted; it is expected to be set by an upstream gateway.
func UserMiddleware(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultUserHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get(header))
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userID returns the acting user, empty when the request is anonymous.
func userID(r *http.Request) string {
	u, _ := r.Context().Value(userKey).(string)
	return u
}

// viewer returns the user as a visibility filter. Anonymous requests see
// global and public skills only.
func viewer(r *http.Request) *string {
	u := userID(r)
	return &u
}

func requireSkillID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := uuid.Parse(chi.URLParam(r, "id")); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid skill id"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
