package api

import (
	"context"
	"net/http"
	"strings"

	"agrilink/auth"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// AuthMiddleware validates the bearer token on every protected route and
// injects the acting principal's id and roles into the request context.
// Handlers downstream trust this identity without re-verifying credentials.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "authorization token is missing")
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims, err := auth.ValidateToken(secret, tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, RolesKey, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// principal returns the authenticated user id from the request context.
func principal(r *http.Request) string {
	id, _ := r.Context().Value(UserIDKey).(string)
	return id
}

func hasRole(r *http.Request, role string) bool {
	roles, _ := r.Context().Value(RolesKey).([]string)
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
