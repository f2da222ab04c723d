package httpserver

import (
	"context"
	"net/http"
	"strings"

	"cryptosim/internal/auth"
	"cryptosim/internal/httputil"
	"cryptosim/internal/types"
)

type ctxKey string

const (
	userIDKey ctxKey = "user_id"
	roleKey   ctxKey = "role"
)

// WithAuth validates the bearer token and stashes the session's user id and
// role in the request context.
func WithAuth(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing bearer token"})
				return
			}
			userID, role, err := svc.ParseToken(parts[1])
			if err != nil {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid token"})
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route group to admin-role sessions. It must run after
// WithAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := SessionRole(r)
		if !ok || role != types.RoleAdmin {
			httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserID(r *http.Request) (string, bool) {
	v := r.Context().Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func SessionRole(r *http.Request) (types.Role, bool) {
	v := r.Context().Value(roleKey)
	if v == nil {
		return "", false
	}
	role, ok := v.(types.Role)
	return role, ok
}
