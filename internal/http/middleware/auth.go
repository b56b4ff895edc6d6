// Package middleware holds the authentication and tenant-resolution layers
// every protected route passes through.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/auth"
	"github.com/duetrack/duetrack/internal/http/respond"
	"github.com/duetrack/duetrack/internal/user"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller, extracted from the session token.
type Principal struct {
	ID   uuid.UUID
	Role user.Role
}

// PrincipalFrom returns the authenticated principal. The bool is false on
// routes that did not pass through RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)

	return p, ok
}

// RequireAuth validates the bearer token and stores the principal in the
// request context. Requests without a valid token are rejected with 401.
func RequireAuth(jwts *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respond.Error(w, auth.ErrMissingToken)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respond.Error(w, auth.ErrInvalidToken)
				return
			}

			claims, err := jwts.Validate(token)
			if err != nil {
				respond.Error(w, err)
				return
			}

			principal := Principal{ID: claims.UserID, Role: claims.Role}
			ctx := context.WithValue(r.Context(), principalKey, principal)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin principals. Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || p.Role != user.RoleAdmin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
