package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duetrack/duetrack/internal/http/respond"
	"github.com/duetrack/duetrack/internal/tenant"
)

const tenantKey contextKey = "tenant"

// TenantFrom returns the resolved bill group. The bool is false on routes
// that did not pass through ResolveTenant.
func TenantFrom(ctx context.Context) (*tenant.Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(*tenant.Tenant)

	return t, ok
}

// ResolveTenant maps the {group} URL slug to a tenant the principal is a
// member of and stores it in the request context. An unknown slug is 404; an
// existing group the principal is not a member of is 403. Must run after
// RequireAuth.
func ResolveTenant(tenants *tenant.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			t, err := tenants.ResolveCurrent(r.Context(), principal.ID, chi.URLParam(r, "group"))
			if err != nil {
				respond.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, t)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
