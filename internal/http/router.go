package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/duetrack/duetrack/internal/auth"
	autopayhttp "github.com/duetrack/duetrack/internal/http/autopay"
	"github.com/duetrack/duetrack/internal/http/authn"
	billhttp "github.com/duetrack/duetrack/internal/http/bill"
	exporthttp "github.com/duetrack/duetrack/internal/http/export"
	"github.com/duetrack/duetrack/internal/http/importcsv"
	"github.com/duetrack/duetrack/internal/http/middleware"
	tenanthttp "github.com/duetrack/duetrack/internal/http/tenant"
	usagehttp "github.com/duetrack/duetrack/internal/http/usage"
	userhttp "github.com/duetrack/duetrack/internal/http/user"
	"github.com/duetrack/duetrack/internal/tenant"
)

// New assembles the full API router. Everything except /auth requires a valid
// session token; everything under /groups/{group} additionally requires
// membership of that group.
func New(
	jwts *auth.JWTManager,
	tenants *tenant.Service,
	authV1 *authn.Handler,
	groupsV1 *tenanthttp.Handler,
	billsV1 *billhttp.Handler,
	autopayV1 *autopayhttp.Handler,
	importV1 *importcsv.Handler,
	exportV1 *exporthttp.Handler,
	usersV1 *userhttp.Handler,
	usageV1 *usagehttp.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(chimw.AllowContentType("application/json"))
			authV1.Routes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwts))

			r.Route("/usage", usageV1.Routes)

			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Use(chimw.AllowContentType("application/json"))
				usersV1.Routes(r)
			})

			r.Route("/groups", func(r chi.Router) {
				groupsV1.Routes(r)

				r.Route("/{group}", func(r chi.Router) {
					r.Use(middleware.ResolveTenant(tenants))

					groupsV1.GroupRoutes(r)

					r.Route("/bills", func(r chi.Router) {
						r.Use(chimw.AllowContentType("application/json"))
						billsV1.Routes(r)
					})

					r.Route("/settlements", func(r chi.Router) {
						r.Use(chimw.AllowContentType("application/json"))
						billsV1.SettlementRoutes(r)
					})

					r.Route("/autopay", autopayV1.Routes)
					r.Route("/import", importV1.Routes)
					r.Route("/export", exportV1.Routes)
				})
			})
		})
	})

	return router
}
