// Package server assembles the HTTP API: the route table and the middleware
// chain around it.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	adminhandler "property-platform/access-core/internal/admin/handler"
	audithandler "property-platform/access-core/internal/audit/handler"
	authhandler "property-platform/access-core/internal/auth/handler"
	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/guard"
	healthhandler "property-platform/access-core/internal/health/handler"
	mw "property-platform/access-core/internal/server/middleware"
)

// maxRequestBody caps request bodies. Nothing in this API legitimately sends
// more than a few KB.
const maxRequestBody = 1 << 20

// Deps holds the handlers and checks the router mounts.
type Deps struct {
	// Auth serves login, refresh, logout, and session management.
	Auth *authhandler.Handler
	// Admin serves operator actions. Mounted behind user:manage.
	Admin *adminhandler.Handler
	// Audit serves the per-user audit trail. Mounted behind user:read.
	Audit *audithandler.Handler
	// Health serves liveness/readiness probes.
	Health *healthhandler.Handler
	// Guard authenticates bearer tokens on protected routes.
	Guard *guard.Guard
	// Authorizer backs the permission checks on admin routes.
	Authorizer *authz.Authorizer
}

// NewRouter assembles the HTTP API.
//
// Route → handler mapping:
//   - /healthz, /readyz            → internal/health/handler
//   - /v1/auth/*                   → internal/auth/handler
//   - /v1/admin/*                  → internal/admin/handler
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.CaptureClientIP)
	r.Use(chimw.Recoverer)
	r.Use(limitBody)

	r.Get("/healthz", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", deps.Auth.Login)
		r.Post("/refresh", deps.Auth.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(deps.Guard))
			r.Post("/logout", deps.Auth.Logout)
			r.Post("/logout-all", deps.Auth.LogoutAll)
			r.Put("/password", deps.Auth.ChangePassword)
			r.Get("/sessions", deps.Auth.ListSessions)
			r.Delete("/sessions/{sessionID}", deps.Auth.RevokeSession)
		})
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(mw.Authenticate(deps.Guard))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(deps.Authorizer, authz.PermUserManage))
			r.Put("/users/{userID}/role", deps.Admin.AssignRole)
			r.Put("/users/{userID}/active", deps.Admin.SetActive)
			r.Post("/users/{userID}/logout", deps.Admin.ForceLogout)
			r.Put("/roles/{role}/permissions", deps.Admin.SetRolePermissions)
		})

		r.With(mw.RequirePermission(deps.Authorizer, authz.PermUserRead)).
			Get("/users/{userID}/audit", deps.Audit.ListByUser)
	})

	return otelhttp.NewHandler(r, "http.server")
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}
