package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/harvestlink/harvestlink/internal/authn"
	"github.com/harvestlink/harvestlink/internal/authz"
	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/observability"
	"github.com/harvestlink/harvestlink/internal/twofactor"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Verifier         *authn.Verifier
	Authz            authz.Middleware
	AuthHandler      *authn.Handler
	TwoFactorHandler *twofactor.Handler
	IdentityHandler  *identity.Handler
	PermsHandler     *authz.PermissionsHandler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router. Every protected group passes the same
// gate: credential verification first, then role or permission checks, then
// the handler.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Credential endpoints stay outside the gate with a tighter rate limit,
	// keyed by IP, since they are the brute-force surface.
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			params.AuthHandler.MountRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.Verifier.Middleware)
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Verifier.Middleware)

		r.Route("/2fa", params.TwoFactorHandler.MountRoutes)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(params.Authz.RequirePermission(authz.PermUserManage))
				params.IdentityHandler.MountReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(params.Authz.RequirePermission(authz.PermRoleAssign))
				params.IdentityHandler.MountRoleRoutes(r)
			})
		})

		if params.PermsHandler != nil {
			r.Route("/permissions", params.PermsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
