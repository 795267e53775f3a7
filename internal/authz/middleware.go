package authz

import (
	"log/slog"
	"net/http"

	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/platform/httpx"
	"github.com/harvestlink/harvestlink/internal/shared"
)

// Middleware wires role and permission checks for HTTP handlers. Checks
// compose with logical AND: stacking several means all must pass. Every check
// requires a resolved identity in context; its absence is always
// "authentication required", never an access denial.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireRoles grants when the current identity's role is in the required set
// or dominates a member of it.
func (m Middleware) RequireRoles(required ...identity.Role) func(http.Handler) http.Handler {
	return m.check(func(role identity.Role) error {
		return m.Resolver.CheckRole(role, required...)
	})
}

// RequirePermission grants when the current identity's role is granted the
// named permission, directly or through dominance.
func (m Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	return m.check(func(role identity.Role) error {
		return m.Resolver.CheckPermission(role, name)
	})
}

// AdminOnly restricts a route to admin and super_admin.
func (m Middleware) AdminOnly() func(http.Handler) http.Handler {
	return m.RequireRoles(identity.RoleAdmin, identity.RoleSuperAdmin)
}

// SuperAdminOnly restricts a route to super_admin.
func (m Middleware) SuperAdminOnly() func(http.Handler) http.Handler {
	return m.RequireRoles(identity.RoleSuperAdmin)
}

func (m Middleware) check(evaluate func(identity.Role) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := identity.ProfileFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.Unauthenticated(shared.ReasonTokenMissing, "authentication required"))
				return
			}
			if err := evaluate(profile.Role); err != nil {
				if shared.KindOf(err) == shared.KindConfiguration && m.Logger != nil {
					m.Logger.Error("authz misconfiguration",
						slog.String("path", r.URL.Path),
						slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
