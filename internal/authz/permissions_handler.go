package authz

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/platform/httpx"
)

// PermissionsHandler exposes the permission table read-only, so operators can
// see which roles a capability resolves to.
type PermissionsHandler struct {
	logger   *slog.Logger
	resolver *Resolver
	authz    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, resolver *Resolver, authz Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, resolver: resolver, authz: authz}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.AdminOnly())
		r.Get("/", h.listPermissions)
	})
}

type permissionEntry struct {
	Name  string          `json:"name"`
	Roles []identity.Role `json:"roles"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	names := PermissionNames()
	sort.Strings(names)
	entries := make([]permissionEntry, 0, len(names))
	for _, name := range names {
		roles, _ := h.resolver.GrantedRoles(name)
		entries = append(entries, permissionEntry{Name: name, Roles: roles})
	}
	httpx.JSON(w, http.StatusOK, entries)
}
