package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/harvestlink/harvestlink/internal/identity"
)

func gatedRequest(t *testing.T, gate func(http.Handler) http.Handler, role identity.Role) *httptest.ResponseRecorder {
	t.Helper()
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	if role != "" {
		profile := identity.Profile{ID: uuid.New(), Role: role}
		req = req.WithContext(identity.ContextWithProfile(req.Context(), profile))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareRequiresResolvedIdentity(t *testing.T) {
	m := Middleware{Resolver: NewResolver()}
	rec := gatedRequest(t, m.RequirePermission(PermProductRead), "")
	// Missing identity is an authentication problem, not an access denial.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	m := Middleware{Resolver: NewResolver()}

	rec := gatedRequest(t, m.RequirePermission(PermProductWrite), identity.RoleProduceManager)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = gatedRequest(t, m.RequirePermission(PermProductWrite), identity.RoleBuyer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = gatedRequest(t, m.RequirePermission(PermProductWrite), identity.RoleSuperAdmin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequirePermissionUnknownName(t *testing.T) {
	m := Middleware{Resolver: NewResolver()}
	rec := gatedRequest(t, m.RequirePermission("warehouse:teleport"), identity.RoleSuperAdmin)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminOnly(t *testing.T) {
	m := Middleware{Resolver: NewResolver()}

	for role, want := range map[identity.Role]int{
		identity.RoleSuperAdmin:     http.StatusNoContent,
		identity.RoleAdmin:          http.StatusNoContent,
		identity.RoleProduceManager: http.StatusForbidden,
		identity.RoleFarmer:         http.StatusForbidden,
	} {
		rec := gatedRequest(t, m.AdminOnly(), role)
		assert.Equal(t, want, rec.Code, "role %s", role)
	}
}

func TestSuperAdminOnly(t *testing.T) {
	m := Middleware{Resolver: NewResolver()}

	rec := gatedRequest(t, m.SuperAdminOnly(), identity.RoleSuperAdmin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = gatedRequest(t, m.SuperAdminOnly(), identity.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
