package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/shared"
)

func TestDominance(t *testing.T) {
	r := NewResolver()

	// Every role dominates itself.
	for _, role := range identity.Roles() {
		assert.True(t, r.Dominates(role, role), "role %s should dominate itself", role)
	}

	// super_admin reaches every administrative role.
	for _, role := range administrativeRoles {
		assert.True(t, r.Dominates(identity.RoleSuperAdmin, role))
	}

	// admin reaches every administrative role except super_admin.
	assert.False(t, r.Dominates(identity.RoleAdmin, identity.RoleSuperAdmin))
	assert.True(t, r.Dominates(identity.RoleAdmin, identity.RoleProduceManager))
	assert.True(t, r.Dominates(identity.RoleAdmin, identity.RolePricingManager))

	// Specialists dominate nothing but themselves.
	assert.False(t, r.Dominates(identity.RoleProduceManager, identity.RoleLogisticsCoordinator))
	assert.False(t, r.Dominates(identity.RoleFarmerSupport, identity.RoleAdmin))

	// buyer and farmer hold no elevated reach at all.
	assert.False(t, r.Dominates(identity.RoleBuyer, identity.RoleFarmer))
	assert.False(t, r.Dominates(identity.RoleFarmer, identity.RoleBuyer))

	// Unknown role fails closed.
	assert.False(t, r.Dominates(identity.Role("ghost"), identity.RoleBuyer))
}

func TestCheckRole(t *testing.T) {
	r := NewResolver()

	require.NoError(t, r.CheckRole(identity.RoleSuperAdmin, identity.RoleProduceManager))
	require.NoError(t, r.CheckRole(identity.RoleAdmin, identity.RoleAdmin, identity.RoleSuperAdmin))
	require.NoError(t, r.CheckRole(identity.RoleBuyer, identity.RoleBuyer))

	err := r.CheckRole(identity.RoleBuyer, identity.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestCheckPermission(t *testing.T) {
	r := NewResolver()

	// Direct grant.
	require.NoError(t, r.CheckPermission(identity.RoleProduceManager, PermProductWrite))
	// Reached through dominance without an explicit grant.
	require.NoError(t, r.CheckPermission(identity.RoleAdmin, PermProductWrite))
	require.NoError(t, r.CheckPermission(identity.RoleSuperAdmin, PermRoleAssign))

	// A specialist does not leak into a sibling's grants.
	err := r.CheckPermission(identity.RoleProduceManager, PermOrderWrite)
	require.Error(t, err)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))

	// buyer holds no permission at all.
	for _, name := range PermissionNames() {
		err := r.CheckPermission(identity.RoleBuyer, name)
		require.Error(t, err, "buyer must not hold %s", name)
		assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
	}
}

func TestSuperAdminHoldsEveryPermission(t *testing.T) {
	r := NewResolver()
	for _, name := range PermissionNames() {
		require.NoError(t, r.CheckPermission(identity.RoleSuperAdmin, name))
	}
}

func TestUnknownPermissionIsConfigurationError(t *testing.T) {
	r := NewResolver()
	err := r.CheckPermission(identity.RoleSuperAdmin, "warehouse:teleport")
	require.Error(t, err)
	// Fails closed as a misconfiguration, never presented as an access denial.
	assert.Equal(t, shared.KindConfiguration, shared.KindOf(err))
}

func TestGrantedRoles(t *testing.T) {
	r := NewResolver()

	granted, ok := r.GrantedRoles(PermBroadcastSend)
	require.True(t, ok)
	assert.Equal(t, []identity.Role{identity.RoleCommunicationManager}, granted)

	_, ok = r.GrantedRoles("warehouse:teleport")
	assert.False(t, ok)

	// Returned slice is a copy; mutating it must not poison the table.
	granted[0] = identity.RoleBuyer
	again, ok := r.GrantedRoles(PermBroadcastSend)
	require.True(t, ok)
	assert.Equal(t, []identity.Role{identity.RoleCommunicationManager}, again)
}
