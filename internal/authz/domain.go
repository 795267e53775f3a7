// Package authz evaluates role and permission checks against an immutable
// hierarchy and permission table built once at construction. Dominance is a
// precomputed reachability set per role, so every check is O(1) set
// membership rather than a graph walk.
package authz

import (
	"github.com/harvestlink/harvestlink/internal/identity"
)

// Permission names declared by the rest of the system. The table below is the
// single source of truth; a name missing from it is a configuration error,
// not an access decision.
const (
	PermProductRead    = "product:read"
	PermProductWrite   = "product:write"
	PermOrderRead      = "order:read"
	PermOrderWrite     = "order:write"
	PermDeliveryAssign = "delivery:assign"
	PermFarmerSupport  = "farmer:support"
	PermBroadcastSend  = "broadcast:send"
	PermAnalyticsView  = "analytics:view"
	PermPricingWrite   = "pricing:write"
	PermUserManage     = "user:manage"
	PermRoleAssign     = "role:assign"
)

// administrativeRoles are the roles participating in the hierarchy. buyer and
// farmer hold no elevated permissions and dominate nothing.
var administrativeRoles = []identity.Role{
	identity.RoleSuperAdmin,
	identity.RoleAdmin,
	identity.RoleProduceManager,
	identity.RoleLogisticsCoordinator,
	identity.RoleFarmerSupport,
	identity.RoleCommunicationManager,
	identity.RoleAnalyticsManager,
	identity.RolePricingManager,
}

// permissionGrants maps each permission to the roles directly granted it.
// Dominance widens these at check time: admin and super_admin reach every
// grant below them without being listed.
var permissionGrants = map[string][]identity.Role{
	PermProductRead:    {identity.RoleProduceManager, identity.RolePricingManager, identity.RoleAnalyticsManager},
	PermProductWrite:   {identity.RoleProduceManager},
	PermOrderRead:      {identity.RoleLogisticsCoordinator, identity.RoleAnalyticsManager},
	PermOrderWrite:     {identity.RoleLogisticsCoordinator},
	PermDeliveryAssign: {identity.RoleLogisticsCoordinator},
	PermFarmerSupport:  {identity.RoleFarmerSupport},
	PermBroadcastSend:  {identity.RoleCommunicationManager},
	PermAnalyticsView:  {identity.RoleAnalyticsManager},
	PermPricingWrite:   {identity.RolePricingManager},
	PermUserManage:     {identity.RoleAdmin},
	PermRoleAssign:     {identity.RoleAdmin},
}

// PermissionNames lists every registered permission, for introspection.
func PermissionNames() []string {
	names := make([]string, 0, len(permissionGrants))
	for name := range permissionGrants {
		names = append(names, name)
	}
	return names
}
