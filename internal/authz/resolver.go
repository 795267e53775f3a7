package authz

import (
	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/shared"
)

type roleSet map[identity.Role]struct{}

// Resolver answers role and permission checks. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	dominance   map[identity.Role]roleSet
	permissions map[string][]identity.Role
}

// NewResolver precomputes the dominance sets from the static tables.
func NewResolver() *Resolver {
	dominance := make(map[identity.Role]roleSet, len(identity.Roles()))
	for _, role := range identity.Roles() {
		dominance[role] = roleSet{role: {}}
	}
	// super_admin dominates every administrative role; admin dominates all
	// of them except super_admin; the rest dominate only themselves.
	for _, role := range administrativeRoles {
		dominance[identity.RoleSuperAdmin][role] = struct{}{}
		if role != identity.RoleSuperAdmin {
			dominance[identity.RoleAdmin][role] = struct{}{}
		}
	}
	perms := make(map[string][]identity.Role, len(permissionGrants))
	for name, roles := range permissionGrants {
		granted := make([]identity.Role, len(roles))
		copy(granted, roles)
		perms[name] = granted
	}
	return &Resolver{dominance: dominance, permissions: perms}
}

// Dominates reports whether actor is equivalent to or senior over target.
func (r *Resolver) Dominates(actor, target identity.Role) bool {
	set, ok := r.dominance[actor]
	if !ok {
		return false
	}
	_, ok = set[target]
	return ok
}

// CheckRole grants when the actor's role is in the required set or dominates
// a member of it.
func (r *Resolver) CheckRole(actor identity.Role, required ...identity.Role) error {
	for _, want := range required {
		if r.Dominates(actor, want) {
			return nil
		}
	}
	return shared.Forbidden("role not permitted for this operation")
}

// CheckPermission grants when the actor's role is directly granted the named
// permission or dominates a granted role. An unregistered name fails closed
// as a configuration error, reported distinctly from access denial.
func (r *Resolver) CheckPermission(actor identity.Role, name string) error {
	granted, ok := r.permissions[name]
	if !ok {
		return shared.Configuration("permission not registered: " + name)
	}
	for _, role := range granted {
		if r.Dominates(actor, role) {
			return nil
		}
	}
	return shared.Forbidden("permission denied: " + name)
}

// GrantedRoles returns the roles directly granted a permission, for
// introspection endpoints. The second return is false for unknown names.
func (r *Resolver) GrantedRoles(name string) ([]identity.Role, bool) {
	granted, ok := r.permissions[name]
	if !ok {
		return nil, false
	}
	out := make([]identity.Role, len(granted))
	copy(out, granted)
	return out, true
}
