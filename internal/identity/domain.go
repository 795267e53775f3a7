package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is one of a fixed closed set of account roles. Exactly one role is
// held per identity at any time.
type Role string

const (
	RoleSuperAdmin           Role = "super_admin"
	RoleAdmin                Role = "admin"
	RoleProduceManager       Role = "produce_manager"
	RoleLogisticsCoordinator Role = "logistics_coordinator"
	RoleFarmerSupport        Role = "farmer_support"
	RoleCommunicationManager Role = "communication_manager"
	RoleAnalyticsManager     Role = "analytics_manager"
	RolePricingManager       Role = "pricing_manager"
	RoleBuyer                Role = "buyer"
	RoleFarmer               Role = "farmer"
)

// Roles lists every member of the closed set.
func Roles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleAdmin,
		RoleProduceManager,
		RoleLogisticsCoordinator,
		RoleFarmerSupport,
		RoleCommunicationManager,
		RoleAnalyticsManager,
		RolePricingManager,
		RoleBuyer,
		RoleFarmer,
	}
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// Identity is the full account record. The password hash never leaves the
// repository/service layer; request handling only ever sees a Profile.
type Identity struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Phone        string
	FarmName     string
	Location     string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the request-scoped projection of an identity. It deliberately
// excludes the password hash.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Phone      string    `json:"phone,omitempty"`
	FarmName   string    `json:"farm_name,omitempty"`
	Location   string    `json:"location,omitempty"`
	IsVerified bool      `json:"is_verified"`
}

// ProfileOf projects an identity down to its request-safe fields.
func ProfileOf(id Identity) Profile {
	return Profile{
		ID:         id.ID,
		Name:       id.Name,
		Email:      id.Email,
		Role:       id.Role,
		Phone:      id.Phone,
		FarmName:   id.FarmName,
		Location:   id.Location,
		IsVerified: id.IsVerified,
	}
}

type profileContextKey struct{}

// ContextWithProfile threads the resolved identity through the request
// context. The value is immutable; handlers receive a copy.
func ContextWithProfile(ctx context.Context, p Profile) context.Context {
	return context.WithValue(ctx, profileContextKey{}, p)
}

// ProfileFromContext extracts the resolved identity, if any.
func ProfileFromContext(ctx context.Context) (Profile, bool) {
	p, ok := ctx.Value(profileContextKey{}).(Profile)
	return p, ok
}
