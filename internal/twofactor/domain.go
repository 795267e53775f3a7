package twofactor

import (
	"time"

	"github.com/google/uuid"
)

// Status is the per-identity second-factor state.
type Status string

const (
	// StatusDisabled means no second factor is configured.
	StatusDisabled Status = "disabled"
	// StatusPendingSetup means a secret was issued but the authenticator has
	// not yet proven it can produce a valid code.
	StatusPendingSetup Status = "pending_setup"
	// StatusEnabled means verification is required at login.
	StatusEnabled Status = "enabled"
)

// backupCodeCount is the fixed batch size issued at enrollment and on
// regeneration.
const backupCodeCount = 8

// Record is the stored second-factor state for one identity.
type Record struct {
	IdentityID  uuid.UUID
	Secret      []byte
	Status      Status
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Enrollment is returned once at enroll time. The backup codes appear in
// plaintext here and nowhere else; only their hashes are stored.
type Enrollment struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}
