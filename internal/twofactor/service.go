package twofactor

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/harvestlink/harvestlink/internal/shared"
)

// ErrAlreadyEnabled indicates enrollment was attempted on an account whose
// second factor is already active.
var ErrAlreadyEnabled = errors.New("twofactor: already enabled")

// ErrNotEnabled indicates an operation requiring an active second factor.
var ErrNotEnabled = errors.New("twofactor: not enabled")

// Store defines persistence operations the engine depends on.
type Store interface {
	Get(ctx context.Context, identityID uuid.UUID) (*Record, error)
	UpsertSecret(ctx context.Context, identityID uuid.UUID, secret []byte) error
	MarkEnabled(ctx context.Context, identityID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, identityID uuid.UUID) error
	ReplaceBackupCodes(ctx context.Context, identityID uuid.UUID, hashes []string) error
	ConsumeBackupCode(ctx context.Context, identityID uuid.UUID, hash string, at time.Time) (bool, error)
}

var _ Store = (*Repository)(nil)

// PasswordVerifier re-proves the account password for the disable operation.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, id uuid.UUID, password string) error
}

// Notifier receives security-relevant state transitions. Implementations must
// not block the request path.
type Notifier interface {
	SecurityEvent(ctx context.Context, identityID uuid.UUID, event string)
}

// Observer records verification outcomes for metrics. Implementations must be
// cheap; Verify calls it on every submission.
type Observer interface {
	SecondFactorVerification(outcome string)
}

// ServiceConfig tunes the engine.
type ServiceConfig struct {
	// Issuer is the label shown in authenticator apps.
	Issuer string
	// MaxAttempts failed verifications per cooldown window before further
	// submissions are rejected outright.
	MaxAttempts int
	Cooldown    time.Duration
	// Observer may be nil.
	Observer Observer
}

// Service implements the second-factor state machine:
// disabled -> pending_setup -> enabled, with enabled -> disabled via
// Disable and backup-code regeneration leaving the state untouched.
type Service struct {
	store     Store
	passwords PasswordVerifier
	limiter   *attemptLimiter
	notifier  Notifier
	observer  Observer
	issuer    string
	now       func() time.Time
}

// NewService constructs the engine. The redis client backs the failure
// throttle and may be nil to disable throttling.
func NewService(store Store, passwords PasswordVerifier, client *redis.Client, notifier Notifier, cfg ServiceConfig) *Service {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "HarvestLink"
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &Service{
		store:     store,
		passwords: passwords,
		limiter:   newAttemptLimiter(client, maxAttempts, cooldown),
		notifier:  notifier,
		observer:  cfg.Observer,
		issuer:    issuer,
		now:       time.Now,
	}
}

// Status returns the current state for an identity.
func (s *Service) Status(ctx context.Context, identityID uuid.UUID) (Status, error) {
	record, err := s.store.Get(ctx, identityID)
	if err != nil {
		return "", shared.Internal("second-factor lookup failed", err)
	}
	if record == nil {
		return StatusDisabled, nil
	}
	return record.Status, nil
}

// Enabled reports whether verification is required at login.
func (s *Service) Enabled(ctx context.Context, identityID uuid.UUID) (bool, error) {
	status, err := s.Status(ctx, identityID)
	if err != nil {
		return false, err
	}
	return status == StatusEnabled, nil
}

// Enroll issues a fresh secret, provisioning URI, and backup-code batch. The
// account stays pending until the first successful Verify proves the
// authenticator produces valid codes. Re-enrolling before that replaces the
// secret; enrolling an enabled account is rejected.
func (s *Service) Enroll(ctx context.Context, identityID uuid.UUID, account string) (*Enrollment, error) {
	record, err := s.store.Get(ctx, identityID)
	if err != nil {
		return nil, shared.Internal("second-factor lookup failed", err)
	}
	if record != nil && record.Status == StatusEnabled {
		return nil, ErrAlreadyEnabled
	}
	secretRaw, secretBase32, err := generateSecret()
	if err != nil {
		return nil, shared.Internal("secret generation failed", err)
	}
	if err := s.store.UpsertSecret(ctx, identityID, secretRaw); err != nil {
		return nil, shared.Internal("secret persistence failed", err)
	}
	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, shared.Internal("backup code generation failed", err)
	}
	if err := s.store.ReplaceBackupCodes(ctx, identityID, hashes); err != nil {
		return nil, shared.Internal("backup code persistence failed", err)
	}
	return &Enrollment{
		Secret:          secretBase32,
		ProvisioningURI: provisioningURI(s.issuer, account, secretBase32),
		BackupCodes:     codes,
	}, nil
}

// Verify accepts either a time-based code within the skew window or an
// unused backup code, consumed exactly once. The first success on a pending
// account completes enrollment. Rejections are uniform: the caller never
// learns whether the code was wrong, expired, or already used.
func (s *Service) Verify(ctx context.Context, identityID uuid.UUID, code string) error {
	if err := s.limiter.Check(ctx, identityID); err != nil {
		if errors.Is(err, errTooManyAttempts) {
			s.observe("throttled")
			return shared.SecondFactorInvalid()
		}
		return shared.Internal("attempt limiter unavailable", err)
	}
	record, err := s.store.Get(ctx, identityID)
	if err != nil {
		return shared.Internal("second-factor lookup failed", err)
	}
	if record == nil || record.Status == StatusDisabled {
		s.observe("invalid")
		return shared.SecondFactorInvalid()
	}

	ok, err := verifyTOTP(record.Secret, code, s.now())
	if err != nil {
		return shared.Internal("code verification failed", err)
	}
	if ok {
		if record.Status == StatusPendingSetup {
			if err := s.store.MarkEnabled(ctx, identityID, s.now()); err != nil {
				return shared.Internal("enrollment completion failed", err)
			}
			s.notify(ctx, identityID, "two_factor_enabled")
		}
		s.limiter.Reset(ctx, identityID)
		s.observe("ok")
		return nil
	}

	// Backup codes are a fallback for a lost authenticator; a pending
	// account has not proven its authenticator yet, so only the TOTP path
	// can complete enrollment.
	if record.Status == StatusEnabled && looksLikeBackupCode(code) {
		consumed, err := s.store.ConsumeBackupCode(ctx, identityID, hashBackupCode(code), s.now())
		if err != nil {
			return shared.Internal("backup code consumption failed", err)
		}
		if consumed {
			s.limiter.Reset(ctx, identityID)
			s.observe("backup_code")
			return nil
		}
	}

	s.limiter.RecordFailure(ctx, identityID)
	s.observe("invalid")
	return shared.SecondFactorInvalid()
}

// Disable turns the second factor off after re-proving the account password,
// so a hijacked session without the password cannot silently remove it.
func (s *Service) Disable(ctx context.Context, identityID uuid.UUID, password string) error {
	record, err := s.store.Get(ctx, identityID)
	if err != nil {
		return shared.Internal("second-factor lookup failed", err)
	}
	if record == nil || record.Status == StatusDisabled {
		return ErrNotEnabled
	}
	if err := s.passwords.VerifyPassword(ctx, identityID, password); err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			return shared.ErrInvalidCredentials
		}
		return shared.Internal("password verification failed", err)
	}
	if err := s.store.Delete(ctx, identityID); err != nil {
		return shared.Internal("second-factor removal failed", err)
	}
	s.limiter.Reset(ctx, identityID)
	s.notify(ctx, identityID, "two_factor_disabled")
	return nil
}

// RegenerateBackupCodes invalidates every existing code and issues a fresh
// batch. State stays enabled.
func (s *Service) RegenerateBackupCodes(ctx context.Context, identityID uuid.UUID) ([]string, error) {
	record, err := s.store.Get(ctx, identityID)
	if err != nil {
		return nil, shared.Internal("second-factor lookup failed", err)
	}
	if record == nil || record.Status != StatusEnabled {
		return nil, ErrNotEnabled
	}
	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, shared.Internal("backup code generation failed", err)
	}
	if err := s.store.ReplaceBackupCodes(ctx, identityID, hashes); err != nil {
		return nil, shared.Internal("backup code persistence failed", err)
	}
	s.notify(ctx, identityID, "backup_codes_regenerated")
	return codes, nil
}

func (s *Service) notify(ctx context.Context, identityID uuid.UUID, event string) {
	if s.notifier != nil {
		s.notifier.SecurityEvent(ctx, identityID, event)
	}
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.SecondFactorVerification(outcome)
	}
}

// Backup codes are 10-digit numeric strings, long enough that guessing is
// throttled away by the attempt limiter.
const backupCodeDigits = 10

func generateBackupCodes() ([]string, []string, error) {
	codes := make([]string, 0, backupCodeCount)
	hashes := make([]string, 0, backupCodeCount)
	seen := make(map[string]struct{}, backupCodeCount)
	for len(codes) < backupCodeCount {
		code, err := randomNumericCode(backupCodeDigits)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		hashes = append(hashes, hashBackupCode(code))
	}
	return codes, hashes, nil
}

func randomNumericCode(digits int) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	n := binary.BigEndian.Uint64(buf[:]) % mod
	return fmt.Sprintf("%0*d", digits, n), nil
}

func hashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func looksLikeBackupCode(code string) bool {
	return len(code) == backupCodeDigits && isNumeric(code)
}
