package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/harvestlink/harvestlink/internal/shared"
)

// ErrDuplicateEmail indicates the email is already registered.
var ErrDuplicateEmail = errors.New("identity: email already registered")

// Store defines persistence operations the service depends on.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	List(ctx context.Context) ([]Identity, error)
	Create(ctx context.Context, id Identity) error
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, farmName, location string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
	PasswordHashByID(ctx context.Context, id uuid.UUID) (string, error)
}

var _ Store = (*Repository)(nil)

// Service wraps identity business rules.
type Service struct {
	store Store
}

// NewService constructs a new Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// RegisterParams collects registration input. Validation happens at the
// handler layer; the service normalizes and persists.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Role     Role
	Phone    string
	FarmName string
	Location string
}

// Register creates a new account with a bcrypt password hash. Only the
// ordinary roles may self-register; administrative roles are assigned later
// through ChangeRole.
func (s *Service) Register(ctx context.Context, p RegisterParams) (Profile, error) {
	role := p.Role
	if role == "" {
		role = RoleBuyer
	}
	if role != RoleBuyer && role != RoleFarmer {
		return Profile{}, errors.New("identity: self-registration limited to buyer and farmer roles")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, err
	}
	id := Identity{
		ID:           uuid.New(),
		Name:         normalizeName(p.Name),
		Email:        NormalizeEmail(p.Email),
		PasswordHash: string(hash),
		Role:         role,
		Phone:        strings.TrimSpace(p.Phone),
		FarmName:     strings.TrimSpace(p.FarmName),
		Location:     strings.TrimSpace(p.Location),
	}
	if err := s.store.Create(ctx, id); err != nil {
		if isUniqueViolation(err) {
			return Profile{}, ErrDuplicateEmail
		}
		return Profile{}, err
	}
	return ProfileOf(id), nil
}

// Authenticate validates email/password credentials and returns the full
// identity for the login flow. Failures are uniform so callers cannot probe
// which emails exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	id, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Identity{}, shared.ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)); err != nil {
		return Identity{}, shared.ErrInvalidCredentials
	}
	return id, nil
}

// Resolve re-fetches the live account for a verified token subject. The
// projection reflects current state, not token claims, so role downgrades
// and deletions take effect immediately.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (Profile, error) {
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Profile{}, shared.Unauthenticated(shared.ReasonUserNotFound, "user not found")
		}
		return Profile{}, shared.Internal("identity lookup failed", err)
	}
	return ProfileOf(record), nil
}

// VerifyPassword re-proves the account password, for operations like 2FA
// disable that must not be possible from a hijacked session alone.
func (s *Service) VerifyPassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := s.store.PasswordHashByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrInvalidCredentials
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}

// UpdateProfile mutates the account's profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, farmName, location string) error {
	return s.store.UpdateProfile(ctx, id, normalizeName(name), strings.TrimSpace(phone), strings.TrimSpace(farmName), strings.TrimSpace(location))
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if err := s.VerifyPassword(ctx, id, current); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, id, string(hash))
}

// ChangeRole assigns a new role. Authorization is the request gate's job.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, role Role) error {
	if !role.Valid() {
		return errors.New("identity: unknown role")
	}
	return s.store.UpdateRole(ctx, id, role)
}

// List returns profiles of all accounts for administration views.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, len(records))
	for i, record := range records {
		profiles[i] = ProfileOf(record)
	}
	return profiles, nil
}

// Get returns a single profile by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return ProfileOf(record), nil
}

// NormalizeEmail lowercases and trims an address for unique comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
