package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harvestlink/harvestlink/internal/shared"
	_ "github.com/harvestlink/harvestlink/testing"
)

type memStore struct {
	byID    map[uuid.UUID]Identity
	byEmail map[string]uuid.UUID
	findErr error
}

func newMemStore() *memStore {
	return &memStore{
		byID:    make(map[uuid.UUID]Identity),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (m *memStore) FindByID(ctx context.Context, id uuid.UUID) (Identity, error) {
	if m.findErr != nil {
		return Identity{}, m.findErr
	}
	record, ok := m.byID[id]
	if !ok {
		return Identity{}, shared.ErrNotFound
	}
	return record, nil
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (Identity, error) {
	id, ok := m.byEmail[email]
	if !ok {
		return Identity{}, shared.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memStore) List(ctx context.Context) ([]Identity, error) {
	out := make([]Identity, 0, len(m.byID))
	for _, record := range m.byID {
		out = append(out, record)
	}
	return out, nil
}

func (m *memStore) Create(ctx context.Context, id Identity) error {
	if _, exists := m.byEmail[id.Email]; exists {
		return &pgconn.PgError{Code: "23505"}
	}
	m.byID[id.ID] = id
	m.byEmail[id.Email] = id.ID
	return nil
}

func (m *memStore) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, farmName, location string) error {
	record, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	record.Name, record.Phone, record.FarmName, record.Location = name, phone, farmName, location
	m.byID[id] = record
	return nil
}

func (m *memStore) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	record, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	record.PasswordHash = hash
	m.byID[id] = record
	return nil
}

func (m *memStore) UpdateRole(ctx context.Context, id uuid.UUID, role Role) error {
	record, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	record.Role = role
	m.byID[id] = record
	return nil
}

func (m *memStore) PasswordHashByID(ctx context.Context, id uuid.UUID) (string, error) {
	record, ok := m.byID[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	return record.PasswordHash, nil
}

func seedAccount(t *testing.T, store *memStore, email, password string, role Role) uuid.UUID {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, store.Create(context.Background(), Identity{
		ID:           id,
		Name:         "Seed Account",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}))
	return id
}

func TestRegister(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	profile, err := svc.Register(ctx, RegisterParams{
		Name:     "  Amara Diallo ",
		Email:    " Amara@Harvest.Test ",
		Password: "green beans",
		Role:     RoleFarmer,
		FarmName: "Sunrise Acres",
	})
	require.NoError(t, err)
	assert.Equal(t, "Amara Diallo", profile.Name)
	assert.Equal(t, "amara@harvest.test", profile.Email)
	assert.Equal(t, RoleFarmer, profile.Role)
	assert.Equal(t, "Sunrise Acres", profile.FarmName)

	// The stored hash never appears in the projection, and is not the
	// plaintext password.
	stored := store.byID[profile.ID]
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotEqual(t, "green beans", stored.PasswordHash)
}

func TestRegisterDefaultsToBuyer(t *testing.T) {
	svc := NewService(newMemStore())
	profile, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Ben",
		Email:    "ben@harvest.test",
		Password: "pw123456",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleBuyer, profile.Role)
}

func TestRegisterRejectsElevatedRoles(t *testing.T) {
	svc := NewService(newMemStore())
	for _, role := range []Role{RoleAdmin, RoleSuperAdmin, RoleProduceManager} {
		_, err := svc.Register(context.Background(), RegisterParams{
			Name:     "Mallory",
			Email:    "mallory@harvest.test",
			Password: "pw123456",
			Role:     role,
		})
		require.Error(t, err, "role %s must not self-register", role)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterParams{Name: "A", Email: "dup@harvest.test", Password: "pw123456"})
	require.NoError(t, err)

	// Differently-cased input normalizes to the same address.
	_, err = svc.Register(ctx, RegisterParams{Name: "B", Email: "DUP@Harvest.Test", Password: "pw123456"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAuthenticate(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()
	seedAccount(t, store, "amara@harvest.test", "green beans", RoleFarmer)

	id, err := svc.Authenticate(ctx, "Amara@Harvest.Test", "green beans")
	require.NoError(t, err)
	assert.Equal(t, RoleFarmer, id.Role)

	// Wrong password and unknown email fail identically.
	_, err = svc.Authenticate(ctx, "amara@harvest.test", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@harvest.test", "green beans")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestResolve(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := seedAccount(t, store, "amara@harvest.test", "green beans", RoleFarmer)

	profile, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, profile.ID)

	// A deleted account resolves to an authentication failure with its own
	// reason, so the client discards the token.
	err = func() error { _, err := svc.Resolve(ctx, uuid.New()); return err }()
	require.Error(t, err)
	assert.Equal(t, shared.KindUnauthenticated, shared.KindOf(err))
	assert.Equal(t, shared.ReasonUserNotFound, shared.ReasonOf(err))

	// A store outage is never reported as unauthenticated.
	store.findErr = errors.New("connection refused")
	_, err = svc.Resolve(ctx, id)
	require.Error(t, err)
	assert.Equal(t, shared.KindInternal, shared.KindOf(err))
}

func TestChangePassword(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := seedAccount(t, store, "amara@harvest.test", "green beans", RoleFarmer)

	err := svc.ChangePassword(ctx, id, "wrong", "new password")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, id, "green beans", "new password"))

	_, err = svc.Authenticate(ctx, "amara@harvest.test", "green beans")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "amara@harvest.test", "new password")
	require.NoError(t, err)
}

func TestChangeRole(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := seedAccount(t, store, "amara@harvest.test", "green beans", RoleFarmer)

	require.NoError(t, svc.ChangeRole(ctx, id, RoleFarmerSupport))
	profile, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RoleFarmerSupport, profile.Role)

	require.Error(t, svc.ChangeRole(ctx, id, Role("warlord")))
}

func TestVerifyPassword(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := seedAccount(t, store, "amara@harvest.test", "green beans", RoleFarmer)

	require.NoError(t, svc.VerifyPassword(ctx, id, "green beans"))
	assert.ErrorIs(t, svc.VerifyPassword(ctx, id, "wrong"), shared.ErrInvalidCredentials)
	assert.ErrorIs(t, svc.VerifyPassword(ctx, uuid.New(), "green beans"), shared.ErrInvalidCredentials)
}
