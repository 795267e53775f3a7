package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harvestlink/harvestlink/internal/shared"
)

const identityColumns = `id, name, email, password_hash, role, phone, farm_name, location, is_verified, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for identities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByID fetches a single identity. Returns shared.ErrNotFound when the
// account does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// FindByEmail fetches an identity by its unique email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	return scanIdentity(row)
}

// List returns all identities ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Create inserts a new identity record.
func (r *Repository) Create(ctx context.Context, id Identity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities (id, name, email, password_hash, role, phone, farm_name, location, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id.ID, id.Name, id.Email, id.PasswordHash, id.Role, id.Phone, id.FarmName, id.Location, id.IsVerified)
	return err
}

// UpdateProfile mutates the mutable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, farmName, location string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identities
		SET name = $2, phone = $3, farm_name = $4, location = $5, updated_at = now()
		WHERE id = $1
	`, id, name, phone, farmName, location)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE identities SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateRole changes the account role. Callers gate this behind
// administrative checks; the repository does not.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE identities SET role = $2, updated_at = now() WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PasswordHashByID returns only the stored hash, for re-proof checks that
// must not load the hash into a Profile.
func (r *Repository) PasswordHashByID(ctx context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT password_hash FROM identities WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	return hash, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (Identity, error) {
	var id Identity
	err := row.Scan(
		&id.ID, &id.Name, &id.Email, &id.PasswordHash, &id.Role,
		&id.Phone, &id.FarmName, &id.Location, &id.IsVerified,
		&id.CreatedAt, &id.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, shared.ErrNotFound
	}
	return id, err
}
