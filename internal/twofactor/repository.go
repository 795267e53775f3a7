package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harvestlink/harvestlink/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for second-factor state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the second-factor record for an identity, or nil when none
// exists (status disabled).
func (r *Repository) Get(ctx context.Context, identityID uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT identity_id, secret, status, confirmed_at, created_at, updated_at
		FROM two_factor WHERE identity_id = $1
	`, identityID)
	var rec Record
	var status string
	if err := row.Scan(&rec.IdentityID, &rec.Secret, &status, &rec.ConfirmedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}

// UpsertSecret stores a fresh secret and resets the record to pending_setup.
// Re-enrolling before confirmation simply replaces the secret.
func (r *Repository) UpsertSecret(ctx context.Context, identityID uuid.UUID, secret []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO two_factor (identity_id, secret, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_id)
		DO UPDATE SET secret = EXCLUDED.secret,
		              status = EXCLUDED.status,
		              confirmed_at = NULL,
		              updated_at = now()
	`, identityID, secret, StatusPendingSetup)
	return err
}

// MarkEnabled completes enrollment after the first successful verification.
func (r *Repository) MarkEnabled(ctx context.Context, identityID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE two_factor SET status = $2, confirmed_at = $3, updated_at = now()
		WHERE identity_id = $1
	`, identityID, StatusEnabled, at)
	return err
}

// Delete removes the second-factor record and every backup code.
func (r *Repository) Delete(ctx context.Context, identityID uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM two_factor WHERE identity_id = $1`, identityID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE identity_id = $1`, identityID)
		return err
	})
}

// ReplaceBackupCodes atomically invalidates all existing codes and inserts
// the new batch of hashes.
func (r *Repository) ReplaceBackupCodes(ctx context.Context, identityID uuid.UUID, hashes []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE identity_id = $1`, identityID); err != nil {
			return err
		}
		var batch pgx.Batch
		for _, h := range hashes {
			batch.Queue(`INSERT INTO backup_codes (identity_id, code_hash) VALUES ($1, $2)`, identityID, h)
		}
		results := tx.SendBatch(ctx, &batch)
		for range hashes {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return err
			}
		}
		return results.Close()
	})
}

// ConsumeBackupCode marks an unused code as used. The conditional update is
// the atomicity guarantee: two concurrent submissions of the same code see
// exactly one row affected between them.
func (r *Repository) ConsumeBackupCode(ctx context.Context, identityID uuid.UUID, hash string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE backup_codes SET used_at = $3
		WHERE identity_id = $1 AND code_hash = $2 AND used_at IS NULL
	`, identityID, hash, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
