package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/db"
	"github.com/spotreel/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, external_id, COALESCE(display_name, ''), points, agreed_to_eula, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.ExternalID, &user.DisplayName, &user.Points, &user.AgreedToEULA, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, apperr.ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// GetOrCreateByExternalID resolves the account for an identity-provider
// subject, creating it on first authenticated request.
func (r *PostgresUserRepository) GetOrCreateByExternalID(ctx context.Context, externalID string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	now := time.Now().UTC()
	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, external_id, points, agreed_to_eula, created_at, updated_at)
        VALUES ($1, $2, 0, FALSE, $3, $3)
        ON CONFLICT (external_id) DO NOTHING
    `, uuid.NewString(), externalID, now)
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	return scanUser(row)
}

// ByID fetches a user by internal id.
func (r *PostgresUserRepository) ByID(ctx context.Context, userID string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// ByExternalID fetches a user by the identity provider's stable id.
func (r *PostgresUserRepository) ByExternalID(ctx context.Context, externalID string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	return scanUser(row)
}

// ProfileUpdate carries the owner-mutable profile fields; nil means leave
// unchanged.
type ProfileUpdate struct {
	DisplayName  *string
	AgreedToEULA *bool
}

// UpdateProfile applies a profile mutation. A display name colliding with
// another user's yields ErrConflict.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	displayName := sql.NullString{}
	if update.DisplayName != nil {
		displayName = sql.NullString{Valid: true, String: *update.DisplayName}
	}
	agreed := sql.NullBool{}
	if update.AgreedToEULA != nil {
		agreed = sql.NullBool{Valid: true, Bool: *update.AgreedToEULA}
	}

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET display_name = CASE WHEN $2::bool THEN NULLIF($3, '') ELSE display_name END,
            agreed_to_eula = COALESCE($4, agreed_to_eula),
            updated_at = $5
        WHERE id = $1
    `, userID, update.DisplayName != nil, displayName.String, agreed, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.User{}, apperr.ErrNotFound
	}

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// Delete removes the user row; videos and relation rows cascade at the
// storage layer.
func (r *PostgresUserRepository) Delete(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
