package repositories

import (
	"context"
	"fmt"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/db"
	"github.com/spotreel/backend/internal/models"
	"github.com/spotreel/backend/internal/social"
)

// PostgresSocialStore provides persistence for buddy requests, buddy edges
// and the block relation the visibility filter reads.
type PostgresSocialStore struct {
	pool db.Pool
}

// NewPostgresSocialStore constructs a social graph store backed by PostgreSQL.
func NewPostgresSocialStore(pool db.Pool) *PostgresSocialStore {
	return &PostgresSocialStore{pool: pool}
}

// CreateRequest persists a pending buddy request.
func (s *PostgresSocialStore) CreateRequest(ctx context.Context, request models.BuddyRequest) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO buddy_requests (id, sender_id, receiver_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, request.ID, request.SenderID, request.ReceiverID, request.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return social.ErrDuplicateRequest
		}
		if isForeignKeyViolation(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("insert buddy request: %w", err)
	}
	return nil
}

// RequestByID fetches a pending buddy request.
func (s *PostgresSocialStore) RequestByID(ctx context.Context, id string) (models.BuddyRequest, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.BuddyRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var request models.BuddyRequest
	row := conn.QueryRow(ctx, `
        SELECT id, sender_id, receiver_id, created_at
        FROM buddy_requests
        WHERE id = $1
    `, id)
	if err := row.Scan(&request.ID, &request.SenderID, &request.ReceiverID, &request.CreatedAt); err != nil {
		if isNoRows(err) {
			return models.BuddyRequest{}, apperr.ErrNotFound
		}
		return models.BuddyRequest{}, fmt.Errorf("select buddy request: %w", err)
	}
	return request, nil
}

// DeleteRequest removes a resolved request row.
func (s *PostgresSocialStore) DeleteRequest(ctx context.Context, id string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM buddy_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete buddy request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// AddBuddies materializes the symmetric edge as two rows, idempotently.
func (s *PostgresSocialStore) AddBuddies(ctx context.Context, userID, buddyID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO buddies (user_id, buddy_id)
        VALUES ($1, $2), ($2, $1)
        ON CONFLICT DO NOTHING
    `, userID, buddyID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("insert buddy edge: %w", err)
	}
	return nil
}

// RemoveBuddies deletes both directions, reporting whether an edge existed.
func (s *PostgresSocialStore) RemoveBuddies(ctx context.Context, userID, buddyID string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM buddies
        WHERE (user_id = $1 AND buddy_id = $2) OR (user_id = $2 AND buddy_id = $1)
    `, userID, buddyID)
	if err != nil {
		return false, fmt.Errorf("delete buddy edge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddBlock records a directed block, idempotently. This is the same
// relation the discovery visibility filter consumes.
func (s *PostgresSocialStore) AddBlock(ctx context.Context, blockerID, blockedID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO user_blocks (blocker_id, blocked_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, blockerID, blockedID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// IsBlocked reports whether blocker has blocked blocked.
func (s *PostgresSocialStore) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var blocked bool
	row := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2)
    `, blockerID, blockedID)
	if err := row.Scan(&blocked); err != nil {
		return false, fmt.Errorf("select block state: %w", err)
	}
	return blocked, nil
}

// ListSent returns pending requests the user sent.
func (s *PostgresSocialStore) ListSent(ctx context.Context, senderID string) ([]models.BuddyRequest, error) {
	return s.listRequests(ctx, `sender_id`, senderID)
}

// ListReceived returns pending requests addressed to the user.
func (s *PostgresSocialStore) ListReceived(ctx context.Context, receiverID string) ([]models.BuddyRequest, error) {
	return s.listRequests(ctx, `receiver_id`, receiverID)
}

func (s *PostgresSocialStore) listRequests(ctx context.Context, column, userID string) ([]models.BuddyRequest, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, sender_id, receiver_id, created_at
        FROM buddy_requests
        WHERE `+column+` = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query buddy requests: %w", err)
	}
	defer rows.Close()

	var requests []models.BuddyRequest
	for rows.Next() {
		var request models.BuddyRequest
		if err := rows.Scan(&request.ID, &request.SenderID, &request.ReceiverID, &request.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan buddy request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buddy requests: %w", err)
	}
	return requests, nil
}

// Buddies lists the user's accepted buddies.
func (s *PostgresSocialStore) Buddies(ctx context.Context, userID string) ([]models.User, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE id IN (SELECT buddy_id FROM buddies WHERE user_id = $1)
        ORDER BY created_at
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query buddies: %w", err)
	}
	defer rows.Close()

	var buddies []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		buddies = append(buddies, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buddies: %w", err)
	}
	return buddies, nil
}

var _ social.Store = (*PostgresSocialStore)(nil)
