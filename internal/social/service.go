package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/models"
)

// Store captures persistence for the buddy graph. Blocking shares the same
// user_blocks relation the discovery visibility filter reads.
type Store interface {
	// CreateRequest persists a pending request. Returns apperr.ErrNotFound
	// if the receiver does not exist and ErrDuplicateRequest when a pending
	// request for the same ordered pair already exists.
	CreateRequest(ctx context.Context, request models.BuddyRequest) error
	RequestByID(ctx context.Context, id string) (models.BuddyRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	// AddBuddies materializes the symmetric buddy edge in both directions.
	AddBuddies(ctx context.Context, userID, buddyID string) error
	// RemoveBuddies deletes both directions and reports whether an edge existed.
	RemoveBuddies(ctx context.Context, userID, buddyID string) (bool, error)
	AddBlock(ctx context.Context, blockerID, blockedID string) error
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListSent(ctx context.Context, senderID string) ([]models.BuddyRequest, error)
	ListReceived(ctx context.Context, receiverID string) ([]models.BuddyRequest, error)
	Buddies(ctx context.Context, userID string) ([]models.User, error)
}

// ErrDuplicateRequest signals a pending request already exists for the
// ordered (sender, receiver) pair.
var ErrDuplicateRequest = errors.New("buddy request already pending")

// Service implements the buddy-request workflow: pending requests resolve
// to accepted, declined or blocked, and every resolution deletes the row.
type Service struct {
	store   Store
	nowFunc func() time.Time
}

// NewService constructs the social graph service.
func NewService(store Store) *Service {
	return &Service{store: store, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// SendRequest creates a pending buddy request from sender to receiver.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID string) (models.BuddyRequest, error) {
	if receiverID == "" {
		return models.BuddyRequest{}, apperr.Validation("receiver", "receiver is required")
	}
	if senderID == receiverID {
		return models.BuddyRequest{}, apperr.Validation("receiver", "cannot send a buddy request to yourself")
	}

	blocked, err := s.store.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		return models.BuddyRequest{}, fmt.Errorf("check block state: %w", err)
	}
	if blocked {
		return models.BuddyRequest{}, apperr.Validation("receiver", "cannot send a buddy request to this user")
	}

	request := models.BuddyRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		CreatedAt:  s.nowFunc(),
	}

	if err := s.store.CreateRequest(ctx, request); err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return models.BuddyRequest{}, apperr.Validation("receiver", "a request to this user is already pending")
		}
		if errors.Is(err, apperr.ErrNotFound) {
			return models.BuddyRequest{}, apperr.Validation("receiver", "unknown user")
		}
		return models.BuddyRequest{}, fmt.Errorf("create buddy request: %w", err)
	}

	return request, nil
}

// Resolve applies a terminal resolution to a pending request. Only the
// receiver may resolve; the request row is deleted in every case. Accept
// creates the symmetric buddy edge; block additionally adds the sender to
// the receiver's blocked set.
func (s *Service) Resolve(ctx context.Context, requestID, responderID, resolution string) error {
	request, err := s.store.RequestByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load buddy request: %w", err)
	}

	if request.ReceiverID != responderID {
		return apperr.ErrForbidden
	}

	switch resolution {
	case models.RequestResolutionAccepted:
		if err := s.store.AddBuddies(ctx, request.ReceiverID, request.SenderID); err != nil {
			return fmt.Errorf("add buddy edge: %w", err)
		}
	case models.RequestResolutionDeclined:
		// Nothing beyond deleting the request.
	case models.RequestResolutionBlocked:
		if err := s.store.AddBlock(ctx, request.ReceiverID, request.SenderID); err != nil {
			return fmt.Errorf("block sender: %w", err)
		}
	default:
		return apperr.Validation("resolution", "must be accepted, declined, or blocked")
	}

	if err := s.store.DeleteRequest(ctx, request.ID); err != nil {
		return fmt.Errorf("delete buddy request: %w", err)
	}
	return nil
}

// ListSent returns the caller's pending outbound requests.
func (s *Service) ListSent(ctx context.Context, userID string) ([]models.BuddyRequest, error) {
	return s.store.ListSent(ctx, userID)
}

// ListReceived returns the caller's pending inbound requests.
func (s *Service) ListReceived(ctx context.Context, userID string) ([]models.BuddyRequest, error) {
	return s.store.ListReceived(ctx, userID)
}

// Buddies lists the caller's accepted buddies.
func (s *Service) Buddies(ctx context.Context, userID string) ([]models.User, error) {
	return s.store.Buddies(ctx, userID)
}

// RemoveBuddy severs an existing buddy edge in both directions.
func (s *Service) RemoveBuddy(ctx context.Context, userID, buddyID string) error {
	removed, err := s.store.RemoveBuddies(ctx, userID, buddyID)
	if err != nil {
		return fmt.Errorf("remove buddy edge: %w", err)
	}
	if !removed {
		return apperr.Validation("buddy", "not a buddy")
	}
	return nil
}

// BlockBuddy blocks an accepted buddy: the edge is severed in both
// directions and the buddy joins the caller's blocked set. Only existing
// buddies can be blocked through this path.
func (s *Service) BlockBuddy(ctx context.Context, userID, buddyID string) error {
	removed, err := s.store.RemoveBuddies(ctx, userID, buddyID)
	if err != nil {
		return fmt.Errorf("remove buddy edge: %w", err)
	}
	if !removed {
		return apperr.Validation("buddy", "not a buddy")
	}
	if err := s.store.AddBlock(ctx, userID, buddyID); err != nil {
		return fmt.Errorf("block buddy: %w", err)
	}
	return nil
}
