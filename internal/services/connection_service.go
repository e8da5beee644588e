package services

import (
	"context"
	"errors"
	"time"

	"realtime-backend/internal/apperr"
	"realtime-backend/internal/models"
	"realtime-backend/internal/store"

	"github.com/rs/zerolog"
)

// ConnectionService owns the connection-request lifecycle. It knows nothing about
// live sockets: callers notify the affected users after each successful mutation.
type ConnectionService struct {
	store ConnectionStore
	users UserDirectory
	log   zerolog.Logger
	now   func() time.Time
}

func NewConnectionService(cs ConnectionStore, users UserDirectory, log zerolog.Logger) *ConnectionService {
	return &ConnectionService{
		store: cs,
		users: users,
		log:   log.With().Str("component", "connections").Logger(),
		now:   time.Now,
	}
}

func (s *ConnectionService) SendRequest(ctx context.Context, senderID, receiverID int) (*models.ConnectionRequest, error) {
	if senderID == receiverID {
		return nil, apperr.ErrSelfRequest
	}
	exists, err := s.users.Exists(ctx, receiverID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.ErrUserNotFound
	}
	if err := s.checkNoActive(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	req := &models.ConnectionRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.StatusPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// lost a race with a concurrent request for the same pair
			if cerr := s.checkNoActive(ctx, senderID, receiverID); cerr != nil {
				return nil, cerr
			}
			return nil, apperr.ErrRequestAlreadyPending
		}
		return nil, apperr.Internal(err)
	}
	return req, nil
}

func (s *ConnectionService) AcceptRequest(ctx context.Context, requestID, actingUserID int) (*models.ConnectionRequest, error) {
	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != actingUserID {
		return nil, apperr.Forbidden("only the receiver can accept the request")
	}
	if req.Status != models.StatusPending {
		return nil, apperr.ErrInvalidState
	}
	at := s.now().UTC()
	return s.transition(ctx, requestID, models.StatusAccepted, &at)
}

// RejectRequest declines (receiver) or cancels (sender) a pending request.
func (s *ConnectionService) RejectRequest(ctx context.Context, requestID, actingUserID int) (*models.ConnectionRequest, error) {
	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Involves(actingUserID) {
		return nil, apperr.Forbidden("not allowed to reject this request")
	}
	if req.Status != models.StatusPending {
		return nil, apperr.ErrInvalidState
	}
	return s.transition(ctx, requestID, models.StatusRejected, nil)
}

// DeleteRequest removes an accepted connection. It returns the deleted record so
// the caller can notify both sides.
func (s *ConnectionService) DeleteRequest(ctx context.Context, requestID, actingUserID int) (*models.ConnectionRequest, error) {
	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusAccepted {
		return nil, apperr.FailedPrecondition("cannot delete non-accepted connections")
	}
	if !req.Involves(actingUserID) {
		return nil, apperr.Forbidden("not authorized to delete this connection")
	}
	if err := s.store.DeleteRequest(ctx, requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrRequestNotFound
		}
		return nil, apperr.Internal(err)
	}
	return req, nil
}

func (s *ConnectionService) ListAccepted(ctx context.Context, userID int) ([]models.ConnectionRequest, error) {
	return s.list(ctx, store.RequestFilter{UserID: userID, Direction: store.DirectionAny, Status: string(models.StatusAccepted)})
}

func (s *ConnectionService) ListPendingIncoming(ctx context.Context, userID int) ([]models.ConnectionRequest, error) {
	return s.list(ctx, store.RequestFilter{UserID: userID, Direction: store.DirectionIncoming, Status: string(models.StatusPending)})
}

func (s *ConnectionService) ListPendingOutgoing(ctx context.Context, userID int) ([]models.ConnectionRequest, error) {
	return s.list(ctx, store.RequestFilter{UserID: userID, Direction: store.DirectionOutgoing, Status: string(models.StatusPending)})
}

// AreConnected reports whether an accepted request exists between the two users.
func (s *ConnectionService) AreConnected(ctx context.Context, userA, userB int) (bool, error) {
	if userA == userB {
		return false, nil
	}
	req, err := s.store.FindActiveBetween(ctx, userA, userB)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err)
	}
	return req.Status == models.StatusAccepted, nil
}

// MutualConnections returns userID's accepted requests whose peer is also
// connected to otherUserID. Neither userID nor otherUserID appear as peers.
func (s *ConnectionService) MutualConnections(ctx context.Context, userID, otherUserID int) ([]models.ConnectionRequest, error) {
	mine, err := s.ListAccepted(ctx, userID)
	if err != nil {
		return nil, err
	}
	theirs, err := s.ListAccepted(ctx, otherUserID)
	if err != nil {
		return nil, err
	}

	theirPeers := make(map[int]struct{}, len(theirs))
	for i := range theirs {
		theirPeers[theirs[i].Peer(otherUserID)] = struct{}{}
	}

	out := []models.ConnectionRequest{}
	for _, req := range mine {
		peer := req.Peer(userID)
		if peer == userID || peer == otherUserID {
			continue
		}
		if _, ok := theirPeers[peer]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

// DisplayName resolves a user's name for event payloads; failures degrade to "".
func (s *ConnectionService) DisplayName(ctx context.Context, userID int) string {
	name, err := s.users.DisplayName(ctx, userID)
	if err != nil {
		s.log.Debug().Err(err).Int("user_id", userID).Msg("display name lookup failed")
		return ""
	}
	return name
}

// Describe attaches both participants' names to each request. Names are looked
// up once per user.
func (s *ConnectionService) Describe(ctx context.Context, reqs ...models.ConnectionRequest) []models.ConnectionResponse {
	names := make(map[int]string)
	brief := func(id int) models.UserBrief {
		name, ok := names[id]
		if !ok {
			name = s.DisplayName(ctx, id)
			names[id] = name
		}
		return models.UserBrief{ID: id, FullName: name}
	}

	out := make([]models.ConnectionResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, models.ConnectionResponse{
			ConnectionRequest: r,
			Sender:            brief(r.SenderID),
			Receiver:          brief(r.ReceiverID),
		})
	}
	return out
}

func (s *ConnectionService) checkNoActive(ctx context.Context, a, b int) error {
	existing, err := s.store.FindActiveBetween(ctx, a, b)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	switch existing.Status {
	case models.StatusAccepted:
		return apperr.ErrAlreadyConnected
	case models.StatusPending:
		return apperr.ErrRequestAlreadyPending
	}
	return nil
}

func (s *ConnectionService) request(ctx context.Context, id int) (*models.ConnectionRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrRequestNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return req, nil
}

func (s *ConnectionService) transition(ctx context.Context, id int, to models.ConnectionStatus, acceptedAt *time.Time) (*models.ConnectionRequest, error) {
	req, err := s.store.TransitionRequest(ctx, id, models.StatusPending, to, acceptedAt)
	if errors.Is(err, store.ErrNotFound) {
		// someone else moved it out of pending first
		return nil, apperr.ErrInvalidState
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return req, nil
}

func (s *ConnectionService) list(ctx context.Context, f store.RequestFilter) ([]models.ConnectionRequest, error) {
	out, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []models.ConnectionRequest{}
	}
	return out, nil
}
