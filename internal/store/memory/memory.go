// Package memory is an in-process implementation of the chat store, the
// connection-request store and the user directory. It enforces the same
// uniqueness rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime-backend/internal/models"
	"realtime-backend/internal/store"
)

type Store struct {
	mu sync.Mutex

	users         map[int]string
	conversations map[int]models.Conversation
	pairs         map[[2]int]int
	messages      map[int]models.Message
	requests      map[int]models.ConnectionRequest

	nextConversation int
	nextMessage      int
	nextRequest      int
}

func New() *Store {
	return &Store{
		users:         make(map[int]string),
		conversations: make(map[int]models.Conversation),
		pairs:         make(map[[2]int]int),
		messages:      make(map[int]models.Message),
		requests:      make(map[int]models.ConnectionRequest),
	}
}

// AddUser makes a user known to the directory.
func (s *Store) AddUser(id int, fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = fullName
}

// Users

func (s *Store) Exists(_ context.Context, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok, nil
}

func (s *Store) DisplayName(_ context.Context, userID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.users[userID]
	if !ok {
		return "", store.ErrNotFound
	}
	return name, nil
}

// Conversations

func (s *Store) FindConversationByPair(_ context.Context, user1ID, user2ID int) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u1, u2 := models.CanonicalPair(user1ID, user2ID)
	id, ok := s.pairs[[2]int{u1, u2}]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := s.conversations[id]
	return &c, nil
}

func (s *Store) CreateConversation(_ context.Context, user1ID, user2ID int) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u1, u2 := models.CanonicalPair(user1ID, user2ID)
	key := [2]int{u1, u2}
	if _, ok := s.pairs[key]; ok {
		return nil, store.ErrDuplicate
	}
	s.nextConversation++
	c := models.Conversation{ID: s.nextConversation, User1ID: u1, User2ID: u2, CreatedAt: time.Now().UTC()}
	s.conversations[c.ID] = c
	s.pairs[key] = c.ID
	return &c, nil
}

func (s *Store) GetConversation(_ context.Context, id int) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListConversations(_ context.Context, userID int) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byConv := make(map[int]*models.ConversationSummary)
	var out []*models.ConversationSummary
	for _, c := range s.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		sum := &models.ConversationSummary{Conversation: c}
		byConv[c.ID] = sum
		out = append(out, sum)
	}
	for _, m := range s.messages {
		sum, ok := byConv[m.ConversationID]
		if !ok {
			continue
		}
		if sum.LastMessage == nil || m.ID > sum.LastMessage.ID {
			msg := m
			sum.LastMessage = &msg
		}
		if m.SenderID != userID && !m.IsRead {
			sum.UnreadCount++
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return lastActivity(out[i]).After(lastActivity(out[j])) ||
			(lastActivity(out[i]).Equal(lastActivity(out[j])) && out[i].ID > out[j].ID)
	})
	res := make([]models.ConversationSummary, len(out))
	for i, sum := range out {
		res[i] = *sum
	}
	return res, nil
}

func (s *Store) DeleteConversation(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return store.ErrNotFound
	}
	for mid, m := range s.messages {
		if m.ConversationID == id {
			delete(s.messages, mid)
		}
	}
	delete(s.pairs, [2]int{c.User1ID, c.User2ID})
	delete(s.conversations, id)
	return nil
}

// Messages

func (s *Store) InsertMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return store.ErrNotFound
	}
	s.nextMessage++
	msg.ID = s.nextMessage
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ID] = *msg
	return nil
}

func (s *Store) GetMessage(_ context.Context, id int) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID, limit, beforeID int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, conversationID, readerID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, m := range s.messages {
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteMessage(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// Connection requests

func (s *Store) FindActiveBetween(_ context.Context, userA, userB int) (*models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.activeLocked(userA, userB); ok {
		return &r, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateRequest(_ context.Context, req *models.ConnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activeLocked(req.SenderID, req.ReceiverID); ok {
		return store.ErrDuplicate
	}
	s.nextRequest++
	req.ID = s.nextRequest
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *Store) GetRequest(_ context.Context, id int) (*models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) TransitionRequest(_ context.Context, id int, from, to models.ConnectionStatus, acceptedAt *time.Time) (*models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != from {
		return nil, store.ErrNotFound
	}
	r.Status = to
	if acceptedAt != nil {
		at := *acceptedAt
		r.AcceptedAt = &at
	}
	s.requests[id] = r
	return &r, nil
}

func (s *Store) DeleteRequest(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) ListRequests(_ context.Context, f store.RequestFilter) ([]models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConnectionRequest
	for _, r := range s.requests {
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		switch f.Direction {
		case store.DirectionIncoming:
			if r.ReceiverID != f.UserID {
				continue
			}
		case store.DirectionOutgoing:
			if r.SenderID != f.UserID {
				continue
			}
		default:
			if !r.Involves(f.UserID) {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) activeLocked(a, b int) (models.ConnectionRequest, bool) {
	for _, r := range s.requests {
		if r.Status != models.StatusPending && r.Status != models.StatusAccepted {
			continue
		}
		if (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a) {
			return r, true
		}
	}
	return models.ConnectionRequest{}, false
}

func lastActivity(s *models.ConversationSummary) time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.CreatedAt
}
