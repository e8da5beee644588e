package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"realtime-backend/internal/apperr"
	"realtime-backend/internal/models"
	"realtime-backend/internal/store"

	"github.com/rs/zerolog"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 200
)

type ChatService struct {
	store ChatStore
	users UserDirectory
	log   zerolog.Logger
	now   func() time.Time
}

func NewChatService(store ChatStore, users UserDirectory, log zerolog.Logger) *ChatService {
	return &ChatService{
		store: store,
		users: users,
		log:   log.With().Str("component", "chat").Logger(),
		now:   time.Now,
	}
}

// GetOrCreateConversation returns the conversation between userID and otherID,
// creating it when none exists. Concurrent first calls converge on one row: the
// loser of the insert race sees store.ErrDuplicate and reads the winner's row.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, userID, otherID int) (*models.Conversation, error) {
	if userID == otherID {
		return nil, apperr.ErrSelfConversation
	}
	exists, err := s.users.Exists(ctx, otherID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.ErrUserNotFound
	}

	u1, u2 := models.CanonicalPair(userID, otherID)
	conv, err := s.store.FindConversationByPair(ctx, u1, u2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	conv, err = s.store.CreateConversation(ctx, u1, u2)
	if errors.Is(err, store.ErrDuplicate) {
		conv, err = s.store.FindConversationByPair(ctx, u1, u2)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.log.Debug().Int("chat_id", conv.ID).Int("user1_id", u1).Int("user2_id", u2).Msg("conversation created")
	return conv, nil
}

// SendMessage appends a message from senderID to an existing conversation.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID int, content string, attachment *string) (*models.Message, error) {
	content, attachment, err := normalizeMessage(content, attachment)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperr.ErrNotParticipant
	}
	return s.insertMessage(ctx, conv.ID, senderID, content, attachment)
}

// SendDirectMessage sends to a user rather than a conversation, creating the
// conversation on first contact. Nothing is persisted when the message is empty.
func (s *ChatService) SendDirectMessage(ctx context.Context, senderID, receiverID int, content string, attachment *string) (*models.Message, *models.Conversation, error) {
	content, attachment, err := normalizeMessage(content, attachment)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.GetOrCreateConversation(ctx, senderID, receiverID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.insertMessage(ctx, conv.ID, senderID, content, attachment)
	if err != nil {
		return nil, nil, err
	}
	return msg, conv, nil
}

func (s *ChatService) GetConversation(ctx context.Context, conversationID, requesterID int) (*models.Conversation, error) {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, apperr.ErrNotParticipant
	}
	return conv, nil
}

// GetConversationDetail returns the conversation with its most recent page of messages.
func (s *ChatService) GetConversationDetail(ctx context.Context, conversationID, requesterID int) (*models.ConversationDetail, error) {
	conv, err := s.GetConversation(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID, maxMessagePage, 0)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &models.ConversationDetail{Conversation: *conv, Messages: nonNil(msgs)}, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	out, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []models.ConversationSummary{}
	}
	return out, nil
}

// ListMessages pages through a conversation, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, requesterID, limit, beforeID int) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, limit, beforeID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return nonNil(msgs), nil
}

// MarkRead flags every message not sent by requesterID as read and returns how
// many changed. Calling it again changes nothing.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, requesterID int) (int, error) {
	if _, err := s.GetConversation(ctx, conversationID, requesterID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkRead(ctx, conversationID, requesterID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, messageID, requesterID int) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrMessageNotFound
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if msg.SenderID != requesterID {
		return apperr.ErrForbidden
	}
	if err := s.store.DeleteMessage(ctx, messageID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal(err)
	}
	return nil
}

// DeleteConversation removes the conversation and every message in it.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, requesterID int) error {
	if _, err := s.GetConversation(ctx, conversationID, requesterID); err != nil {
		if errors.Is(err, apperr.ErrNotParticipant) {
			return apperr.ErrForbidden
		}
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal(err)
	}
	return nil
}

func (s *ChatService) conversation(ctx context.Context, id int) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrConversationNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return conv, nil
}

func (s *ChatService) insertMessage(ctx context.Context, conversationID, senderID int, content string, attachment *string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Attachment:     attachment,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrConversationNotFound
		}
		return nil, apperr.Internal(err)
	}
	return msg, nil
}

// normalizeMessage trims content and drops a blank attachment. A message needs
// at least one of the two.
func normalizeMessage(content string, attachment *string) (string, *string, error) {
	content = strings.TrimSpace(content)
	if attachment != nil {
		a := strings.TrimSpace(*attachment)
		if a == "" {
			attachment = nil
		} else {
			attachment = &a
		}
	}
	if content == "" && attachment == nil {
		return "", nil, apperr.ErrEmptyMessage
	}
	return content, attachment, nil
}

func nonNil(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	return msgs
}
