package services

import (
	"context"
	"time"

	"realtime-backend/internal/models"
	"realtime-backend/internal/store"
)

// ChatStore persists conversations and messages. Missing rows are reported as
// store.ErrNotFound and canonical-pair collisions as store.ErrDuplicate.
type ChatStore interface {
	FindConversationByPair(ctx context.Context, user1ID, user2ID int) (*models.Conversation, error)
	CreateConversation(ctx context.Context, user1ID, user2ID int) (*models.Conversation, error)
	GetConversation(ctx context.Context, id int) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	// DeleteConversation removes the conversation and all of its messages atomically.
	DeleteConversation(ctx context.Context, id int) error

	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id int) (*models.Message, error)
	// ListMessages returns up to limit messages oldest first; beforeID > 0 pages backwards.
	ListMessages(ctx context.Context, conversationID, limit, beforeID int) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID int) (int, error)
	DeleteMessage(ctx context.Context, id int) error
}

// ConnectionStore persists connection requests. At most one pending or accepted
// request may exist per unordered pair; CreateRequest reports a violation as
// store.ErrDuplicate.
type ConnectionStore interface {
	FindActiveBetween(ctx context.Context, userA, userB int) (*models.ConnectionRequest, error)
	CreateRequest(ctx context.Context, req *models.ConnectionRequest) error
	GetRequest(ctx context.Context, id int) (*models.ConnectionRequest, error)
	// TransitionRequest moves a request from status from to status to in one
	// statement; store.ErrNotFound means the row was not in status from.
	TransitionRequest(ctx context.Context, id int, from, to models.ConnectionStatus, acceptedAt *time.Time) (*models.ConnectionRequest, error)
	DeleteRequest(ctx context.Context, id int) error
	ListRequests(ctx context.Context, filter store.RequestFilter) ([]models.ConnectionRequest, error)
}

// UserDirectory answers the two questions this core asks about users.
type UserDirectory interface {
	Exists(ctx context.Context, userID int) (bool, error)
	DisplayName(ctx context.Context, userID int) (string, error)
}

// IdentityVerifier turns a bearer credential into a user id.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (int, error)
}
