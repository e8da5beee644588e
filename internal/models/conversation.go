package models

import "time"

// Conversation is a 1:1 chat. User1ID is always the lower of the two ids.
type Conversation struct {
	ID        int       `json:"id"`
	User1ID   int       `json:"user1Id"`
	User2ID   int       `json:"user2Id"`
	CreatedAt time.Time `json:"createdAt"`
}

// CanonicalPair orders two user ids the way conversations store them.
func CanonicalPair(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ConversationSummary is what a chat list shows: the conversation, its latest
// message (if any) and how many messages the viewer has not read yet.
type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
}

type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}

type SendMessageRequest struct {
	ReceiverID int     `json:"receiverId"`
	Content    string  `json:"content"`
	Attachment *string `json:"attachment,omitempty"`
}
