package models

import "time"

// Inbound frame types
const (
	FrameMessage = "message"
	FrameTyping  = "typing"
	FramePing    = "ping"
)

// Outbound event types
const (
	EventNewMessage         = "new_message"
	EventTyping             = "typing"
	EventPong               = "pong"
	EventConnectionRequest  = "connection_request"
	EventConnectionAccepted = "connection_accepted"
	EventConnectionRejected = "connection_rejected"
	EventConnectionRemoved  = "connection_removed"
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
)

// Frame is one inbound client frame. Only the fields relevant to Type are set.
type Frame struct {
	Type       string  `json:"type"`
	Content    *string `json:"content,omitempty"`
	Attachment *string `json:"attachment,omitempty"`
	IsTyping   *bool   `json:"is_typing,omitempty"`
}

type PongEvent struct {
	Type string `json:"type"`
}

type NewMessageEvent struct {
	Type           string  `json:"type"`
	MessageID      int     `json:"message_id"`
	ConversationID int     `json:"chat_id"`
	SenderID       int     `json:"sender_id"`
	Content        string  `json:"content"`
	Attachment     *string `json:"attachment"`
	Timestamp      string  `json:"timestamp"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	UserID   int    `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// ConnectionEvent is sent on the connections channel. UserID is the other
// party from the recipient's point of view.
type ConnectionEvent struct {
	Type      string           `json:"type"`
	RequestID int              `json:"request_id"`
	UserID    int              `json:"user_id"`
	FullName  string           `json:"full_name,omitempty"`
	Status    ConnectionStatus `json:"status"`
	Timestamp string           `json:"timestamp"`
}

type PresenceEvent struct {
	Type     string `json:"type"`
	UserID   int    `json:"user_id"`
	FullName string `json:"full_name,omitempty"`
}

// Timestamp renders t the way every outbound event does: ISO-8601 in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func NewMessageEventFrom(m *Message) NewMessageEvent {
	return NewMessageEvent{
		Type:           EventNewMessage,
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Attachment:     m.Attachment,
		Timestamp:      Timestamp(m.CreatedAt),
	}
}
