package models

import "time"

type Message struct {
	ID             int       `json:"id"`
	ConversationID int       `json:"chatId"`
	SenderID       int       `json:"senderId"`
	Content        string    `json:"content"`
	Attachment     *string   `json:"attachment,omitempty"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"timestamp"`
}
