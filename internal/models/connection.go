package models

import "time"

type ConnectionStatus string

const (
	StatusPending  ConnectionStatus = "pending"
	StatusAccepted ConnectionStatus = "accepted"
	StatusRejected ConnectionStatus = "rejected"
	StatusBlocked  ConnectionStatus = "blocked"
)

// ConnectionRequest is a directed relationship proposal. Once accepted it is
// treated as symmetric.
type ConnectionRequest struct {
	ID         int              `json:"id"`
	SenderID   int              `json:"senderId"`
	ReceiverID int              `json:"receiverId"`
	Status     ConnectionStatus `json:"status"`
	CreatedAt  time.Time        `json:"timestamp"`
	AcceptedAt *time.Time       `json:"acceptedAt"`
}

func (r *ConnectionRequest) Involves(userID int) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// Peer returns the other side of the request as seen by userID.
func (r *ConnectionRequest) Peer(userID int) int {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// UserBrief is the part of a user a connection list shows.
type UserBrief struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
}

// ConnectionResponse is a request together with both participants.
type ConnectionResponse struct {
	ConnectionRequest
	Sender   UserBrief `json:"sender"`
	Receiver UserBrief `json:"receiver"`
}

type ConnectionCreate struct {
	ReceiverID int `json:"receiverId"`
}
