package domain

import "time"

// PrivateMessage is a durable point-to-point text record between two
// identities. ID and CreatedAt are assigned at persistence time; IDs
// are strictly increasing across the whole store, so ordering by ID is
// the canonical conversation order.
type PrivateMessage struct {
	ID         uint64    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
