// Package domain contains core concepts of the messaging system.
// This file defines the Message row and the read-only public profile.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one row of the messages table.
// A message is created once and mutated once, when its recipient reads it.
type Message struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    string     `json:"sender_id"`
	RecipientID string     `json:"recipient_id"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`
}

// Counterpart returns the other participant of the message relative to userID.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Involves reports whether userID is the sender or the recipient.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

// IsUnreadFor reports whether the message is addressed to userID and still unread.
func (m Message) IsUnreadFor(userID string) bool {
	return m.RecipientID == userID && m.ReadAt == nil
}

// Profile is the public display data of a user.
// Name and AvatarURL are nil when the user never filled them.
type Profile struct {
	ID        string  `json:"id"`
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}
