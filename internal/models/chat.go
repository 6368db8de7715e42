package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat is a two-party conversation. Exactly two distinct users participate,
// fixed at creation time; at most one chat exists per unordered user pair.
type Chat struct {
	ID        uuid.UUID `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatParticipant ties a user to a chat. Membership never changes after the
// chat is created.
type ChatParticipant struct {
	ChatID   uuid.UUID `json:"chat_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
