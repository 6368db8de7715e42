package models

// Message is one chat message. Immutable once stored; deleted only when its
// chat is deleted.
type Message struct {
	ID        string `json:"id"`        // ULID
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"` // user UUID
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix ms, non-decreasing per chat
}
