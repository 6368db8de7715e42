package hub

import "github.com/harroldalmussa/KonnektSocial-sub000/internal/models"

// Wire frame types. Clients send auth and join_chat; the server sends the
// rest.
const (
	frameAuth           = "auth"
	frameJoinChat       = "join_chat"
	frameReady          = "ready"
	frameJoined         = "joined"
	frameError          = "error"
	frameReceiveMessage = "receive_message"
)

// clientFrame is any inbound frame on a live connection.
type clientFrame struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	ChatID string `json:"chat_id,omitempty"`
}

// serverFrame is any outbound frame on a live connection.
type serverFrame struct {
	Type    string          `json:"type"`
	ChatIDs []string        `json:"chat_ids,omitempty"` // ready
	ChatID  string          `json:"chat_id,omitempty"`  // joined
	Kind    string          `json:"kind,omitempty"`     // error
	Detail  string          `json:"detail,omitempty"`   // error
	Message *models.Message `json:"message,omitempty"`  // receive_message
}
