package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/metrics"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/models"
)

// DataStore defines the interface for persistent storage of chats, chat
// membership, and messages. Both PostgresStore and SQLiteStore implement this
// interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Chat directory operations
	ResolveOrCreateChat(ctx context.Context, userA, userB uuid.UUID) (*models.Chat, bool, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (*models.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	ParticipantIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
	ChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	DeleteChat(ctx context.Context, chatID uuid.UUID) error

	// Message operations
	AppendMessage(ctx context.Context, chatID, senderID uuid.UUID, text string) (*models.Message, error)
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)

	// Stats operations
	CountChats(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
}

// observe records a store operation's latency when the returned func runs.
// Usage: defer observe("append_message")().
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// pairKey normalizes an unordered user pair to a canonical string. The UNIQUE
// constraint on this column is what guarantees at most one chat per pair.
func pairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as < bs {
		return as + ":" + bs
	}
	return bs + ":" + as
}
