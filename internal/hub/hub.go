// Package hub implements the in-process room registry and the WebSocket
// live gateway. A room is the set of live connections subscribed to push
// events for one chat; fan-out is best-effort and never blocks on a slow
// peer.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/metrics"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/models"
)

// Conn is a live connection as the registry sees it. *Session implements
// Conn; tests substitute fakes.
type Conn interface {
	// UserID returns the authenticated user behind the connection.
	UserID() uuid.UUID
	// TrySend enqueues a payload without blocking. It returns false when
	// the connection is closed or its outbound buffer is full.
	TrySend(payload []byte) bool
	// Kick force-closes the underlying transport.
	Kick()
}

// MembershipChecker answers whether a user participates in a chat. Satisfied
// by store.DataStore.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
}

// Hub maps chat IDs to the sets of live connections joined to them. All
// methods are safe for concurrent use.
type Hub struct {
	membership MembershipChecker
	logger     zerolog.Logger

	mu    sync.RWMutex
	rooms map[uuid.UUID]map[Conn]struct{}
	conns map[Conn]map[uuid.UUID]struct{} // reverse index, also tracks roomless conns
}

// New creates an empty Hub backed by the given membership source.
func New(membership MembershipChecker, logger zerolog.Logger) *Hub {
	return &Hub{
		membership: membership,
		logger:     logger.With().Str("component", "hub").Logger(),
		rooms:      make(map[uuid.UUID]map[Conn]struct{}),
		conns:      make(map[Conn]map[uuid.UUID]struct{}),
	}
}

// Register makes the hub track a connection that has not joined any room
// yet. Registration is implicit on the first Join; explicit registration
// lets a bootstrapped-with-zero-rooms connection still count as live.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		h.conns[c] = make(map[uuid.UUID]struct{})
	}
}

// Join subscribes a connection to a chat's room after checking that its user
// participates in the chat. Joining twice has no additional effect.
func (h *Hub) Join(ctx context.Context, c Conn, chatID uuid.UUID) error {
	member, err := h.membership.IsParticipant(ctx, chatID, c.UserID())
	if err != nil {
		return apperrors.Wrap(apperrors.Unavailable, "membership check failed", err)
	}
	if !member {
		return apperrors.New(apperrors.Forbidden, "not a participant of this chat")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[Conn]struct{})
		h.rooms[chatID] = room
		metrics.OpenRooms.Inc()
	}
	room[c] = struct{}{}

	joined, ok := h.conns[c]
	if !ok {
		joined = make(map[uuid.UUID]struct{})
		h.conns[c] = joined
	}
	joined[chatID] = struct{}{}
	return nil
}

// Leave removes a connection from one room. A no-op when the connection is
// not joined.
func (h *Hub) Leave(c Conn, chatID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, chatID)
}

// LeaveAll removes a connection from every room and stops tracking it.
// Idempotent: calling it for an unknown or already-removed connection is a
// no-op.
func (h *Hub) LeaveAll(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for chatID := range h.conns[c] {
		h.leaveLocked(c, chatID)
	}
	delete(h.conns, c)
}

func (h *Hub) leaveLocked(c Conn, chatID uuid.UUID) {
	room, ok := h.rooms[chatID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, chatID)
		metrics.OpenRooms.Dec()
	}
	if joined, ok := h.conns[c]; ok {
		delete(joined, chatID)
	}
}

// DropRoom evicts every connection from a room without closing their
// underlying transports. Used when a chat is deleted.
func (h *Hub) DropRoom(chatID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[chatID]
	if !ok {
		return
	}
	for c := range room {
		if joined, ok := h.conns[c]; ok {
			delete(joined, chatID)
		}
	}
	delete(h.rooms, chatID)
	metrics.OpenRooms.Dec()
}

// PushMessage broadcasts a stored message to the chat's room as a
// receive_message event.
func (h *Hub) PushMessage(chatID uuid.UUID, msg *models.Message) {
	payload, err := json.Marshal(serverFrame{Type: frameReceiveMessage, Message: msg})
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal push frame")
		return
	}
	h.Broadcast(chatID, payload)
}

// Broadcast delivers a payload to every connection currently joined to the
// room. Delivery is fire-and-forget: a connection that cannot accept the
// payload is evicted and kicked rather than blocking the others.
func (h *Hub) Broadcast(chatID uuid.UUID, payload []byte) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[chatID]))
	for c := range h.rooms[chatID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var stale []Conn
	for _, c := range targets {
		if c.TrySend(payload) {
			metrics.EventsFannedOut.Inc()
		} else {
			stale = append(stale, c)
		}
	}

	for _, c := range stale {
		h.logger.Warn().
			Str("chat_id", chatID.String()).
			Str("user_id", c.UserID().String()).
			Msg("evicting connection with full send buffer")
		metrics.BroadcastDrops.Inc()
		h.LeaveAll(c)
		c.Kick()
	}
}

// ConnectionCount returns the number of tracked live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// RoomCount returns the number of rooms with at least one connection.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown kicks every tracked connection. Called on server shutdown after
// the HTTP listener stops accepting upgrades.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.LeaveAll(c)
		c.Kick()
	}
	h.logger.Info().Int("connections", len(conns)).Msg("hub shut down")
}
