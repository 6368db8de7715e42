package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/metrics"
)

const (
	maxFrameSize  = 4096
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeWait     = 10 * time.Second
	storeCallWait = 5 * time.Second
)

// Session is one live WebSocket connection. It moves through
// authenticating, bootstrapping, active, and closed; teardown runs exactly
// once no matter which side closes first.
type Session struct {
	gw     *Gateway
	conn   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	userID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc

	// closed when the bootstrap goroutine has finished; teardown waits on
	// it so no join can land after the rooms are cleared.
	bootstrapDone chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newSession(gw *Gateway, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		gw:            gw,
		conn:          conn,
		send:          make(chan []byte, gw.sendBuffer),
		logger:        gw.logger.With().Str("remote_addr", conn.RemoteAddr().String()).Logger(),
		ctx:           ctx,
		cancel:        cancel,
		bootstrapDone: make(chan struct{}),
	}
}

// UserID returns the authenticated user behind the session.
func (s *Session) UserID() uuid.UUID { return s.userID }

// TrySend enqueues a payload without blocking. False means the session is
// closed or its buffer is full; the caller decides what to do with it.
func (s *Session) TrySend(payload []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Kick force-closes the underlying connection, which unwinds both pumps.
func (s *Session) Kick() {
	s.conn.Close()
}

// run drives the connection state machine. Must be called on its own
// goroutine.
func (s *Session) run() {
	if !s.authenticate() {
		s.conn.Close()
		s.cancel()
		return
	}

	metrics.LiveConnections.Inc()
	defer func() {
		s.teardown()
		metrics.LiveConnections.Dec()
	}()

	s.gw.hub.Register(s)
	go s.writePump()

	// Bootstrap runs concurrently with the read loop so a peer that
	// disconnects mid-bootstrap is noticed immediately and cancels the
	// in-flight store calls via the session context.
	go func() {
		defer close(s.bootstrapDone)
		s.bootstrap()
	}()

	s.markOnline()
	s.readLoop()
}

// authenticate waits for the handshake credential frame and verifies it.
// Any failure closes the connection; there is no retry on the same
// connection.
func (s *Session) authenticate() bool {
	s.conn.SetReadLimit(maxFrameSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(s.gw.authTimeout)); err != nil {
		return false
	}

	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		s.logger.Debug().Err(err).Msg("handshake read failed")
		return false
	}

	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != frameAuth {
		s.closeWith(websocket.ClosePolicyViolation, "expected auth frame")
		return false
	}

	userID, err := s.gw.verifier.Verify(frame.Token)
	if err != nil {
		// Log the failure, never the credential value.
		s.logger.Warn().Msg("handshake credential rejected")
		s.closeWith(websocket.ClosePolicyViolation, "authentication failed")
		return false
	}

	s.userID = userID
	s.logger = s.logger.With().Str("user_id", userID.String()).Logger()
	return true
}

// bootstrap joins the session to the room of every chat its user
// participates in. A store failure is logged and the session continues to
// the active state with whatever rooms were joined.
func (s *Session) bootstrap() {
	ctx, cancel := context.WithTimeout(s.ctx, storeCallWait)
	defer cancel()

	chatIDs, err := s.gw.store.ChatIDsForUser(ctx, s.userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("bootstrap chat lookup failed")
		chatIDs = nil
	}

	joined := make([]string, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		if err := s.gw.hub.Join(ctx, s, chatID); err != nil {
			s.logger.Error().Err(err).Str("chat_id", chatID.String()).Msg("bootstrap join failed")
			continue
		}
		joined = append(joined, chatID.String())
	}

	s.reply(serverFrame{Type: frameReady, ChatIDs: joined})
}

// readLoop handles inbound frames until the connection drops.
func (s *Session) readLoop() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		s.refreshOnline()
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("connection closed")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.replyError(apperrors.InvalidArgument, "malformed frame")
			continue
		}

		switch frame.Type {
		case frameJoinChat:
			s.handleJoin(frame.ChatID)
		case frameAuth:
			s.replyError(apperrors.InvalidArgument, "already authenticated")
		default:
			s.replyError(apperrors.InvalidArgument, "unknown frame type")
		}
	}
}

// handleJoin processes an explicit join request. A rejected join answers
// in-band and leaves the connection open.
func (s *Session) handleJoin(rawChatID string) {
	chatID, err := uuid.Parse(rawChatID)
	if err != nil {
		s.replyError(apperrors.InvalidArgument, "invalid chat id")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, storeCallWait)
	defer cancel()

	if err := s.gw.hub.Join(ctx, s, chatID); err != nil {
		s.replyError(apperrors.KindOf(err), apperrors.MessageOf(err))
		return
	}
	s.reply(serverFrame{Type: frameJoined, ChatID: chatID.String()})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown runs the close sequence exactly once: the session leaves every
// room, its outbound queue closes, and presence is cleared.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		// Wait for bootstrap to unwind before clearing rooms; its store
		// calls return promptly once the context is cancelled.
		<-s.bootstrapDone
		s.gw.hub.LeaveAll(s)
		close(s.send)
		s.markOffline()
		s.logger.Info().Msg("session closed")
	})
}

func (s *Session) reply(frame serverFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal reply frame")
		return
	}
	s.TrySend(payload)
}

func (s *Session) replyError(kind apperrors.Kind, detail string) {
	s.reply(serverFrame{Type: frameError, Kind: string(kind), Detail: detail})
}

func (s *Session) closeWith(code int, reason string) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

func (s *Session) markOnline() {
	if s.gw.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeCallWait)
	defer cancel()
	if err := s.gw.presence.SetOnline(ctx, s.userID.String()); err != nil {
		s.logger.Debug().Err(err).Msg("presence update failed")
	}
}

func (s *Session) refreshOnline() {
	if s.gw.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeCallWait)
	defer cancel()
	if err := s.gw.presence.RefreshOnline(ctx, s.userID.String()); err != nil {
		s.logger.Debug().Err(err).Msg("presence refresh failed")
	}
}

func (s *Session) markOffline() {
	if s.gw.presence == nil || s.userID == uuid.Nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeCallWait)
	defer cancel()
	if err := s.gw.presence.SetOffline(ctx, s.userID.String()); err != nil {
		s.logger.Debug().Err(err).Msg("presence clear failed")
	}
}
