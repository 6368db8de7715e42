package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/store"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/token"
)

// Gateway upgrades HTTP requests to live WebSocket sessions. The bearer
// credential travels in the first frame rather than a header, so browser
// clients can connect without custom headers.
type Gateway struct {
	hub      *Hub
	store    store.DataStore
	verifier *token.Verifier
	presence *store.RedisStore // optional
	logger   zerolog.Logger

	authTimeout time.Duration
	sendBuffer  int
	upgrader    websocket.Upgrader
}

// NewGateway wires a Gateway. presence may be nil when Redis is not
// configured.
func NewGateway(h *Hub, st store.DataStore, verifier *token.Verifier, presence *store.RedisStore, logger zerolog.Logger, authTimeout time.Duration, sendBuffer int) *Gateway {
	return &Gateway{
		hub:         h,
		store:       st,
		verifier:    verifier,
		presence:    presence,
		logger:      logger.With().Str("component", "gateway").Logger(),
		authTimeout: authTimeout,
		sendBuffer:  sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The credential check happens in the handshake frame, not at
			// upgrade time, and the API already allows any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the request and runs the session state machine.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	go newSession(g, conn).run()
}
