package hub_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/hub"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/store"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/token"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	ChatID  string          `json:"chat_id,omitempty"`
	ChatIDs []string        `json:"chat_ids,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

type gatewayFixture struct {
	srv      *httptest.Server
	store    *store.SQLiteStore
	hub      *hub.Hub
	verifier *token.Verifier
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	st, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	verifier := token.NewVerifier("test-secret", time.Hour)
	h := hub.New(st, zerolog.Nop())
	gw := hub.NewGateway(h, st, verifier, nil, zerolog.Nop(), 2*time.Second, 16)

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	t.Cleanup(srv.Close)

	return &gatewayFixture{srv: srv, store: st, hub: h, verifier: verifier}
}

func (f *gatewayFixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame wsFrame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame wsFrame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// connect dials, authenticates as userID, and consumes the ready frame.
func (f *gatewayFixture) connect(t *testing.T, userID uuid.UUID) (*websocket.Conn, wsFrame) {
	t.Helper()
	conn := f.dial(t)

	signed, err := f.verifier.Mint(userID)
	require.NoError(t, err)
	writeFrame(t, conn, wsFrame{Type: "auth", Token: signed})

	ready := readFrame(t, conn)
	require.Equal(t, "ready", ready.Type)
	return conn, ready
}

func TestHandshakeRejectsBadCredential(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	writeFrame(t, conn, wsFrame{Type: "auth", Token: "garbage"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "server must close the connection after a failed handshake")
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation) ||
		websocket.IsUnexpectedCloseError(err))
}

func TestHandshakeRequiresAuthFrameFirst(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	writeFrame(t, conn, wsFrame{Type: "join_chat", ChatID: uuid.NewString()})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestBootstrapJoinsExistingChats(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	userA, userB := uuid.New(), uuid.New()

	chat, _, err := f.store.ResolveOrCreateChat(ctx, userA, userB)
	require.NoError(t, err)

	_, ready := f.connect(t, userB)
	require.Equal(t, []string{chat.ID.String()}, ready.ChatIDs)
	require.Equal(t, 1, f.hub.RoomCount())
}

func TestLiveDeliveryAndPollCatchUp(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	userA, userB := uuid.New(), uuid.New()

	chat, _, err := f.store.ResolveOrCreateChat(ctx, userA, userB)
	require.NoError(t, err)

	// B is live and auto-joined to the chat's room.
	connB, _ := f.connect(t, userB)

	// A sends "hi" through the store + fan-out path.
	msg, err := f.store.AppendMessage(ctx, chat.ID, userA, "hi")
	require.NoError(t, err)
	f.hub.PushMessage(chat.ID, msg)

	event := readFrame(t, connB)
	require.Equal(t, "receive_message", event.Type)
	require.Contains(t, string(event.Message), `"hi"`)
	require.Contains(t, string(event.Message), userA.String())

	// B disconnects; the room empties once teardown completes.
	connB.Close()
	require.Eventually(t, func() bool { return f.hub.RoomCount() == 0 },
		3*time.Second, 10*time.Millisecond)

	// A sends again; nothing is buffered for the disconnected peer.
	msg2, err := f.store.AppendMessage(ctx, chat.ID, userA, "you there?")
	require.NoError(t, err)
	f.hub.PushMessage(chat.ID, msg2)

	// B catches up by polling history: both messages, in order.
	messages, err := f.store.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "hi", messages[0].Text)
	require.Equal(t, "you there?", messages[1].Text)
}

// slowLookupStore stalls chat lookups until the caller's context ends.
type slowLookupStore struct {
	store.DataStore
}

func (s *slowLookupStore) ChatIDsForUser(ctx context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDisconnectCancelsBootstrap(t *testing.T) {
	st, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	verifier := token.NewVerifier("test-secret", time.Hour)
	h := hub.New(st, zerolog.Nop())
	gw := hub.NewGateway(h, &slowLookupStore{DataStore: st}, verifier, nil, zerolog.Nop(), 2*time.Second, 16)

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	signed, err := verifier.Mint(uuid.New())
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsFrame{Type: "auth", Token: signed}))

	// Close while the chat lookup is still stalled. Teardown must cancel
	// the lookup and drain the session well inside the lookup's own
	// timeout.
	conn.Close()
	require.Eventually(t, func() bool { return h.ConnectionCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestJoinChatRequestValidation(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	userB, userC, userD := uuid.New(), uuid.New(), uuid.New()

	foreign, _, err := f.store.ResolveOrCreateChat(ctx, userC, userD)
	require.NoError(t, err)

	conn, _ := f.connect(t, userB)

	// Joining someone else's chat fails in-band; the connection stays up.
	writeFrame(t, conn, wsFrame{Type: "join_chat", ChatID: foreign.ID.String()})
	reply := readFrame(t, conn)
	require.Equal(t, "error", reply.Type)
	require.Equal(t, "forbidden", reply.Kind)

	// Malformed chat id also answers in-band.
	writeFrame(t, conn, wsFrame{Type: "join_chat", ChatID: "not-a-uuid"})
	reply = readFrame(t, conn)
	require.Equal(t, "error", reply.Type)
	require.Equal(t, "invalid_argument", reply.Kind)

	// A chat created after connect can be joined explicitly.
	own, _, err := f.store.ResolveOrCreateChat(ctx, userB, userC)
	require.NoError(t, err)
	writeFrame(t, conn, wsFrame{Type: "join_chat", ChatID: own.ID.String()})
	reply = readFrame(t, conn)
	require.Equal(t, "joined", reply.Type)
	require.Equal(t, own.ID.String(), reply.ChatID)
}
