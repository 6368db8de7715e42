package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/api"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/config"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/hub"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/models"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/store"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/token"
)

type fixture struct {
	srv      *httptest.Server
	store    *store.SQLiteStore
	hub      *hub.Hub
	verifier *token.Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	cfg := &config.Config{
		Port:               "0",
		Env:                "test",
		TokenSecret:        "test-secret",
		TokenTTL:           time.Hour,
		RateLimitPerMinute: 1000,
		WSAuthTimeout:      2 * time.Second,
		WSSendBufferSize:   16,
	}

	verifier := token.NewVerifier(cfg.TokenSecret, cfg.TokenTTL)
	chatHub := hub.New(st, zerolog.Nop())
	gateway := hub.NewGateway(chatHub, st, verifier, nil, zerolog.Nop(), cfg.WSAuthTimeout, cfg.WSSendBufferSize)

	router := api.NewRouter(cfg, zerolog.Nop(), st, nil, chatHub, gateway, verifier)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, store: st, hub: chatHub, verifier: verifier}
}

// do issues a request as userID (or unauthenticated when userID is nil).
func (f *fixture) do(t *testing.T, method, path string, userID *uuid.UUID, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != nil {
		signed, err := f.verifier.Mint(*userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+signed)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func errorKind(t *testing.T, raw []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return envelope.Error.Kind
}

func (f *fixture) createChat(t *testing.T, caller, target uuid.UUID) string {
	t.Helper()
	resp, raw := f.do(t, http.MethodPost, "/chats/create-or-get", &caller,
		map[string]string{"target_user_id": target.String()})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, resp.StatusCode)
	var chat struct {
		ChatID string `json:"chat_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &chat))
	return chat.ChatID
}

func TestCreateOrGetChatRequiresAuth(t *testing.T) {
	f := newFixture(t)
	resp, raw := f.do(t, http.MethodPost, "/chats/create-or-get", nil,
		map[string]string{"target_user_id": uuid.NewString()})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthenticated", errorKind(t, raw))
}

func TestCreateOrGetChatIsIdempotent(t *testing.T) {
	f := newFixture(t)
	userA, userB := uuid.New(), uuid.New()

	resp, raw := f.do(t, http.MethodPost, "/chats/create-or-get", &userA,
		map[string]string{"target_user_id": userB.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var first struct {
		ChatID string `json:"chat_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &first))

	// Same pair from the other side returns the same chat with 200.
	resp, raw = f.do(t, http.MethodPost, "/chats/create-or-get", &userB,
		map[string]string{"target_user_id": userA.String()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second struct {
		ChatID string `json:"chat_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &second))
	require.Equal(t, first.ChatID, second.ChatID)
}

func TestCreateOrGetChatRejectsSelf(t *testing.T) {
	f := newFixture(t)
	userA := uuid.New()

	resp, raw := f.do(t, http.MethodPost, "/chats/create-or-get", &userA,
		map[string]string{"target_user_id": userA.String()})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_argument", errorKind(t, raw))
}

func TestCreateOrGetChatRejectsBadTarget(t *testing.T) {
	f := newFixture(t)
	userA := uuid.New()

	resp, raw := f.do(t, http.MethodPost, "/chats/create-or-get", &userA,
		map[string]string{"target_user_id": "nope"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_argument", errorKind(t, raw))
}

func TestSendAndListMessages(t *testing.T) {
	f := newFixture(t)
	userA, userB := uuid.New(), uuid.New()
	chatID := f.createChat(t, userA, userB)

	resp, raw := f.do(t, http.MethodPost, fmt.Sprintf("/chats/%s/messages", chatID), &userA,
		map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sent models.Message
	require.NoError(t, json.Unmarshal(raw, &sent))
	require.NotEmpty(t, sent.ID)
	require.Equal(t, chatID, sent.ChatID)
	require.Equal(t, userA.String(), sent.SenderID)
	require.Equal(t, "hi", sent.Text)
	require.NotZero(t, sent.Timestamp)

	resp, raw = f.do(t, http.MethodPost, fmt.Sprintf("/chats/%s/messages", chatID), &userB,
		map[string]string{"text": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw = f.do(t, http.MethodGet, fmt.Sprintf("/chats/%s/messages", chatID), &userB, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Messages, 2)
	require.Equal(t, "hi", list.Messages[0].Text)
	require.Equal(t, "hello", list.Messages[1].Text)
	require.LessOrEqual(t, list.Messages[0].Timestamp, list.Messages[1].Timestamp)
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	f := newFixture(t)
	userA, userB := uuid.New(), uuid.New()
	chatID := f.createChat(t, userA, userB)

	for _, text := range []string{"", "   "} {
		resp, raw := f.do(t, http.MethodPost, fmt.Sprintf("/chats/%s/messages", chatID), &userA,
			map[string]string{"text": text})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "invalid_argument", errorKind(t, raw))
	}

	// Nothing was stored.
	resp, raw := f.do(t, http.MethodGet, fmt.Sprintf("/chats/%s/messages", chatID), &userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Empty(t, list.Messages)
}

func TestNonParticipantIsForbidden(t *testing.T) {
	f := newFixture(t)
	userA, userB, outsider := uuid.New(), uuid.New(), uuid.New()
	chatID := f.createChat(t, userA, userB)

	resp, raw := f.do(t, http.MethodGet, fmt.Sprintf("/chats/%s/messages", chatID), &outsider, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "forbidden", errorKind(t, raw))

	resp, raw = f.do(t, http.MethodPost, fmt.Sprintf("/chats/%s/messages", chatID), &outsider,
		map[string]string{"text": "hi"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "forbidden", errorKind(t, raw))
}

func TestGetMessagesUnknownChat(t *testing.T) {
	f := newFixture(t)
	userA := uuid.New()

	resp, raw := f.do(t, http.MethodGet, fmt.Sprintf("/chats/%s/messages", uuid.New()), &userA, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", errorKind(t, raw))
}

func TestDeleteChat(t *testing.T) {
	f := newFixture(t)
	userA, userB, outsider := uuid.New(), uuid.New(), uuid.New()
	chatID := f.createChat(t, userA, userB)

	resp, raw := f.do(t, http.MethodPost, fmt.Sprintf("/chats/%s/messages", chatID), &userA,
		map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A non-participant cannot delete; rows stay intact.
	resp, raw = f.do(t, http.MethodDelete, "/chats/"+chatID, &outsider, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw = f.do(t, http.MethodGet, fmt.Sprintf("/chats/%s/messages", chatID), &userA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A participant can.
	resp, raw = f.do(t, http.MethodDelete, "/chats/"+chatID, &userB, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Either former participant now gets NotFound.
	for _, u := range []uuid.UUID{userA, userB} {
		resp, raw = f.do(t, http.MethodGet, fmt.Sprintf("/chats/%s/messages", chatID), &u, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "not_found", errorKind(t, raw))
	}
}

func TestLiveGatewayThroughRouter(t *testing.T) {
	f := newFixture(t)
	userA, userB := uuid.New(), uuid.New()
	chatID := f.createChat(t, userA, userB)

	// The upgrade must survive the full middleware chain, not just a bare
	// handler.
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	signed, err := f.verifier.Mint(userB)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": signed}))

	var ready struct {
		Type    string   `json:"type"`
		ChatIDs []string `json:"chat_ids"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&ready))
	require.Equal(t, "ready", ready.Type)
	require.Equal(t, []string{chatID}, ready.ChatIDs)

	// A REST send reaches the live peer as a push event.
	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/chats/%s/messages", chatID), &userA,
		map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var event struct {
		Type    string         `json:"type"`
		Message models.Message `json:"message"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "receive_message", event.Type)
	require.Equal(t, "hi", event.Message.Text)
	require.Equal(t, userA.String(), event.Message.SenderID)
}

func TestGetPresenceWithoutRedis(t *testing.T) {
	f := newFixture(t)
	userA := uuid.New()

	resp, raw := f.do(t, http.MethodGet, "/presence/"+uuid.New().String(), &userA, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "unavailable", errorKind(t, raw))

	resp, raw = f.do(t, http.MethodGet, "/presence/not-a-uuid", &userA, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_argument", errorKind(t, raw))
}

func TestHealthAndStats(t *testing.T) {
	f := newFixture(t)

	resp, raw := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), `"healthy"`)

	userA, userB := uuid.New(), uuid.New()
	f.createChat(t, userA, userB)

	resp, raw = f.do(t, http.MethodGet, "/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Chats    int64 `json:"chats"`
		Messages int64 `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(raw, &stats))
	require.EqualValues(t, 1, stats.Chats)
}
