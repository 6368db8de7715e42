package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/api/middleware"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/metrics"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/models"
)

const maxMessageBytes = 4096

// SendMessageRequest is the send message request body.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// MessageListResponse is the message history response.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

// GetMessages returns all messages of a chat in ascending timestamp order.
// REST history is the source of truth; clients without a live connection
// poll this endpoint for catch-up.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.Fail(w, apperrors.Unauthenticated, "authentication required")
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		h.Fail(w, apperrors.InvalidArgument, "invalid chat ID format")
		return
	}

	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		h.Error(w, err)
		return
	}
	if chat == nil {
		h.Fail(w, apperrors.NotFound, "chat not found")
		return
	}

	member, err := h.store.IsParticipant(r.Context(), chatID, callerID)
	if err != nil {
		h.Error(w, err)
		return
	}
	if !member {
		h.Fail(w, apperrors.Forbidden, "not a participant of this chat")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), chatID)
	if err != nil {
		h.Error(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

// SendMessage persists a message and fans it out to the chat's live room.
// Success is defined solely by durable persistence; delivery to live
// connections is best-effort and not reported to the sender.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.Fail(w, apperrors.Unauthenticated, "authentication required")
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		h.Fail(w, apperrors.InvalidArgument, "invalid chat ID format")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Fail(w, apperrors.InvalidArgument, "invalid JSON body")
		return
	}
	if len(req.Text) > maxMessageBytes {
		h.Fail(w, apperrors.InvalidArgument, "text too long (max 4096 bytes)")
		return
	}

	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		h.Error(w, err)
		return
	}
	if chat == nil {
		h.Fail(w, apperrors.NotFound, "chat not found")
		return
	}

	msg, err := h.store.AppendMessage(r.Context(), chatID, callerID, req.Text)
	if err != nil {
		h.Error(w, err)
		return
	}
	metrics.MessagesStored.Inc()

	h.hub.PushMessage(chatID, msg)

	h.JSON(w, http.StatusCreated, msg)
}
