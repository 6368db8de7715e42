package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/api/middleware"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/metrics"
)

// CreateOrGetChatRequest is the create-or-get request body.
type CreateOrGetChatRequest struct {
	TargetUserID string `json:"target_user_id"`
}

// ChatResponse identifies a chat in API responses.
type ChatResponse struct {
	ChatID string `json:"chat_id"`
}

// CreateOrGetChat resolves the unique chat between the caller and the target
// user, creating it when it does not exist. Responds 201 on creation, 200
// when the existing chat is returned.
func (h *Handler) CreateOrGetChat(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.Fail(w, apperrors.Unauthenticated, "authentication required")
		return
	}

	var req CreateOrGetChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Fail(w, apperrors.InvalidArgument, "invalid JSON body")
		return
	}

	targetID, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		h.Fail(w, apperrors.InvalidArgument, "invalid target user ID format")
		return
	}

	chat, created, err := h.store.ResolveOrCreateChat(r.Context(), callerID, targetID)
	if err != nil {
		h.Error(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.ChatsCreated.Inc()
	}
	h.JSON(w, status, ChatResponse{ChatID: chat.ID.String()})
}

// DeleteChat removes a chat with all of its messages and evicts its room
// from the registry. Only a participant may delete a chat.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
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

	if err := h.store.DeleteChat(r.Context(), chatID); err != nil {
		h.Error(w, err)
		return
	}

	// Evict live connections from the room; their sockets stay open.
	h.hub.DropRoom(chatID)

	h.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
