package handlers

import (
	"context"
	"net/http"
	"time"
)

// StatsResponse summarizes the delivery core's current state.
type StatsResponse struct {
	Chats           int64 `json:"chats"`
	Messages        int64 `json:"messages"`
	LiveConnections int   `json:"live_connections"`
	OpenRooms       int   `json:"open_rooms"`
}

// Stats reports chat, message, and live-connection counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	chats, err := h.store.CountChats(ctx)
	if err != nil {
		h.Error(w, err)
		return
	}
	messages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, err)
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		Chats:           chats,
		Messages:        messages,
		LiveConnections: h.hub.ConnectionCount(),
		OpenRooms:       h.hub.RoomCount(),
	})
}
