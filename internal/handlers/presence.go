package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
)

// PresenceResponse reports whether a user currently holds a live
// connection anywhere in the cluster.
type PresenceResponse struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// GetPresence handles GET /presence/{userID}. Presence is tracked in
// Redis; without it the endpoint reports unavailable rather than guessing.
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.Fail(w, apperrors.InvalidArgument, "invalid user id")
		return
	}

	if h.redis == nil {
		h.Fail(w, apperrors.Unavailable, "presence tracking is not enabled")
		return
	}

	online, err := h.redis.IsOnline(r.Context(), userID.String())
	if err != nil {
		h.Error(w, apperrors.Wrap(apperrors.Unavailable, "presence lookup failed", err))
		return
	}

	h.JSON(w, http.StatusOK, PresenceResponse{UserID: userID.String(), Online: online})
}
