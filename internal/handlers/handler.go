package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/hub"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store  store.DataStore
	hub    *hub.Hub
	redis  *store.RedisStore // optional
	logger zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(st store.DataStore, h *hub.Hub, redis *store.RedisStore, logger zerolog.Logger) *Handler {
	return &Handler{store: st, hub: h, redis: redis, logger: logger}
}

// errorBody is the machine-readable error envelope.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error maps err onto the error taxonomy and writes the envelope. The
// wrapped cause is logged, never serialized.
func (h *Handler) Error(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.Internal {
		h.logger.Error().Err(err).Msg("request failed")
	}
	h.JSON(w, apperrors.HTTPStatus(kind), map[string]errorBody{
		"error": {Kind: string(kind), Message: apperrors.MessageOf(err)},
	})
}

// Fail writes an error envelope for an explicit kind and message.
func (h *Handler) Fail(w http.ResponseWriter, kind apperrors.Kind, message string) {
	h.Error(w, apperrors.New(kind, message))
}
