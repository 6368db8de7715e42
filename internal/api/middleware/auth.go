package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/token"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware verifies the bearer credential on REST requests.
type AuthMiddleware struct {
	verifier *token.Verifier
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier *token.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid Authorization: Bearer token
// and stores the authenticated user ID in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			authError(w, "missing bearer credential")
			return
		}

		userID, err := m.verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			authError(w, apperrors.MessageOf(err))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"kind": string(apperrors.Unauthenticated), "message": message},
	})
}

// UserFromContext retrieves the authenticated user ID from the request
// context.
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userContextKey).(uuid.UUID)
	return userID, ok
}

// WithUser returns a context carrying an authenticated user ID. Exposed for
// handler tests.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}
