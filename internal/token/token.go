// Package token implements the bearer credential used by both the REST API
// and the WebSocket handshake: a signed JWT carrying a user UUID and expiry.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
)

var errUnexpectedMethod = errors.New("unexpected signing method")

// Verifier mints and verifies bearer tokens against a server-held secret.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Mint creates a signed token for userID, expiring after the configured TTL.
func (v *Verifier) Mint(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify checks the signature and expiry of a bearer token and extracts the
// user identifier. All failures collapse to Unauthenticated; the token value
// itself is never included in the returned error.
func (v *Verifier) Verify(tokenString string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedMethod
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, apperrors.Wrap(apperrors.Unauthenticated, "invalid or expired credential", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, apperrors.New(apperrors.Unauthenticated, "invalid or expired credential")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.Unauthenticated, "invalid or expired credential", err)
	}
	return userID, nil
}
