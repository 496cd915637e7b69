// Package auth issues and validates the bearer tokens presented by clients
// of the message API, such as the browser extension and shannonctl.
package auth

import (
	"context"
	"time"
)

// MinSecretLength is the shortest accepted HMAC signing secret.
const MinSecretLength = 32

// JWTService defines operations for managing client tokens.
type JWTService interface {
	// GenerateToken creates a signed token for the named client.
	GenerateToken(ctx context.Context, client string) (string, error)

	// ValidateToken validates tokenString and returns its claims. It fails
	// with ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated contents of a client token.
type Claims struct {
	// Client names the holder of the token, e.g. "extension"
	Client    string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	ID        string    `json:"jti"`
}
