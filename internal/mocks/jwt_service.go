package mocks

import (
	"context"
	"time"

	"github.com/phrazzld/shannon/internal/service/auth"
)

// MockJWTService is a mock implementation of auth.JWTService. Without
// function fields it accepts Token and rejects everything else.
type MockJWTService struct {
	GenerateTokenFn func(ctx context.Context, client string) (string, error)
	ValidateTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)

	Token string
}

// Ensure MockJWTService implements auth.JWTService
var _ auth.JWTService = (*MockJWTService)(nil)

// NewMockJWTService returns a mock accepting "mock-jwt-token".
func NewMockJWTService() *MockJWTService {
	return &MockJWTService{Token: "mock-jwt-token"}
}

// GenerateToken implements auth.JWTService.
func (m *MockJWTService) GenerateToken(ctx context.Context, client string) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, client)
	}
	return m.Token, nil
}

// ValidateToken implements auth.JWTService.
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	if tokenString == "" {
		return nil, auth.ErrMissingToken
	}
	if tokenString != m.Token {
		return nil, auth.ErrInvalidToken
	}
	now := time.Now()
	return &auth.Claims{Client: "extension", IssuedAt: now, ExpiresAt: now.Add(time.Hour), ID: "mock"}, nil
}
