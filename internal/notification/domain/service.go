package domain

import (
	"context"
	"errors"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks

// Sender delivers one push message. It reports delivery and never returns
// an error; failures are logged by the implementation.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) bool
}

type Service interface {
	RegisterToken(ctx context.Context, userID, token string) error
	Token(ctx context.Context, userID string) (string, error)
	ListTokens(ctx context.Context) ([]Token, error)
	SendToUser(ctx context.Context, userID, title, body string, data map[string]string) (bool, error)
	Sender() Sender
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrTokenNotFound = errors.New("token_not_found")
)
