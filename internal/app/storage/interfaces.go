// Package storage declares the persistence interfaces the services consume.
package storage

import (
	"context"
	"time"

	"github.com/shopfront/accounts/internal/app/domain/user"
)

// UserStore persists account records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByActivationUUID(ctx context.Context, uuid string) (user.User, error)
	// ListUsers returns accounts newest first, excluding the anonymous
	// placeholder account.
	ListUsers(ctx context.Context) ([]user.User, error)
}

// ResetTokenStore persists password reset tokens.
type ResetTokenStore interface {
	CreateResetToken(ctx context.Context, t user.PasswordResetToken) (user.PasswordResetToken, error)
	GetResetToken(ctx context.Context, token string) (user.PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, token string) error
	DeleteResetTokensForUser(ctx context.Context, userID string) error
	DeleteExpiredResetTokens(ctx context.Context, before time.Time) (int, error)
}

// SessionStore persists issued-token sessions by hash.
type SessionStore interface {
	CreateSession(ctx context.Context, s user.Session) (user.Session, error)
	GetSessionByTokenHash(ctx context.Context, hash string) (user.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSessionByTokenHash(ctx context.Context, hash string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error)
}
