// Package auth issues and validates JWT access tokens and runs the password
// reset and change flows.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shopfront/accounts/internal/app/domain/user"
	"github.com/shopfront/accounts/internal/app/services/users"
	"github.com/shopfront/accounts/internal/app/storage"
	"github.com/shopfront/accounts/internal/notify"
	"github.com/shopfront/accounts/pkg/logger"
)

// Token type discriminators carried in the claims.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken covers malformed, expired and mistyped tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionExpired is returned when a structurally valid access token has
	// no live session behind it (logged out or purged).
	ErrSessionExpired = errors.New("session expired")
	// ErrWrongPassword rejects a password change with a bad current password.
	ErrWrongPassword = errors.New("your current password doesn't matched")
	// ErrResetTokenExpired rejects reset links older than the token lifetime.
	ErrResetTokenExpired = errors.New("token is expired")
)

// Claims are the JWT claims issued by this service. Username and full name
// ride along for display purposes.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token pair.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Config controls token issuance.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service implements authentication on top of the user service.
type Service struct {
	users    *users.Service
	tokens   storage.ResetTokenStore
	sessions storage.SessionStore
	notifier notify.Notifier
	cfg      Config
	log      *logger.Logger
}

// New constructs an auth service.
func New(userSvc *users.Service, tokens storage.ResetTokenStore, sessions storage.SessionStore, notifier notify.Notifier, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "shopfront-accounts"
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{users: userSvc, tokens: tokens, sessions: sessions, notifier: notifier, cfg: cfg, log: log}
}

// IssueTokens authenticates the credentials and returns a token pair. The
// access token is backed by a stored session.
func (s *Service) IssueTokens(ctx context.Context, username, password string) (TokenPair, user.User, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return TokenPair{}, user.User{}, err
	}

	access, err := s.sign(u, tokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, user.User{}, err
	}
	refresh, err := s.sign(u, tokenTypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, user.User{}, err
	}

	if err := s.recordSession(ctx, u.ID, access); err != nil {
		return TokenPair{}, user.User{}, err
	}

	s.log.WithField("user_id", u.ID).Info("tokens issued")
	return TokenPair{Access: access, Refresh: refresh}, u, nil
}

// Refresh exchanges a refresh token for a fresh access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", ErrInvalidToken
	}

	u, err := s.users.Get(ctx, claims.UserID)
	if err != nil || !u.IsActive {
		return "", ErrInvalidToken
	}

	access, err := s.sign(u, tokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return "", err
	}
	if err := s.recordSession(ctx, u.ID, access); err != nil {
		return "", err
	}
	return access, nil
}

// Verify checks a token's signature and expiry without touching sessions.
func (s *Service) Verify(tokenString string) error {
	_, err := s.parse(tokenString)
	return err
}

// ValidateAccess checks an access token and its backing session, refreshes the
// session activity timestamp and returns the claims.
func (s *Service) ValidateAccess(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrInvalidToken
	}

	sess, err := s.sessions.GetSessionByTokenHash(ctx, HashToken(tokenString))
	if err != nil {
		return nil, ErrSessionExpired
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	_ = s.sessions.TouchSession(ctx, sess.ID, time.Now().UTC())

	return claims, nil
}

// Logout removes the session behind an access token.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	return s.sessions.DeleteSessionByTokenHash(ctx, HashToken(tokenString))
}

// ChangePassword verifies the current password and stores the new one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !users.CheckPassword(u.PasswordHash, oldPassword) {
		return ErrWrongPassword
	}
	if _, err := s.users.SetPassword(ctx, userID, newPassword); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}

// RequestPasswordReset issues a single-use reset token for the account behind
// the email and mails the reset link. Prior tokens are discarded so at most
// one link is live per user.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.tokens.DeleteResetTokensForUser(ctx, u.ID); err != nil {
		return err
	}

	value, err := randomToken(50)
	if err != nil {
		return err
	}
	token, err := s.tokens.CreateResetToken(ctx, user.PasswordResetToken{
		UserID: u.ID,
		Token:  value,
	})
	if err != nil {
		return err
	}

	if err := s.notifier.ForgotPassword(ctx, u.Email, token.Token); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("password reset mail failed")
	}

	s.log.WithField("user_id", u.ID).Info("password reset requested")
	return nil
}

// ResetPassword consumes a reset token and stores the new password. Expired
// tokens are deleted and rejected.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	t, err := s.tokens.GetResetToken(ctx, token)
	if err != nil {
		return err
	}
	if t.Expired(time.Now()) {
		_ = s.tokens.DeleteResetToken(ctx, token)
		return ErrResetTokenExpired
	}

	if _, err := s.users.SetPassword(ctx, t.UserID, password); err != nil {
		return err
	}
	if err := s.tokens.DeleteResetToken(ctx, token); err != nil {
		return err
	}

	s.log.WithField("user_id", t.UserID).Info("password reset completed")
	return nil
}

func (s *Service) sign(u user.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.cfg.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) recordSession(ctx context.Context, userID, accessToken string) error {
	now := time.Now().UTC()
	_, err := s.sessions.CreateSession(ctx, user.Session{
		UserID:    userID,
		TokenHash: HashToken(accessToken),
		ExpiresAt: now.Add(s.cfg.AccessTTL),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// HashToken derives the storage key for a token. Tokens are never stored in
// the clear.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf)[:n], nil
}
