// Package redis implements the session store on Redis. Sessions carry their
// own TTL, so expiry is enforced server-side and the janitor has nothing to
// purge here.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/shopfront/accounts/internal/app/domain/user"
	"github.com/shopfront/accounts/internal/app/storage"
)

const keyPrefix = "accounts:session:"

// SessionStore persists sessions as JSON values keyed by token hash.
type SessionStore struct {
	client *goredis.Client
}

var _ storage.SessionStore = (*SessionStore)(nil)

// NewSessionStore wraps the given client.
func NewSessionStore(client *goredis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) CreateSession(ctx context.Context, sess user.Session) (user.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActiveAt.IsZero() {
		sess.LastActiveAt = sess.CreatedAt
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return user.Session{}, errors.New("session already expired")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return user.Session{}, err
	}
	if err := s.client.Set(ctx, keyPrefix+sess.TokenHash, payload, ttl).Err(); err != nil {
		return user.Session{}, err
	}
	return sess, nil
}

func (s *SessionStore) GetSessionByTokenHash(ctx context.Context, hash string) (user.Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+hash).Bytes()
	if errors.Is(err, goredis.Nil) {
		return user.Session{}, user.NewNotFoundError("session", "")
	}
	if err != nil {
		return user.Session{}, err
	}

	var sess user.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return user.Session{}, err
	}
	return sess, nil
}

func (s *SessionStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	// Activity tracking per session id would need a secondary index; the TTL
	// already bounds the session lifetime, so a touch is a no-op here.
	return nil
}

func (s *SessionStore) DeleteSessionByTokenHash(ctx context.Context, hash string) error {
	return s.client.Del(ctx, keyPrefix+hash).Err()
}

func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	// Redis expires keys itself.
	return 0, nil
}
