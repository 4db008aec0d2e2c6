package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopfront/accounts/internal/app/domain/user"
	"github.com/shopfront/accounts/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[string]user.User
	resetTokens map[string]user.PasswordResetToken // keyed by token value
	sessions    map[string]user.Session            // keyed by token hash
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ResetTokenStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		users:       make(map[string]user.User),
		resetTokens: make(map[string]user.PasswordResetToken),
		sessions:    make(map[string]user.Session),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return user.User{}, user.ErrEmailTaken
		}
		if existing.Username == u.Username {
			return user.User{}, user.ErrUsernameTaken
		}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, user.NewNotFoundError("user", u.ID)
	}
	for id, existing := range s.users {
		if id == u.ID {
			continue
		}
		if existing.Email == u.Email {
			return user.User{}, user.ErrEmailTaken
		}
		if existing.Username == u.Username {
			return user.User{}, user.ErrUsernameTaken
		}
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.NewNotFoundError("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	return s.findUser(func(u user.User) bool { return u.Username == username }, username)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	return s.findUser(func(u user.User) bool { return u.Email == email }, email)
}

func (s *Store) GetUserByActivationUUID(_ context.Context, uuid string) (user.User, error) {
	return s.findUser(func(u user.User) bool { return u.ActivationUUID == uuid }, uuid)
}

func (s *Store) findUser(match func(user.User) bool, key string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return user.User{}, user.NewNotFoundError("user", key)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Username == user.AnonymousUsername {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ResetTokenStore implementation ----------------------------------------------

func (s *Store) CreateResetToken(_ context.Context, t user.PasswordResetToken) (user.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.resetTokens[t.Token]; exists {
		return user.PasswordResetToken{}, fmt.Errorf("reset token collision")
	}

	s.resetTokens[t.Token] = t
	return t, nil
}

func (s *Store) GetResetToken(_ context.Context, token string) (user.PasswordResetToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.resetTokens[token]
	if !ok {
		return user.PasswordResetToken{}, user.NewNotFoundError("reset token", "")
	}
	return t, nil
}

// ResetTokenForUser returns the stored token for a user. Tests use it to
// observe tokens that production code only ever mails out.
func (s *Store) ResetTokenForUser(_ context.Context, userID string) (user.PasswordResetToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.resetTokens {
		if t.UserID == userID {
			return t, nil
		}
	}
	return user.PasswordResetToken{}, user.NewNotFoundError("reset token", userID)
}

func (s *Store) DeleteResetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.resetTokens, token)
	return nil
}

func (s *Store) DeleteResetTokensForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, t := range s.resetTokens {
		if t.UserID == userID {
			delete(s.resetTokens, token)
		}
	}
	return nil
}

func (s *Store) DeleteExpiredResetTokens(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := before.Add(-user.ResetTokenTTL)
	removed := 0
	for token, t := range s.resetTokens {
		if t.CreatedAt.Before(cutoff) {
			delete(s.resetTokens, token)
			removed++
		}
	}
	return removed, nil
}

// SessionStore implementation --------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess user.Session) (user.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActiveAt.IsZero() {
		sess.LastActiveAt = sess.CreatedAt
	}

	s.sessions[sess.TokenHash] = sess
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, hash string) (user.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[hash]
	if !ok {
		return user.Session{}, user.NewNotFoundError("session", "")
	}
	return sess, nil
}

func (s *Store) TouchSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, sess := range s.sessions {
		if sess.ID == id {
			sess.LastActiveAt = at
			s.sessions[hash] = sess
			return nil
		}
	}
	return user.NewNotFoundError("session", id)
}

func (s *Store) DeleteSessionByTokenHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, hash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for hash, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed, nil
}
