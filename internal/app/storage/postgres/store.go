// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shopfront/accounts/internal/app/domain/user"
	"github.com/shopfront/accounts/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ResetTokenStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, activation_uuid, username, first_name, last_name, full_name, email,
	date_of_birth, date_joined, password_hash, is_staff, is_active, is_superuser,
	activation_status, created_at, updated_at`

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO accounts_users (id, activation_uuid, username, first_name, last_name, full_name,
			email, date_of_birth, date_joined, password_hash, is_staff, is_active, is_superuser,
			activation_status, created_at, updated_at)
		VALUES (:id, :activation_uuid, :username, :first_name, :last_name, :full_name,
			:email, :date_of_birth, :date_joined, :password_hash, :is_staff, :is_active, :is_superuser,
			:activation_status, :created_at, :updated_at)
	`, u)
	if err != nil {
		return user.User{}, translateUniqueViolation(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE accounts_users
		SET activation_uuid = :activation_uuid, username = :username, first_name = :first_name,
			last_name = :last_name, full_name = :full_name, email = :email,
			date_of_birth = :date_of_birth, date_joined = :date_joined,
			password_hash = :password_hash, is_staff = :is_staff, is_active = :is_active,
			is_superuser = :is_superuser, activation_status = :activation_status,
			updated_at = :updated_at
		WHERE id = :id
	`, u)
	if err != nil {
		return user.User{}, translateUniqueViolation(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, user.NewNotFoundError("user", u.ID)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.getUserBy(ctx, "id", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.getUserBy(ctx, "username", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getUserBy(ctx, "email", email)
}

func (s *Store) GetUserByActivationUUID(ctx context.Context, uuid string) (user.User, error) {
	return s.getUserBy(ctx, "activation_uuid", uuid)
}

func (s *Store) getUserBy(ctx context.Context, column, value string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT `+userColumns+`
		FROM accounts_users
		WHERE `+column+` = $1
	`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.NewNotFoundError("user", value)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	users := []user.User{}
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM accounts_users
		WHERE username <> $1
		ORDER BY created_at DESC
	`, user.AnonymousUsername)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// --- ResetTokenStore ---------------------------------------------------------

func (s *Store) CreateResetToken(ctx context.Context, t user.PasswordResetToken) (user.PasswordResetToken, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts_password_reset_tokens (id, user_id, token, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.UserID, t.Token, t.CreatedAt)
	if err != nil {
		return user.PasswordResetToken{}, err
	}
	return t, nil
}

func (s *Store) GetResetToken(ctx context.Context, token string) (user.PasswordResetToken, error) {
	var t user.PasswordResetToken
	err := s.db.GetContext(ctx, &t, `
		SELECT id, user_id, token, created_at
		FROM accounts_password_reset_tokens
		WHERE token = $1
	`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return user.PasswordResetToken{}, user.NewNotFoundError("reset token", "")
	}
	if err != nil {
		return user.PasswordResetToken{}, err
	}
	return t, nil
}

func (s *Store) DeleteResetToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM accounts_password_reset_tokens WHERE token = $1
	`, token)
	return err
}

func (s *Store) DeleteResetTokensForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM accounts_password_reset_tokens WHERE user_id = $1
	`, userID)
	return err
}

func (s *Store) DeleteExpiredResetTokens(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM accounts_password_reset_tokens WHERE created_at < $1
	`, before.Add(-user.ResetTokenTTL))
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- SessionStore ------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess user.Session) (user.Session, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts_sessions (id, user_id, token_hash, expires_at, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt, sess.LastActiveAt)
	if err != nil {
		return user.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, hash string) (user.Session, error) {
	var sess user.Session
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, user_id, token_hash, expires_at, created_at, last_active_at
		FROM accounts_sessions
		WHERE token_hash = $1
	`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Session{}, user.NewNotFoundError("session", "")
	}
	if err != nil {
		return user.Session{}, err
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts_sessions SET last_active_at = $2 WHERE id = $1
	`, id, at)
	return err
}

func (s *Store) DeleteSessionByTokenHash(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM accounts_sessions WHERE token_hash = $1
	`, hash)
	return err
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM accounts_sessions WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// translateUniqueViolation maps unique-constraint failures onto the domain
// sentinels so handlers can answer with the original API's error shape.
func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		return user.ErrEmailTaken
	case strings.Contains(pqErr.Constraint, "username"):
		return user.ErrUsernameTaken
	default:
		return err
	}
}
