package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/accounts/internal/app/domain/user"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func userRows(u user.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "activation_uuid", "username", "first_name", "last_name", "full_name",
		"email", "date_of_birth", "date_joined", "password_hash", "is_staff",
		"is_active", "is_superuser", "activation_status", "created_at", "updated_at",
	}).AddRow(
		u.ID, u.ActivationUUID, u.Username, u.FirstName, u.LastName, u.FullName,
		u.Email, u.DateOfBirth, u.DateJoined, u.PasswordHash, u.IsStaff,
		u.IsActive, u.IsSuperuser, u.ActivationStatus, u.CreatedAt, u.UpdatedAt,
	)
}

func TestGetUser(t *testing.T) {
	store, mock := newMockStore(t)

	want := user.User{
		ID:               "u-1",
		Username:         "alice",
		Email:            "alice@example.com",
		IsActive:         true,
		ActivationStatus: user.StatusAccepted,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	mock.ExpectQuery("SELECT (.+) FROM accounts_users").
		WithArgs("u-1").
		WillReturnRows(userRows(want))

	got, err := store.GetUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, want.Username, got.Username)
	assert.Equal(t, want.Email, got.Email)
	assert.True(t, got.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts_users").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), "missing")
	assert.True(t, user.IsNotFound(err), "expected not found, got %v", err)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO accounts_users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_users_email_key"})

	_, err := store.CreateUser(context.Background(), user.User{
		Username: "dup", Email: "dup@example.com",
	})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO accounts_users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_users_username_key"})

	_, err := store.CreateUser(context.Background(), user.User{
		Username: "dup", Email: "dup@example.com",
	})
	assert.ErrorIs(t, err, user.ErrUsernameTaken)
}

func TestListUsersExcludesAnonymous(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts_users").
		WithArgs(user.AnonymousUsername).
		WillReturnRows(userRows(user.User{ID: "u-1", Username: "alice"}))

	list, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResetTokenNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts_password_reset_tokens").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetResetToken(context.Background(), "nope")
	assert.True(t, user.IsNotFound(err), "expected not found, got %v", err)
}

func TestDeleteExpiredSessionsCount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM accounts_sessions").
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.DeleteExpiredSessions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestDeleteExpiredResetTokensCutoff(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectExec("DELETE FROM accounts_password_reset_tokens").
		WithArgs(now.Add(-user.ResetTokenTTL)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := store.DeleteExpiredResetTokens(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}
