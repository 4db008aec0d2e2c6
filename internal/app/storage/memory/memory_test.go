package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopfront/accounts/internal/app/domain/user"
)

func TestUserUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, user.User{Username: "a", Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateUser(ctx, user.User{Username: "b", Email: "a@example.com"}); err != user.ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := s.CreateUser(ctx, user.User{Username: "a", Email: "b@example.com"}); err != user.ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, user.User{Username: "a", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	created.FirstName = "Changed"
	updated, err := s.UpdateUser(ctx, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("update rewrote created_at")
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Error("updated_at went backwards")
	}
}

func TestUpdateUnknownUser(t *testing.T) {
	s := New()

	if _, err := s.UpdateUser(context.Background(), user.User{ID: "missing"}); !user.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLookupsByField(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, user.User{
		Username: "finder", Email: "find@example.com", ActivationUUID: "uuid-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if u, err := s.GetUserByUsername(ctx, "finder"); err != nil || u.ID != created.ID {
		t.Errorf("GetUserByUsername = %v, %v", u.ID, err)
	}
	if u, err := s.GetUserByEmail(ctx, "find@example.com"); err != nil || u.ID != created.ID {
		t.Errorf("GetUserByEmail = %v, %v", u.ID, err)
	}
	if u, err := s.GetUserByActivationUUID(ctx, "uuid-1"); err != nil || u.ID != created.ID {
		t.Errorf("GetUserByActivationUUID = %v, %v", u.ID, err)
	}
	if _, err := s.GetUser(ctx, "999"); !user.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeleteExpiredResetTokens(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	fresh := user.PasswordResetToken{UserID: "1", Token: "fresh", CreatedAt: now}
	stale := user.PasswordResetToken{UserID: "1", Token: "stale", CreatedAt: now.Add(-user.ResetTokenTTL - time.Minute)}
	for _, tok := range []user.PasswordResetToken{fresh, stale} {
		if _, err := s.CreateResetToken(ctx, tok); err != nil {
			t.Fatalf("create token: %v", err)
		}
	}

	removed, err := s.DeleteExpiredResetTokens(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d tokens, want 1", removed)
	}
	if _, err := s.GetResetToken(ctx, "fresh"); err != nil {
		t.Errorf("fresh token purged: %v", err)
	}
	if _, err := s.GetResetToken(ctx, "stale"); !user.IsNotFound(err) {
		t.Errorf("stale token survived: %v", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	live := user.Session{UserID: "1", TokenHash: "live", ExpiresAt: now.Add(time.Hour)}
	dead := user.Session{UserID: "1", TokenHash: "dead", ExpiresAt: now.Add(-time.Hour)}
	for _, sess := range []user.Session{live, dead} {
		if _, err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	removed, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d sessions, want 1", removed)
	}
	if _, err := s.GetSessionByTokenHash(ctx, "live"); err != nil {
		t.Errorf("live session purged: %v", err)
	}
}

func TestTouchSession(t *testing.T) {
	s := New()
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, user.Session{
		UserID: "1", TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	at := time.Now().Add(time.Minute).UTC()
	if err := s.TouchSession(ctx, sess.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := s.GetSessionByTokenHash(ctx, "h")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastActiveAt.Equal(at) {
		t.Errorf("last_active_at = %v, want %v", got.LastActiveAt, at)
	}
}
