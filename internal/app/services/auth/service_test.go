package auth

import (
	"context"
	"testing"
	"time"

	"github.com/shopfront/accounts/internal/app/domain/user"
	"github.com/shopfront/accounts/internal/app/services/users"
	"github.com/shopfront/accounts/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *users.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	userSvc := users.New(store, nil, nil)
	authSvc := New(userSvc, store, store, nil, Config{Secret: []byte("test-secret")}, nil)
	return authSvc, userSvc, store
}

func seedUser(t *testing.T, userSvc *users.Service, username, password string) user.User {
	t.Helper()
	u, err := userSvc.CreateSuperuser(context.Background(), username+"@example.com", username, password)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestIssueTokensAndValidate(t *testing.T) {
	authSvc, userSvc, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, userSvc, "alice", "sup3rsecret")

	pair, u, err := authSvc.IssueTokens(ctx, "alice", "sup3rsecret")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatal("expected both tokens")
	}
	if u.Username != "alice" {
		t.Errorf("unexpected user %q", u.Username)
	}

	claims, err := authSvc.ValidateAccess(ctx, pair.Access)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if claims.UserID != u.ID || claims.Username != "alice" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.TokenType != tokenTypeAccess {
		t.Errorf("expected access token type, got %q", claims.TokenType)
	}
}

func TestIssueTokensRejectsBadCredentials(t *testing.T) {
	authSvc, userSvc, _ := newTestService(t)
	seedUser(t, userSvc, "bob", "sup3rsecret")

	if _, _, err := authSvc.IssueTokens(context.Background(), "bob", "wrong"); err != users.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	authSvc, userSvc, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, userSvc, "carol", "sup3rsecret")

	pair, _, err := authSvc.IssueTokens(ctx, "carol", "sup3rsecret")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}

	access, err := authSvc.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := authSvc.ValidateAccess(ctx, access); err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}

	// Access tokens must not refresh.
	if _, err := authSvc.Refresh(ctx, pair.Access); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken refreshing with access token, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	authSvc, userSvc, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, userSvc, "dave", "sup3rsecret")

	pair, _, err := authSvc.IssueTokens(ctx, "dave", "sup3rsecret")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	if err := authSvc.Verify(pair.Access); err != nil {
		t.Errorf("Verify(access) = %v", err)
	}
	if err := authSvc.Verify(pair.Refresh); err != nil {
		t.Errorf("Verify(refresh) = %v", err)
	}
	if err := authSvc.Verify("garbage.token.value"); err != ErrInvalidToken {
		t.Errorf("Verify(garbage) = %v, want ErrInvalidToken", err)
	}
}

func TestLogoutKillsSession(t *testing.T) {
	authSvc, userSvc, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, userSvc, "erin", "sup3rsecret")

	pair, _, err := authSvc.IssueTokens(ctx, "erin", "sup3rsecret")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	if err := authSvc.Logout(ctx, pair.Access); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// Token still verifies structurally but the session is gone.
	if err := authSvc.Verify(pair.Access); err != nil {
		t.Errorf("Verify after logout = %v", err)
	}
	if _, err := authSvc.ValidateAccess(ctx, pair.Access); err != ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	authSvc, userSvc, _ := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, userSvc, "frank", "sup3rsecret")

	if err := authSvc.ChangePassword(ctx, u.ID, "wrong", "an0thersecret"); err != ErrWrongPassword {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := authSvc.ChangePassword(ctx, u.ID, "sup3rsecret", "an0thersecret"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := userSvc.Authenticate(ctx, "frank", "an0thersecret"); err != nil {
		t.Fatalf("Authenticate with new password failed: %v", err)
	}
	if _, err := userSvc.Authenticate(ctx, "frank", "sup3rsecret"); err != users.ErrInvalidCredentials {
		t.Fatalf("old password still works: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	authSvc, userSvc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, userSvc, "grace", "sup3rsecret")

	if err := authSvc.RequestPasswordReset(ctx, "grace@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	first := findResetToken(t, store, u.ID)

	// A second request supersedes the first token.
	if err := authSvc.RequestPasswordReset(ctx, "grace@example.com"); err != nil {
		t.Fatalf("second RequestPasswordReset failed: %v", err)
	}
	second := findResetToken(t, store, u.ID)
	if first == second {
		t.Fatal("expected a fresh token on the second request")
	}
	if err := authSvc.ResetPassword(ctx, first, "an0thersecret"); !user.IsNotFound(err) {
		t.Fatalf("superseded token accepted: %v", err)
	}

	if err := authSvc.ResetPassword(ctx, second, "an0thersecret"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := userSvc.Authenticate(ctx, "grace", "an0thersecret"); err != nil {
		t.Fatalf("Authenticate with reset password failed: %v", err)
	}

	// Tokens are single use.
	if err := authSvc.ResetPassword(ctx, second, "thirdsecret1"); !user.IsNotFound(err) {
		t.Fatalf("consumed token accepted: %v", err)
	}
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	authSvc, _, _ := newTestService(t)

	if err := authSvc.RequestPasswordReset(context.Background(), "nobody@example.com"); !user.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPasswordResetExpiredToken(t *testing.T) {
	authSvc, userSvc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, userSvc, "henry", "sup3rsecret")

	stale, err := store.CreateResetToken(ctx, user.PasswordResetToken{
		UserID:    u.ID,
		Token:     "stale-token",
		CreatedAt: time.Now().Add(-user.ResetTokenTTL - time.Hour),
	})
	if err != nil {
		t.Fatalf("seed stale token: %v", err)
	}

	if err := authSvc.ResetPassword(ctx, stale.Token, "an0thersecret"); err != ErrResetTokenExpired {
		t.Fatalf("expected ErrResetTokenExpired, got %v", err)
	}
	// Expired tokens are deleted on rejection.
	if _, err := store.GetResetToken(ctx, stale.Token); !user.IsNotFound(err) {
		t.Fatalf("expired token still stored: %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("hash must be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("distinct tokens must hash differently")
	}
}

func findResetToken(t *testing.T, store *memory.Store, userID string) string {
	t.Helper()
	token, err := store.ResetTokenForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("find reset token: %v", err)
	}
	return token.Token
}
