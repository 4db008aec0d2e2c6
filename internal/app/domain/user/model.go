// Package user holds the account domain model and its error types.
package user

import (
	"strings"
	"time"
)

// Activation status of an account. Invited accounts exist with a placeholder
// username until the user completes registration.
const (
	StatusInvited  = "invited"
	StatusAccepted = "accepted"
)

// AnonymousUsername is the placeholder account representing unauthenticated
// callers. It never appears in listings.
const AnonymousUsername = "AnonymousUser"

// ResetTokenTTL is how long a password reset link stays valid.
const ResetTokenTTL = 48 * time.Hour

// User is an account record.
type User struct {
	ID             string `db:"id" json:"id"`
	ActivationUUID string `db:"activation_uuid" json:"activation_uuid"`
	Username       string `db:"username" json:"username"`
	FirstName      string `db:"first_name" json:"first_name"`
	LastName       string `db:"last_name" json:"last_name"`
	FullName       string `db:"full_name" json:"full_name"`
	Email          string `db:"email" json:"email"`

	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	DateJoined  *time.Time `db:"date_joined" json:"date_joined,omitempty"`

	PasswordHash string `db:"password_hash" json:"-"`

	IsStaff     bool `db:"is_staff" json:"is_staff"`
	IsActive    bool `db:"is_active" json:"is_active"`
	IsSuperuser bool `db:"is_superuser" json:"is_superuser"`

	ActivationStatus string `db:"activation_status" json:"activation_status"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ComputeFullName derives FullName from the name parts. Call it whenever a
// name part changes; the stored full name is what token claims and listings
// show.
func (u *User) ComputeFullName() {
	u.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PasswordResetToken is a single-use password reset credential.
type PasswordResetToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"token"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the token's lifetime has passed at the given time.
func (t PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.CreatedAt.Add(ResetTokenTTL))
}

// Session backs an issued access token. Tokens are stored hashed.
type Session struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	TokenHash    string    `db:"token_hash" json:"-"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastActiveAt time.Time `db:"last_active_at" json:"last_active_at"`
}
