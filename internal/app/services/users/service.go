// Package users implements the account lifecycle: invitation, activation,
// profile updates, listing and deactivation.
package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopfront/accounts/internal/app/domain/user"
	"github.com/shopfront/accounts/internal/app/storage"
	"github.com/shopfront/accounts/internal/notify"
	"github.com/shopfront/accounts/pkg/logger"
)

// Service manages account records.
type Service struct {
	store    storage.UserStore
	notifier notify.Notifier
	log      *logger.Logger
}

// New constructs a user service. A nil notifier suppresses mail.
func New(store storage.UserStore, notifier notify.Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}
	return &Service{store: store, notifier: notifier, log: log}
}

// Invite creates a basic account from an email address and sends the
// activation mail. The username is a generated placeholder until the user
// completes registration.
func (s *Service) Invite(ctx context.Context, email, firstName, lastName string) (user.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return user.User{}, user.RequiredError("email")
	}
	if !strings.Contains(email, "@") {
		return user.User{}, &user.ValidationError{Field: "email", Reason: "enter a valid email address"}
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return user.User{}, user.ErrEmailTaken
	} else if !user.IsNotFound(err) {
		return user.User{}, err
	}

	suffix, err := randomSuffix(4)
	if err != nil {
		return user.User{}, err
	}
	u := user.User{
		ActivationUUID:   uuid.NewString(),
		Username:         strings.ToLower(firstName+lastName) + "_" + suffix,
		FirstName:        firstName,
		LastName:         lastName,
		Email:            email,
		ActivationStatus: user.StatusInvited,
	}
	u.ComputeFullName()

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	if err := s.notifier.ActivateUser(ctx, created.Email, created.ActivationUUID); err != nil {
		s.log.WithError(err).WithField("user_id", created.ID).Warn("activation mail failed")
	}

	s.log.WithField("user_id", created.ID).WithField("email", created.Email).Info("user invited")
	return created, nil
}

// LookupActivation fetches the invited account behind an activation token.
// Accounts that already completed registration reject the link.
func (s *Service) LookupActivation(ctx context.Context, token string) (user.User, error) {
	if strings.TrimSpace(token) == "" {
		return user.User{}, user.RequiredError("token")
	}
	u, err := s.store.GetUserByActivationUUID(ctx, token)
	if err != nil {
		return user.User{}, err
	}
	if u.ActivationStatus == user.StatusAccepted {
		return user.User{}, ErrAlreadyActivated
	}
	return u, nil
}

// ActivateParams carries the fields a user supplies to complete registration.
// All of them are required.
type ActivateParams struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
}

// Activate completes registration for an invited account.
func (s *Service) Activate(ctx context.Context, token string, params ActivateParams) (user.User, error) {
	u, err := s.LookupActivation(ctx, token)
	if err != nil {
		return user.User{}, err
	}

	for field, value := range map[string]string{
		"username":   params.Username,
		"email":      params.Email,
		"password":   params.Password,
		"first_name": params.FirstName,
		"last_name":  params.LastName,
	} {
		if strings.TrimSpace(value) == "" {
			return user.User{}, user.RequiredError(field)
		}
	}
	if err := ValidatePassword(params.Password); err != nil {
		return user.User{}, err
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return user.User{}, err
	}

	now := time.Now().UTC()
	u.Username = params.Username
	u.Email = strings.TrimSpace(strings.ToLower(params.Email))
	u.FirstName = params.FirstName
	u.LastName = params.LastName
	u.DateOfBirth = params.DateOfBirth
	u.PasswordHash = hash
	u.IsActive = true
	u.ActivationStatus = user.StatusAccepted
	u.DateJoined = &now
	u.ComputeFullName()

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", updated.ID).Info("user activated")
	return updated, nil
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// GetByUsername fetches an account by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

// GetByEmail fetches an account by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.store.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

// List returns all accounts, newest first, excluding the anonymous user.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateParams carries partial profile updates; nil fields are untouched.
type UpdateParams struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
}

// Update applies a partial profile update and recomputes the full name.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if params.Username != nil {
		u.Username = *params.Username
	}
	if params.Email != nil {
		u.Email = strings.TrimSpace(strings.ToLower(*params.Email))
	}
	if params.FirstName != nil {
		u.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		u.LastName = *params.LastName
	}
	u.ComputeFullName()

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("user updated")
	return updated, nil
}

// Deactivate soft-deletes an account.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	u.IsActive = false
	if _, err := s.store.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deactivated")
	return nil
}

// SetPassword hashes and stores a new password for the account.
func (s *Service) SetPassword(ctx context.Context, id, password string) (user.User, error) {
	if err := ValidatePassword(password); err != nil {
		return user.User{}, err
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return user.User{}, err
	}
	u.PasswordHash = hash
	return s.store.UpdateUser(ctx, u)
}

// Authenticate checks username/password and returns the account. Inactive
// accounts cannot authenticate.
func (s *Service) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return user.User{}, ErrInvalidCredentials
	}
	if !CheckPassword(u.PasswordHash, password) {
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// CreateSuperuser creates an active staff superuser account.
func (s *Service) CreateSuperuser(ctx context.Context, email, username, password string) (user.User, error) {
	if username == "" || email == "" {
		return user.User{}, &user.ValidationError{Field: "username", Reason: "users must have username and email"}
	}
	if err := ValidatePassword(password); err != nil {
		return user.User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return user.User{}, err
	}

	now := time.Now().UTC()
	u := user.User{
		ActivationUUID:   uuid.NewString(),
		Username:         username,
		Email:            strings.TrimSpace(strings.ToLower(email)),
		PasswordHash:     hash,
		IsStaff:          true,
		IsActive:         true,
		IsSuperuser:      true,
		ActivationStatus: user.StatusAccepted,
		DateJoined:       &now,
	}
	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", created.ID).Info("superuser created")
	return created, nil
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the password policy: at least 8 characters and
// not entirely numeric.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return &user.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	numeric := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		return &user.ValidationError{Field: "password", Reason: "must not be entirely numeric"}
	}
	return nil
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate username suffix: %w", err)
	}
	return hex.EncodeToString(buf)[:n], nil
}
