package user

import (
	"errors"
	"fmt"
)

// Sentinel errors for the account domain.
var (
	// ErrNotFound is the category all NotFoundError values unwrap to.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is the category all validation errors unwrap to.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmailTaken rejects a duplicate email address.
	ErrEmailTaken = errors.New("email already exist")
	// ErrUsernameTaken rejects a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
)

// NotFoundError reports a missing record of a given kind.
type NotFoundError struct {
	Resource string
	Key      string
}

// NewNotFoundError builds a NotFoundError for resource identified by key.
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// RequiredError builds the validation error for a missing required field.
func RequiredError(field string) error {
	return &ValidationError{Field: field, Reason: "this field is required"}
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidationError reports whether err is a rejected-input error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken)
}
