package users

import "errors"

var (
	// ErrAlreadyActivated rejects activation links for accounts that finished
	// registration.
	ErrAlreadyActivated = errors.New("invalid link")

	// ErrInvalidCredentials is returned for any failed authentication, without
	// distinguishing unknown users from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
