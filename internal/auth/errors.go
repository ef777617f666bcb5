package auth

import "errors"

var (
	// ErrEmailAlreadyExists indicates the email is already registered.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput covers registration data the service refuses to store.
	ErrInvalidInput = errors.New("invalid registration input")
	// ErrMissingToken means no bearer token was presented.
	ErrMissingToken = errors.New("access token required")
	// ErrInvalidUser is returned when a valid token names an unknown or inactive user.
	ErrInvalidUser = errors.New("invalid user")
)
