package user

import "errors"

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailExists signals a duplicate email or Google subject.
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidAccount is returned when a user carries no account variant.
	ErrInvalidAccount = errors.New("user has no account")
)
