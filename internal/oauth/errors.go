package oauth

import "errors"

var (
	// ErrExchangeFailed wraps failures trading the authorization code or
	// reading the Google profile.
	ErrExchangeFailed = errors.New("oauth code exchange failed")
	// ErrAccountConflict means the Google email already belongs to a
	// password account.
	ErrAccountConflict = errors.New("email already registered with a password")
	// ErrMissingSubject is returned when the profile carries no subject id.
	ErrMissingSubject = errors.New("google profile has no subject")
)
