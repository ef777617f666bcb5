package refresh

import "errors"

var (
	// ErrTokenRefreshFailed wraps any failure of the provider refresh grant.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
	// ErrNoGoogleAccount is returned for users without Google credentials.
	ErrNoGoogleAccount = errors.New("user has no linked google account")
)
