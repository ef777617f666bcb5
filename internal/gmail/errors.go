package gmail

import (
	"errors"
	"fmt"
)

// ErrGmailAPI matches every *APIError.
var ErrGmailAPI = errors.New("gmail api error")

// APIError wraps a failed Gmail API call. Status is the upstream HTTP status
// when the API returned one, otherwise zero.
type APIError struct {
	Op     string
	Status int
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrGmailAPI.
func (e *APIError) Is(target error) bool {
	return target == ErrGmailAPI
}
