// Package httpx holds the JSON envelopes and error kinds shared by every
// HTTP handler.
package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind names a class of failure in the response envelope.
type Kind string

const (
	ValidationError     Kind = "ValidationError"
	ConflictError       Kind = "ConflictError"
	AuthenticationError Kind = "AuthenticationError"
	AuthorizationError  Kind = "AuthorizationError"
	NotFoundError       Kind = "NotFoundError"
	RateLimitExceeded   Kind = "RateLimitExceeded"
	UpstreamError       Kind = "UpstreamError"
	InternalError       Kind = "InternalError"
)

// Machine-readable codes attached to authentication failures.
const (
	CodeMissingToken    = "MISSING_TOKEN"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeInvalidUser     = "INVALID_USER"
	CodeNoGoogleAccount = "NO_GOOGLE_ACCOUNT"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case ValidationError:
		return http.StatusBadRequest
	case ConflictError:
		return http.StatusConflict
	case AuthenticationError:
		return http.StatusUnauthorized
	case AuthorizationError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case RateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   Kind   `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Fail aborts the request with the envelope for kind.
func Fail(c *gin.Context, kind Kind, message string) {
	FailCode(c, kind, "", message)
}

// FailCode is Fail with a machine-readable code.
func FailCode(c *gin.Context, kind Kind, code, message string) {
	c.AbortWithStatusJSON(kind.Status(), ErrorResponse{
		Error:   kind,
		Message: message,
		Code:    code,
	})
}

// OK writes a success envelope merged with fields.
func OK(c *gin.Context, message string, fields gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
