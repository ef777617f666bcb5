package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/codec"
	"github.com/mailgate/gmailapi/internal/httpx"
	"github.com/mailgate/gmailapi/internal/logger"
	"github.com/mailgate/gmailapi/internal/user"
	"go.uber.org/zap"
)

const userContextKey = "mailgateUser"

// RequireAuth validates the bearer token and attaches the active user to
// the request. Every failure aborts with 401, except store errors which
// abort with 500.
func RequireAuth(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := service.Authenticate(c.Request.Context(), extractBearerToken(c.GetHeader("Authorization")))
		if err != nil {
			switch {
			case errors.Is(err, ErrMissingToken):
				httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
			case errors.Is(err, codec.ErrInvalidToken):
				httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeInvalidToken, "Invalid or expired token")
			case errors.Is(err, ErrInvalidUser):
				httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeInvalidUser, "Invalid user")
			default:
				logger.FromContext(c).Error("authenticate request", zap.Error(err))
				httpx.Fail(c, httpx.InternalError, "Authentication error")
			}
			return
		}

		SetCurrentUser(c, u)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is presented and
// continues anonymously otherwise. The session cookie is accepted when no
// Authorization header is sent.
func OptionalAuth(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(SessionCookie)
		}
		if u, err := service.Authenticate(c.Request.Context(), token); err == nil {
			SetCurrentUser(c, u)
		}
		c.Next()
	}
}

// CurrentUser extracts the authenticated user from the context.
func CurrentUser(c *gin.Context) (user.User, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return user.User{}, false
	}
	u, ok := value.(user.User)
	return u, ok
}

// SetCurrentUser attaches u to the request.
func SetCurrentUser(c *gin.Context, u user.User) {
	c.Set(userContextKey, u)
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
