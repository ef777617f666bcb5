package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/config"
)

// SessionCookie is the http-only cookie holding the bearer token for
// browser sessions.
const SessionCookie = "accessToken"

// SetSessionCookie stores token in the session cookie.
func SetSessionCookie(c *gin.Context, cfg config.AuthConfig, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(cfg.CookieMaxAge.Seconds()), "/", "", cfg.SecureCookies, true)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, cfg config.AuthConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", cfg.SecureCookies, true)
}
