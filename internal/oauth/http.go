package oauth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailgate/gmailapi/internal/auth"
	"github.com/mailgate/gmailapi/internal/config"
	"github.com/mailgate/gmailapi/internal/logger"
	"go.uber.org/zap"
)

const (
	stateCookie    = "oauth_state"
	redirectCookie = "oauth_redirect"
	stateMaxAge    = 10 * time.Minute
	cookiePath     = "/api/auth/google"
)

// Error indicators appended to the frontend login URL.
const (
	errAuthFailed     = "auth_failed"
	errCallbackFailed = "callback_failed"
	errAccountExists  = "account_exists"
)

// RegisterRoutes mounts the Google handshake under /auth/google.
func RegisterRoutes(router *gin.RouterGroup, flow *Flow, authCfg config.AuthConfig, frontendURL string) {
	handler := &httpHandler{flow: flow, authCfg: authCfg, frontendURL: strings.TrimRight(frontendURL, "/")}
	group := router.Group("/auth/google")
	{
		group.GET("", handler.begin)
		group.GET("/callback", handler.callback)
	}
}

type httpHandler struct {
	flow        *Flow
	authCfg     config.AuthConfig
	frontendURL string
}

func (h *httpHandler) begin(c *gin.Context) {
	state := uuid.NewString()
	h.setCookie(c, stateCookie, state, int(stateMaxAge.Seconds()))
	if redirect := c.Query("redirect"); isRelativePath(redirect) {
		h.setCookie(c, redirectCookie, redirect, int(stateMaxAge.Seconds()))
	}
	c.Redirect(http.StatusFound, h.flow.AuthCodeURL(state))
}

func (h *httpHandler) callback(c *gin.Context) {
	expected, _ := c.Cookie(stateCookie)
	redirect, _ := c.Cookie(redirectCookie)
	h.setCookie(c, stateCookie, "", -1)
	h.setCookie(c, redirectCookie, "", -1)

	log := logger.FromContext(c)

	if providerErr := c.Query("error"); providerErr != "" {
		log.Warn("google consent denied", zap.String("error", providerErr))
		h.fail(c, errAuthFailed)
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if expected == "" || state != expected || code == "" {
		log.Warn("oauth callback rejected", zap.Bool("state_match", expected != "" && state == expected), zap.Bool("has_code", code != ""))
		h.fail(c, errAuthFailed)
		return
	}

	result, err := h.flow.Complete(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, ErrAccountConflict) {
			log.Info("google sign-in for password account", zap.Error(err))
			h.fail(c, errAccountExists)
			return
		}
		log.Error("oauth callback", zap.Error(err))
		h.fail(c, errCallbackFailed)
		return
	}

	auth.SetSessionCookie(c, h.authCfg, result.AccessToken)

	q := url.Values{}
	q.Set("token", result.AccessToken)
	if isRelativePath(redirect) {
		q.Set("redirect", redirect)
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/auth/google/callback?"+q.Encode())
}

func (h *httpHandler) fail(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, h.frontendURL+"/login?error="+reason)
}

func (h *httpHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, cookiePath, "", h.authCfg.SecureCookies, true)
}

// isRelativePath accepts only same-origin paths so the redirect cannot be
// used to bounce users to another host.
func isRelativePath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, `\`)
}
