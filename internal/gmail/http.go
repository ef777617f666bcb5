package gmail

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/auth"
	"github.com/mailgate/gmailapi/internal/httpx"
	"github.com/mailgate/gmailapi/internal/logger"
	"github.com/mailgate/gmailapi/internal/refresh"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the mailbox endpoints under /gmail. Every route but
// health runs the guards in order, typically the rate limiter then the
// authentication gate.
func RegisterRoutes(router *gin.RouterGroup, service *Service, guards ...gin.HandlerFunc) {
	handler := &httpHandler{service: service}
	group := router.Group("/gmail")
	{
		group.GET("/health", handler.health)

		protected := group.Group("", guards...)
		protected.GET("/labels", handler.listLabels)
		protected.GET("/labels/:labelId", handler.getLabel)
		protected.GET("/emails", handler.listEmails)
		protected.GET("/emails/:emailId", handler.getEmail)
	}
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) listLabels(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
		return
	}

	labels, err := h.service.ListLabels(c.Request.Context(), u)
	if err != nil {
		respondError(c, err, false)
		return
	}
	httpx.OK(c, "Labels retrieved successfully", gin.H{"data": labels, "count": len(labels)})
}

func (h *httpHandler) getLabel(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
		return
	}

	label, err := h.service.GetLabel(c.Request.Context(), u, c.Param("labelId"))
	if err != nil {
		respondError(c, err, true)
		return
	}
	httpx.OK(c, "Label retrieved successfully", gin.H{"data": label})
}

func (h *httpHandler) listEmails(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
		return
	}

	maxResults := int64(DefaultMaxResults)
	if raw := c.Query("maxResults"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Fail(c, httpx.ValidationError, "maxResults must be an integer")
			return
		}
		maxResults = parsed
	}

	messages, err := h.service.ListMessages(c.Request.Context(), u, c.Query("query"), maxResults)
	if err != nil {
		respondError(c, err, false)
		return
	}
	httpx.OK(c, "Emails retrieved successfully", gin.H{"data": messages, "count": len(messages)})
}

func (h *httpHandler) getEmail(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
		return
	}

	msg, err := h.service.GetMessage(c.Request.Context(), u, c.Param("emailId"))
	if err != nil {
		respondError(c, err, true)
		return
	}
	httpx.OK(c, "Email retrieved successfully", gin.H{"data": msg})
}

func (h *httpHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Gmail service is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError maps facade errors to envelopes. Upstream 404s become
// NotFoundError only when single is set.
func respondError(c *gin.Context, err error, single bool) {
	var apiErr *APIError
	switch {
	case errors.Is(err, refresh.ErrNoGoogleAccount):
		httpx.FailCode(c, httpx.AuthorizationError, httpx.CodeNoGoogleAccount, "No Google account linked")
	case errors.Is(err, refresh.ErrTokenRefreshFailed):
		httpx.Fail(c, httpx.UpstreamError, err.Error())
	case single && errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		httpx.Fail(c, httpx.NotFoundError, "Resource not found")
	case errors.As(err, &apiErr):
		httpx.Fail(c, httpx.UpstreamError, apiErr.Error())
	default:
		logger.FromContext(c).Error("gmail request", zap.Error(err))
		httpx.Fail(c, httpx.InternalError, "Internal server error")
	}
}
