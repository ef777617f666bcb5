package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/httpx"
	"github.com/mailgate/gmailapi/internal/logger"
	"github.com/mailgate/gmailapi/internal/refresh"
	"go.uber.org/zap"
)

// RegisterRoutes mounts authentication endpoints under /auth. throttle, when
// non-nil, guards the credential endpoints.
func RegisterRoutes(router *gin.RouterGroup, service *Service, throttle gin.HandlerFunc) {
	handler := &httpHandler{service: service}
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/health", handler.health)

		credentials := authGroup.Group("")
		if throttle != nil {
			credentials.Use(throttle)
		}
		credentials.POST("/register", handler.register)
		credentials.POST("/login", handler.login)

		authGroup.POST("/logout", handler.logout)
		authGroup.GET("/verify", OptionalAuth(service), handler.verify)

		protected := authGroup.Group("", RequireAuth(service))
		protected.GET("/me", handler.me)
		protected.DELETE("/me", handler.deactivate)
		protected.POST("/refresh", handler.refresh)
	}
}

type httpHandler struct {
	service *Service
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"omitempty,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *httpHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ValidationError, "A valid email and password are required")
		return
	}

	result, err := h.service.Register(c.Request.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailAlreadyExists):
			httpx.Fail(c, httpx.ConflictError, "User already exists with this email")
		case errors.Is(err, ErrInvalidInput):
			httpx.Fail(c, httpx.ValidationError, "Password does not meet length requirements")
		default:
			logger.FromContext(c).Error("register user", zap.Error(err))
			httpx.Fail(c, httpx.InternalError, "Failed to register user")
		}
		return
	}

	h.respondWithSession(c, "User registered successfully", result)
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ValidationError, "Email and password are required")
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			httpx.Fail(c, httpx.AuthenticationError, "Invalid email or password")
		default:
			logger.FromContext(c).Error("login user", zap.Error(err))
			httpx.Fail(c, httpx.InternalError, "Failed to authenticate")
		}
		return
	}

	h.respondWithSession(c, "Login successful", result)
}

func (h *httpHandler) me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
		return
	}
	httpx.OK(c, "", gin.H{"user": marshalUser(u)})
}

func (h *httpHandler) deactivate(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), u); err != nil {
		if errors.Is(err, ErrInvalidUser) {
			httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeInvalidUser, "Invalid user")
			return
		}
		logger.FromContext(c).Error("deactivate user", zap.Error(err))
		httpx.Fail(c, httpx.InternalError, "Failed to deactivate account")
		return
	}

	ClearSessionCookie(c, h.service.CookieConfig())
	httpx.OK(c, "Account deactivated", nil)
}

func (h *httpHandler) logout(c *gin.Context) {
	ClearSessionCookie(c, h.service.CookieConfig())
	httpx.OK(c, "Logged out successfully", nil)
}

func (h *httpHandler) refresh(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		httpx.FailCode(c, httpx.AuthenticationError, httpx.CodeMissingToken, "Access token required")
		return
	}

	result, err := h.service.RefreshSession(c.Request.Context(), u)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrNoGoogleAccount):
			httpx.FailCode(c, httpx.AuthorizationError, httpx.CodeNoGoogleAccount, "No Google account linked")
		case errors.Is(err, refresh.ErrTokenRefreshFailed):
			httpx.Fail(c, httpx.UpstreamError, err.Error())
		default:
			logger.FromContext(c).Error("refresh session", zap.Error(err))
			httpx.Fail(c, httpx.InternalError, "Failed to refresh token")
		}
		return
	}

	h.respondWithSession(c, "Token refreshed successfully", result)
}

func (h *httpHandler) verify(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		httpx.OK(c, "", gin.H{"authenticated": false})
		return
	}
	httpx.OK(c, "", gin.H{"authenticated": true, "user": marshalUser(u)})
}

func (h *httpHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Auth service is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *httpHandler) respondWithSession(c *gin.Context, message string, result AuthResult) {
	SetSessionCookie(c, h.service.CookieConfig(), result.AccessToken)
	httpx.OK(c, message, gin.H{
		"accessToken": result.AccessToken,
		"expiresAt":   result.ExpiresAt.UTC().Format(time.RFC3339),
		"user":        marshalUser(result.User),
	})
}
