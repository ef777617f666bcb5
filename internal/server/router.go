package server

import (
	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/auth"
	"github.com/mailgate/gmailapi/internal/config"
	"github.com/mailgate/gmailapi/internal/gmail"
	"github.com/mailgate/gmailapi/internal/httpx"
	"github.com/mailgate/gmailapi/internal/logger"
	"github.com/mailgate/gmailapi/internal/metrics"
	"github.com/mailgate/gmailapi/internal/oauth"
	"github.com/mailgate/gmailapi/internal/ratelimit"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config          config.Config
	Logger          *zap.Logger
	ReadinessChecks []ReadinessCheck
	AuthService     *auth.Service
	OAuthFlow       *oauth.Flow
	GmailService    *gmail.Service
	Limiter         ratelimit.Limiter
	Throttle        *ratelimit.Throttle
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		deps.Logger.Warn("invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())
	router.Use(CORS(deps.Config.Frontend.AllowedOrigins))

	router.NoRoute(func(c *gin.Context) {
		httpx.Fail(c, httpx.NotFoundError, "Route not found")
	})

	registerHealthRoutes(router, deps.ReadinessChecks)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/api")
	if deps.AuthService != nil {
		var throttle gin.HandlerFunc
		if deps.Throttle != nil {
			throttle = deps.Throttle.Middleware()
		}
		auth.RegisterRoutes(api, deps.AuthService, throttle)

		if deps.OAuthFlow != nil {
			oauth.RegisterRoutes(api, deps.OAuthFlow, deps.AuthService.CookieConfig(), deps.Config.Frontend.URL)
		}

		if deps.GmailService != nil {
			var guards []gin.HandlerFunc
			if deps.Limiter != nil {
				guards = append(guards, ratelimit.Middleware(deps.Limiter))
			}
			guards = append(guards, auth.RequireAuth(deps.AuthService))
			gmail.RegisterRoutes(api, deps.GmailService, guards...)
		}
	}

	return router
}
