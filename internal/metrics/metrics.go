package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	tokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_token_refresh_total",
		Help: "Google OAuth token refresh attempts by result.",
	}, []string{"result"})

	gmailCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gmail_api_calls_total",
		Help: "Gmail API calls by operation and result.",
	}, []string{"op", "result"})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Requests rejected by a limiter.",
	}, []string{"limiter"})
)

// InitMetrics registers collectors with the default registry. Repeat calls
// are no-ops.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, tokenRefreshes, gmailCalls, rateLimited)
	})
}

// Middleware records request counts and latency keyed by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// TokenRefresh counts one refresh attempt.
func TokenRefresh(ok bool) {
	tokenRefreshes.WithLabelValues(result(ok)).Inc()
}

// GmailCall counts one Gmail API call for op.
func GmailCall(op string, ok bool) {
	gmailCalls.WithLabelValues(op, result(ok)).Inc()
}

// RateLimited counts one rejection by the named limiter.
func RateLimited(limiter string) {
	rateLimited.WithLabelValues(limiter).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
