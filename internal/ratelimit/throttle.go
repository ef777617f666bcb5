package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailgate/gmailapi/internal/httpx"
	"github.com/mailgate/gmailapi/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	throttleIdleTTL       = 30 * time.Minute
	throttleSweepInterval = 5 * time.Minute
)

type throttleEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// Throttle is a per-IP token bucket for credential endpoints.
type Throttle struct {
	mu        sync.Mutex
	every     time.Duration
	burst     int
	entries   map[string]*throttleEntry
	lastSweep time.Time
	nowFunc   func() time.Time
}

// NewThrottle refills one token every interval up to burst.
func NewThrottle(every time.Duration, burst int) *Throttle {
	return &Throttle{
		every:   every,
		burst:   burst,
		entries: make(map[string]*throttleEntry),
		nowFunc: time.Now,
	}
}

// Allow takes a token for ip.
func (t *Throttle) Allow(ip string) bool {
	now := t.nowFunc()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= throttleSweepInterval {
		for k, e := range t.entries {
			if now.Sub(e.lastUse) > throttleIdleTTL {
				delete(t.entries, k)
			}
		}
		t.lastSweep = now
	}

	e, ok := t.entries[ip]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(rate.Every(t.every), t.burst)}
		t.entries[ip] = e
	}
	e.lastUse = now
	return e.limiter.AllowN(now, 1)
}

// Middleware rejects requests from IPs that exhausted their bucket.
func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Allow(c.ClientIP()) {
			metrics.RateLimited("login")
			c.Header("Retry-After", "1")
			httpx.Fail(c, httpx.RateLimitExceeded, "Too many attempts, please slow down")
			return
		}
		c.Next()
	}
}
