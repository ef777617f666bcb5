package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per client key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window limiter held in process. Expired windows
// are dropped on every check.
type MemoryLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string]*window
	nowFunc func() time.Time
}

// NewMemoryLimiter allows max requests per key in each window.
func NewMemoryLimiter(max int, windowLen time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  windowLen,
		entries: make(map[string]*window),
		nowFunc: time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, w := range l.entries {
		if !now.Before(w.resetAt) {
			delete(l.entries, k)
		}
	}

	w, ok := l.entries[key]
	if !ok {
		w = &window{resetAt: now.Add(l.window)}
		l.entries[key] = w
	}

	if w.count >= l.max {
		return Decision{Limit: l.max, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - w.count,
		ResetAt:   w.resetAt,
	}, nil
}

// Len reports how many client windows are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
