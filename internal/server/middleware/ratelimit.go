package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepAbove = 1024
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	callers map[string]*limiterEntry
}

// NewRateLimiter allows rps requests per second with the given burst per
// caller. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		now:     time.Now,
		callers: make(map[string]*limiterEntry),
	}
}

func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.callers) > limiterSweepAbove {
		for k, e := range l.callers {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.callers, k)
			}
		}
	}
	e, ok := l.callers[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.callers[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// RateLimit rejects callers that exceed their budget. It must run after
// AuthMiddleware so that callers are keyed by user.
func RateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := c.(*AppContext)
		key := "ip:" + c.RealIP()
		if cc.User != nil {
			key = "user:" + strconv.FormatInt(cc.User.UserID, 10)
		}
		if !cc.App.Limiter.Allow(key) {
			return c.JSON(http.StatusTooManyRequests, map[string]any{"error": "Too many requests", "retryable": true})
		}
		return next(c)
	}
}
