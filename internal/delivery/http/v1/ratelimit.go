package v1

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimiter tracks a token bucket per user. Buckets are never
// evicted; the key space is bounded by the registered user count.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(max)),
		burst:    max,
	}
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// HandleAIRateLimit throttles the generative endpoints per user.
func (h *handlerImpl) HandleAIRateLimit(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	if !h.aiLimiter.allow(userID) {
		h.logger.Warn().
			Str("user_id", userID).
			Msg("ai rate limit exceeded")
		abort(c, newAPIError(http.StatusTooManyRequests, "too many requests, try again later"))
		return
	}
	c.Next()
}
