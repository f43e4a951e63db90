package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
)

const limiterIdleExpiry = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller. Callers are identified by
// user id when authenticated and by client IP otherwise.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewRateLimiter(perSecond, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > limiterIdleExpiry {
			delete(rl.visitors, k)
		}
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ContextUserID)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.allow(key) {
			abort(c, http.StatusTooManyRequests, apperrors.KindRateLimited, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
