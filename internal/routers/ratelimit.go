package routers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/util/cache"
)

// idleLimiterTTL is how long the limiter of a quiet client is remembered.
const idleLimiterTTL = 10 * time.Minute

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.RWMutexTTLCache[string, *rate.Limiter]
}

func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: cache.NewRWMutexTTLCache[string, *rate.Limiter](idleLimiterTTL),
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	limiter := l.limiters.GetOrPut(ip, func() *rate.Limiter {
		return rate.NewLimiter(l.limit, l.burst)
	})
	return limiter.Allow()
}

// Purge forgets the clients that have been idle for a while.
func (l *IPRateLimiter) Purge() int {
	return l.limiters.Purge()
}

// Middleware rejects the request with a 429 once the client IP has used up its budget.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit == rate.Inf {
			c.Next()
			return
		}
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.NewTooManyRequestsError())
			return
		}
		c.Next()
	}
}
