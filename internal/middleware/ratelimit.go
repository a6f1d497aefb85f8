package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"golang.org/x/time/rate"
)

// ClientLimiter hands out one token bucket per client id.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewClientLimiter(qps float64, burst int) *ClientLimiter {
	limit := rate.Limit(qps)
	if qps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &ClientLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ClientLimiter) Get(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[clientID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[clientID] = limiter
	}
	return limiter
}

// RateLimitMiddleware must run after ClientMiddleware.
func RateLimitMiddleware(l *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Get(ClientID(c)).Allow() {
			c.Header("Retry-After", "1")
			c.Error(apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
