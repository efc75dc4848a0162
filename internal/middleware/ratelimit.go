package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per authenticated user.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters sync.Map
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limit: rate.Limit(perSecond), burst: burst}
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	if l, ok := r.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	l, _ := r.limiters.LoadOrStore(key, rate.NewLimiter(r.limit, r.burst))
	return l.(*rate.Limiter)
}

// Middleware must run after AuthMiddleware. Requests without a user id pass
// through unlimited and leave no bucket behind.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			c.Next()
			return
		}
		if !r.limiter(userID).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			return
		}
		c.Next()
	}
}
