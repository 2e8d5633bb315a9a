package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/internal/models"

	"github.com/gin-gonic/gin"
)

// RateLimiter records a hit on key and reports whether it is within limit.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitMiddleware struct {
	limiter RateLimiter
}

func NewRateLimitMiddleware(limiter RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
	}
}

// RateLimit limits authenticated callers per user and endpoint. It must run
// after RequireAuth.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse("unauthorized", nil))
			return
		}

		key := fmt.Sprintf("rate_limit:%d:%s", identity.UserID, c.FullPath())
		rm.check(c, key, requests, window)
	}
}

// RateLimitIP limits public routes per client IP and endpoint.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.FullPath())
		rm.check(c, key, requests, window)
	}
}

func (rm *RateLimitMiddleware) check(c *gin.Context, key string, requests int, window time.Duration) {
	allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key, requests, window)
	if err != nil {
		slog.Error("Rate limit check failed", "key", key, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewErrorResponse("rate limit check failed", nil))
		return
	}

	if !allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "rate limit exceeded",
			Details: fmt.Sprintf("too many requests, limit: %d per %v", requests, window),
		})
		return
	}

	c.Next()
}
