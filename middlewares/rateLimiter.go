package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiter is a fixed-window per-IP limiter backed by Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := rateLimitKeyPrefix + c.ClientIP()

		// INCR then set the expiry on the first hit of the window.
		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble must not take the API down.
			_ = c.Error(fmt.Errorf("rate limiter: %w", err))
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
				_ = c.Error(fmt.Errorf("rate limiter expire: %w", err))
			}
		}

		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}

		c.Next()
	}
}
