package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/requestdata"
)

// RateLimiter is a fixed-window per-user limiter backed by Redis INCR.
// Redis failures fail open: quota enforcement is the real gate, this only
// smooths bursts.
type RateLimiter struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRateLimiter(baseLog *logger.Logger, rdb *goredis.Client) *RateLimiter {
	return &RateLimiter{
		log: baseLog.With("middleware", "RateLimiter"),
		rdb: rdb,
	}
}

func (rl *RateLimiter) Limit(name string, max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == "" {
			c.Next()
			return
		}
		key := fmt.Sprintf("ratelimit:%s:%s:%d", name, rd.UserID, time.Now().Unix()/int64(window.Seconds()))

		count, err := rl.rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			rl.log.Warn("Rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.rdb.Expire(c.Request.Context(), key, window).Err(); err != nil {
				rl.log.Warn("Rate limit expire failed", "error", err)
			}
		}
		if count > int64(max) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"message": "Too many requests, slow down",
					"code":    "RATE_LIMITED",
				},
			})
			return
		}
		c.Next()
	}
}
