package middleware

import (
	"account-service/internal/logger"
	"account-service/pkg/utils"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisLimitTimeout = 200 * time.Millisecond

// fixedWindow increments the counter and starts its window on first hit.
var fixedWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisRateLimitMiddleware limits attempts per client IP and route across all
// replicas. If Redis cannot be reached the request is let through.
func RedisRateLimitMiddleware(client redis.Scripter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s:%s", scope, c.FullPath(), c.ClientIP())

		ctx, cancel := context.WithTimeout(c.Request.Context(), redisLimitTimeout)
		defer cancel()

		res, err := fixedWindow.Run(ctx, client, []string{key}, window.Milliseconds()).Int64Slice()
		if err != nil || len(res) != 2 {
			logger.Warn("Rate limit store unavailable, allowing request",
				zap.String("request_id", GetRequestID(c)),
				zap.String("key_scope", scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		count, ttl := res[0], res[1]
		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			retryAfter := (time.Duration(ttl) * time.Millisecond).Round(time.Second)
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))

			logger.Warn("Rate limit exceeded",
				zap.String("request_id", GetRequestID(c)),
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.FullPath()),
				logger.Event("rate_limited"),
			)
			utils.ErrorResponse(c, http.StatusTooManyRequests, "too many attempts, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
