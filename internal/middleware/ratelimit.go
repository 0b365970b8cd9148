package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
)

// RejectFunc answers a request refused by the rate limiter.
type RejectFunc func(c *gin.Context, retryAfter time.Duration)

// RateLimit limits requests per client address. ClientIP must run first for
// Cloudflare addresses to be honoured.
func RateLimit(limiter *ratelimiter.KeyedLimiter, reject RejectFunc) gin.HandlerFunc {
	if reject == nil {
		reject = TooManyRequests
	}
	return func(c *gin.Context) {
		ok, retryAfter := limiter.Allow(GetClientIP(c))
		if ok {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		reject(c, retryAfter)
		c.Abort()
	}
}

func TooManyRequests(c *gin.Context, _ time.Duration) {
	c.String(http.StatusTooManyRequests, "Too many requests, please try again later.")
}

// RetryMinutes rounds a retry delay up to whole minutes, at least one.
func RetryMinutes(d time.Duration) int {
	return max(1, int(math.Ceil(d.Minutes())))
}
