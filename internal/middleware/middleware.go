package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "requestID"
	clientIPKey  = "clientIP"
)

// RequestID tags every request with an id, reusing the caller's when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// ClientIP records the caller address. Requests coming through Cloudflare
// carry the real address in CF-Connecting-IP.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.GetHeader("CF-Connecting-IP")
		if ip == "" {
			ip = c.ClientIP()
		}
		c.Set(clientIPKey, ip)
		c.Next()
	}
}

// GetClientIP returns the address recorded by ClientIP.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(clientIPKey); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == "OPTIONS" {
			c.Header("Access-Control-Max-Age", "86400")
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// Logger writes one access line per request. Configuration tokens in the
// path are masked since they hold debrid API keys.
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := security.MaskConfigToken(c.Request.URL.Path)

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(latency.Seconds())

		requestID := c.GetString(requestIDKey)
		switch {
		case statusCode >= 500:
			log.Errorf("%s %s %s %d %v %s", requestID, GetClientIP(c), c.Request.Method, statusCode, latency, path)
		case statusCode >= 400:
			log.Warnf("%s %s %s %d %v %s", requestID, GetClientIP(c), c.Request.Method, statusCode, latency, path)
		default:
			log.Infof("%s %s %s %d %v %s", requestID, GetClientIP(c), c.Request.Method, statusCode, latency, path)
		}
	}
}
