package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Repeat("pong ", 100))
	})
	r.GET("/ip", func(c *gin.Context) {
		c.String(http.StatusOK, GetClientIP(c))
	})
	r.GET("/redirect", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "https://cdn.example/file")
	})
	return r
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGzip(t *testing.T) {
	r := newRouter(Gzip())

	w := serve(r, http.MethodGet, "/ping", map[string]string{"Accept-Encoding": "gzip, deflate"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("pong ", 100), string(body))

	w = serve(r, http.MethodGet, "/ping", nil)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, strings.Repeat("pong ", 100), w.Body.String())

	w = serve(r, http.MethodHead, "/ping", map[string]string{"Accept-Encoding": "gzip"})
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestClientIP(t *testing.T) {
	r := newRouter(ClientIP())

	w := serve(r, http.MethodGet, "/ip", map[string]string{"CF-Connecting-IP": "203.0.113.9"})
	assert.Equal(t, "203.0.113.9", w.Body.String())

	w = serve(r, http.MethodGet, "/ip", nil)
	assert.Equal(t, "192.0.2.1", w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())

	w := serve(r, http.MethodGet, "/ping", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = serve(r, http.MethodGet, "/ping", map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS())

	w := serve(r, http.MethodOptions, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = serve(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggerKeepsResponse(t *testing.T) {
	var sb strings.Builder
	r := newRouter(RequestID(), Logger(logger.NewFromWriter(&sb, "info", nil)))

	w := serve(r, http.MethodGet, "/redirect", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, sb.String(), "/redirect")
}

func TestRateLimitDefaultReject(t *testing.T) {
	r := newRouter(ClientIP(), RateLimit(ratelimiter.NewKeyedLimiter(2, time.Minute), nil))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping", nil).Code)
	}
	w := serve(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestRetryMinutes(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{10 * time.Second, 1},
		{61 * time.Second, 2},
		{time.Hour, 60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryMinutes(tt.in), tt.in.String())
	}
}
