// Package handlers implements HTTP request handlers for the Stremio addon API.
package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	"github.com/amaumene/gostremiodebrid/internal/indexer"
	"github.com/amaumene/gostremiodebrid/internal/middleware"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
)

const streamRoute = "/:configuration/stream/:type/:id"

// StreamService lists the streams of a content for a user.
type StreamService interface {
	GetStreams(ctx context.Context, user *config.UserConfig, contentType, stremioID, publicURL string) ([]models.Stream, error)
}

// DownloadService resolves a torrent into a playable link.
type DownloadService interface {
	GetDownload(ctx context.Context, user *config.UserConfig, provider debrid.Provider, contentType, stremioID, torrentID string) (string, error)
}

// ProviderCatalog resolves and lists debrid providers.
type ProviderCatalog interface {
	Resolve(u *config.UserConfig) (debrid.Provider, error)
	List() []debrid.Descriptor
}

// HealthCheck is one dependency checked by /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the services the handlers call into.
type Dependencies struct {
	Streams   StreamService
	Downloads DownloadService
	Providers ProviderCatalog
	Indexers  []indexer.Indexer
	Limiter   *ratelimiter.KeyedLimiter
	Health    []HealthCheck
	Metrics   http.Handler
}

// Handler handles HTTP requests for the Stremio addon.
type Handler struct {
	config *config.Config
	deps   Dependencies
	logger logger.Logger
}

// New creates a new Handler with the provided services and configuration.
func New(cfg *config.Config, deps Dependencies, log logger.Logger) *Handler {
	return &Handler{config: cfg, deps: deps, logger: log}
}

// RegisterRoutes registers all HTTP routes for the Stremio addon. Health and
// metrics are registered before the rate limiter so health checks are never refused.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.handleHealth)
	if h.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.deps.Metrics))
	}
	if dir := h.config.Server.StaticDir; dir != "" {
		r.Static("/videos", filepath.Join(dir, "videos"))
	}

	if h.deps.Limiter != nil {
		r.Use(middleware.RateLimit(h.deps.Limiter, h.rejectRateLimited))
	}

	r.GET("/", h.handleHome)
	r.GET("/api/config", h.handleAPIConfig)
	r.GET("/configure", h.handleAPIConfig)
	r.GET("/:configuration/configure", h.handleAPIConfig)

	r.GET("/manifest.json", h.handleManifest)
	r.GET("/:configuration/manifest.json", h.handleManifest)

	r.GET("/stream/:type/:id", h.handleUnconfiguredStream)
	r.GET(streamRoute, h.handleStream)

	download := "/:configuration/download/:type/:id/:torrentId"
	r.GET(download, h.handleDownload)
	r.HEAD(download, h.handleDownload)
}

func (h *Handler) handleHome(c *gin.Context) {
	c.Redirect(http.StatusFound, "/configure")
}

// userConfig decodes the configuration segment of the URL and stamps the
// caller's address on it.
func (h *Handler) userConfig(c *gin.Context) (*config.UserConfig, error) {
	user, err := h.config.ParseUserConfig(c.Param("configuration"))
	if err != nil {
		return nil, err
	}
	user.IP = middleware.GetClientIP(c)
	return user, nil
}

// publicURL is the base of the download links handed to Stremio.
func (h *Handler) publicURL(c *gin.Context) string {
	if u := h.config.Server.PublicURL; u != "" {
		return strings.TrimRight(u, "/")
	}
	scheme := "https"
	if host := c.Request.Host; strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host
}

// stripJSONExtension removes .json extension from a parameter if present
func stripJSONExtension(c *gin.Context, paramName string) string {
	value := c.Param(paramName)
	if strings.HasSuffix(value, ".json") {
		for i, param := range c.Params {
			if param.Key == paramName {
				c.Params[i].Value = strings.TrimSuffix(value, ".json")
				break
			}
		}
	}
	return c.Param(paramName)
}
