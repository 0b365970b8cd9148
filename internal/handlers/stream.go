package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/gostremiodebrid/internal/middleware"
	"github.com/amaumene/gostremiodebrid/internal/models"
)

// handleStream never fails towards Stremio: errors are logged and answered
// with an empty list.
func (h *Handler) handleStream(c *gin.Context) {
	id := stripJSONExtension(c, "id")
	contentType := c.Param("type")

	user, err := h.userConfig(c)
	if err != nil {
		h.logger.Warnf("[StreamHandler] %s: %v", id, err)
		c.JSON(http.StatusOK, models.StreamResponse{Streams: []models.Stream{}})
		return
	}

	streams, err := h.deps.Streams.GetStreams(c.Request.Context(), user, contentType, id, h.publicURL(c))
	if err != nil {
		h.logger.Errorf("[StreamHandler] %s: %v", id, err)
		c.JSON(http.StatusOK, models.StreamResponse{Streams: []models.Stream{}})
		return
	}
	if streams == nil {
		streams = []models.Stream{}
	}
	c.JSON(http.StatusOK, models.StreamResponse{Streams: streams})
}

func (h *Handler) handleUnconfiguredStream(c *gin.Context) {
	c.JSON(http.StatusOK, h.placeholder("ℹ Kindly configure this addon to access streams."))
}

// rejectRateLimited answers stream requests with a placeholder Stremio can
// display; other routes get a plain 429.
func (h *Handler) rejectRateLimited(c *gin.Context, retryAfter time.Duration) {
	if c.FullPath() == streamRoute {
		title := fmt.Sprintf("🛑 Too many requests, please retry in %d minute(s).", middleware.RetryMinutes(retryAfter))
		c.JSON(http.StatusOK, h.placeholder(title))
		return
	}
	middleware.TooManyRequests(c, retryAfter)
}

func (h *Handler) placeholder(title string) models.StreamResponse {
	return models.StreamResponse{Streams: []models.Stream{{
		Name:  h.config.Addon.Name,
		Title: title,
		URL:   "#",
	}}}
}
