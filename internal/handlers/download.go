package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

var errorVideos = map[string]string{
	apperrors.ErrorTypeNotReady:      "/videos/not_ready.mp4",
	apperrors.ErrorTypeExpiredAPIKey: "/videos/expired_api_key.mp4",
	apperrors.ErrorTypeNotPremium:    "/videos/not_premium.mp4",
	apperrors.ErrorTypeAccessDenied:  "/videos/access_denied.mp4",
	apperrors.ErrorTypeTwoFactorAuth: "/videos/two_factor_auth.mp4",
}

const defaultErrorVideo = "/videos/error.mp4"

// handleDownload redirects to the debrid link. Failures redirect to a short
// video explaining the problem, since players cannot show error bodies.
func (h *Handler) handleDownload(c *gin.Context) {
	id := c.Param("id")

	link, err := h.download(c)
	if err != nil {
		h.logger.Warnf("[DownloadHandler] %s: %v", id, err)
		video, ok := errorVideos[apperrors.TypeOf(err)]
		if !ok {
			video = defaultErrorVideo
		}
		c.Redirect(http.StatusFound, video)
		return
	}

	h.logger.Infof("[DownloadHandler] %s: redirect: %s", id, security.MaskURL(link))
	c.Redirect(http.StatusFound, link)
}

func (h *Handler) download(c *gin.Context) (string, error) {
	user, err := h.userConfig(c)
	if err != nil {
		return "", err
	}
	provider, err := h.deps.Providers.Resolve(user)
	if err != nil {
		return "", err
	}
	return h.deps.Downloads.GetDownload(c.Request.Context(), user, provider,
		c.Param("type"), c.Param("id"), c.Param("torrentId"))
}
