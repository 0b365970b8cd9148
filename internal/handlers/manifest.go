package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

func (h *Handler) handleManifest(c *gin.Context) {
	manifest := h.createManifest()

	if c.Param("configuration") != "" {
		user, err := h.userConfig(c)
		if err != nil {
			h.logger.Warnf("[Manifest] invalid configuration %s: %v", security.MaskConfigToken(c.Request.URL.Path), err)
		} else if provider, err := h.deps.Providers.Resolve(user); err != nil {
			h.logger.Warnf("[Manifest] %v", err)
		} else {
			manifest.Name += " " + provider.ShortName()
		}
	}

	c.JSON(http.StatusOK, manifest)
}

func (h *Handler) createManifest() models.Manifest {
	return models.Manifest{
		ID:          h.config.Addon.ID,
		Version:     constants.AddonVersion,
		Name:        h.config.Addon.Name,
		Description: h.config.Addon.Description,
		Types:       []string{constants.TypeMovie, constants.TypeSeries},
		Resources:   []string{"stream"},
		Catalogs:    []interface{}{},
		BehaviorHints: models.BehaviorHints{
			Configurable: true,
		},
		IDPrefixes: []string{"tt"},
	}
}
