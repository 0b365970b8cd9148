package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	"github.com/amaumene/gostremiodebrid/internal/indexer"
)

type addonInfo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

type passkeyInfo struct {
	Enabled bool   `json:"enabled"`
	InfoURL string `json:"infoUrl,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// configurePage is the data a configuration page needs to build a token.
type configurePage struct {
	Addon                   addonInfo            `json:"addon"`
	UserConfig              string               `json:"userConfig"`
	Debrids                 []debrid.Descriptor  `json:"debrids"`
	DefaultUserConfig       config.UserConfig    `json:"defaultUserConfig"`
	Qualities               []constants.Quality  `json:"qualities"`
	Languages               []constants.Language `json:"languages"`
	Sorts                   []string             `json:"sorts"`
	Indexers                []indexer.Descriptor `json:"indexers"`
	Passkey                 passkeyInfo          `json:"passkey"`
	ImmutableUserConfigKeys []string             `json:"immulatableUserConfigKeys"`
}

func (h *Handler) handleAPIConfig(c *gin.Context) {
	languages := make([]constants.Language, 0, len(constants.Languages))
	for _, l := range constants.Languages {
		if l.Value != "multi" {
			languages = append(languages, l)
		}
	}

	page := configurePage{
		Addon:                   addonInfo{Version: constants.AddonVersion, Name: h.config.Addon.Name},
		UserConfig:              c.Param("configuration"),
		Debrids:                 h.deps.Providers.List(),
		DefaultUserConfig:       h.config.DefaultUserConfig(),
		Qualities:               constants.Qualities,
		Languages:               languages,
		Sorts:                   constants.SortFields,
		Indexers:                indexer.Describe(h.deps.Indexers),
		ImmutableUserConfigKeys: h.config.ImmutableUserKeys,
	}
	if h.config.ReplacePasskeyEnabled() {
		page.Passkey = passkeyInfo{
			Enabled: true,
			InfoURL: h.config.Passkey.InfoURL,
			Pattern: h.config.Passkey.Pattern,
		}
	}
	c.JSON(http.StatusOK, page)
}
