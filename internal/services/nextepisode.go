package services

import (
	"context"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/metadata"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

// NextEpisode warms the search results of the episode following the one
// being watched and, when asked to, pushes it to the provider.
type NextEpisode struct {
	meta       metadata.Resolver
	searcher   *Searcher
	downloader *Downloader
	logger     logger.Logger
}

func NewNextEpisode(meta metadata.Resolver, searcher *Searcher, downloader *Downloader, log logger.Logger) *NextEpisode {
	return &NextEpisode{meta: meta, searcher: searcher, downloader: downloader, logger: log}
}

// PrepareFor resolves the current episode before preparing the next one.
func (n *NextEpisode) PrepareFor(ctx context.Context, user config.UserConfig, contentType, stremioID string, provider debrid.Provider) {
	current, err := n.meta.Meta(ctx, contentType, stremioID)
	if err != nil {
		n.logger.Warnf("[NextEpisode] %s: %v", stremioID, err)
		return
	}
	n.Prepare(ctx, user, current, provider)
}

// Prepare never fails: NotReady is expected while the provider downloads and
// anything else is only logged.
func (n *NextEpisode) Prepare(ctx context.Context, user config.UserConfig, current *models.MetaInfo, provider debrid.Provider) {
	if err := n.prepare(ctx, &user, current, provider); err != nil && !apperrors.Is(err, apperrors.ErrorTypeNotReady) {
		n.logger.Warnf("[NextEpisode] %s: cache next episode: %v", current.StremioID, err)
	}
}

func (n *NextEpisode) prepare(ctx context.Context, user *config.UserConfig, current *models.MetaInfo, provider debrid.Provider) error {
	next, ok := current.NextEpisode()
	if !ok {
		return nil
	}

	meta, err := n.meta.EpisodeMeta(ctx, current.ID, next.Season, next.Episode)
	if err != nil {
		return err
	}
	candidates, err := n.searcher.GetTorrents(ctx, user, meta, provider)
	if err != nil {
		return err
	}

	if !user.ForceCacheNextEpisode || provider == nil || len(candidates) == 0 {
		return nil
	}
	for _, c := range candidates {
		if c.Cached {
			return nil
		}
	}
	for _, c := range candidates {
		if c.Disabled {
			continue
		}
		n.logger.Infof("[NextEpisode] %s: force cache next episode (%d) on %s", current.StremioID, meta.Episode, provider.ShortName())
		_, err := n.downloader.Files(debrid.WithStremioID(ctx, meta.StremioID), user, c.Infos, provider)
		return err
	}
	return nil
}
