package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/bencode"

	"github.com/amaumene/gostremiodebrid/internal/cache"
	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/lock"
	"github.com/amaumene/gostremiodebrid/internal/metadata"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

// TorrentSource gives access to stored infos and raw .torrent files.
type TorrentSource interface {
	GetByID(id string) (*models.TorrentInfos, error)
	GetTorrentFile(ctx context.Context, infos *models.TorrentInfos) ([]byte, error)
}

type episodePreparer interface {
	PrepareFor(ctx context.Context, user config.UserConfig, contentType, stremioID string, provider debrid.Provider)
}

// Downloader resolves a candidate into a playable link. Resolutions are
// serialized and cached per provider credential, content and torrent.
type Downloader struct {
	cfg      *config.Config
	torrents TorrentSource
	store    cache.Store
	locks    *lock.Keyed
	next     episodePreparer
	logger   logger.Logger
}

func NewDownloader(cfg *config.Config, torrents TorrentSource, store cache.Store, log logger.Logger) *Downloader {
	return &Downloader{
		cfg:      cfg,
		torrents: torrents,
		store:    store,
		locks:    lock.NewKeyed("download"),
		logger:   log,
	}
}

// SetPreparer enables next episode preparation for users asking for it.
func (d *Downloader) SetPreparer(p episodePreparer) {
	d.next = p
}

func downloadKey(userHash, stremioID, torrentID string) string {
	return fmt.Sprintf("download:2:%s:%s:%s", userHash, stremioID, torrentID)
}

// GetDownload returns the direct link of the best file of torrentID.
func (d *Downloader) GetDownload(ctx context.Context, user *config.UserConfig, provider debrid.Provider, contentType, stremioID, torrentID string) (string, error) {
	infos, err := d.torrents.GetByID(torrentID)
	if err != nil {
		return "", fmt.Errorf("failed to read torrent infos %s: %w", torrentID, err)
	}
	if infos == nil {
		return "", apperrors.NewNoTorrentInfosError(contentType, torrentID)
	}

	key := downloadKey(provider.UserHash(), stremioID, torrentID)
	release, err := d.locks.Acquire(ctx, key)
	if err != nil {
		return "", err
	}
	defer release()

	if contentType == constants.TypeSeries && user.ForceCacheNextEpisode && d.next != nil {
		go d.next.PrepareFor(context.WithoutCancel(ctx), *user, contentType, stremioID, provider)
	}

	var link string
	if found, err := d.store.Get(ctx, key, &link); err != nil {
		d.logger.Warnf("[Download] cache read failed: %v", err)
	} else if found && link != "" {
		return link, nil
	}

	ctx = debrid.WithStremioID(ctx, stremioID)
	d.logger.Infof("[Download] %s: %s: %s: getting files", stremioID, provider.ShortName(), infos.InfoHash)
	files, err := d.Files(ctx, user, infos, provider)
	if err != nil {
		return "", err
	}
	d.logger.Infof("[Download] %s: %s: %s: %d files found", stremioID, provider.ShortName(), infos.InfoHash, len(files))
	if len(files) == 0 {
		return "", apperrors.NewNoDownloadError(contentType, torrentID)
	}

	best := pickFile(files, contentType, stremioID)
	link, err = provider.ResolveDownload(ctx, best)
	if err != nil {
		return "", err
	}
	if link == "" {
		return "", apperrors.NewNoDownloadError(contentType, torrentID)
	}

	if err := d.store.Set(ctx, key, link, constants.DownloadCacheTTL); err != nil {
		d.logger.Warnf("[Download] cache write failed: %v", err)
	}
	d.logger.Debugf("[Download] %s: resolved %s", stremioID, security.MaskURL(link))
	return link, nil
}

// pickFile takes the largest file, or for series the episode file when one
// can be found.
func pickFile(files []debrid.File, contentType, stremioID string) debrid.File {
	sorted := append([]debrid.File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Size > sorted[j].Size })

	if contentType == constants.TypeSeries {
		_, season, episode := metadata.ParseStremioID(stremioID)
		names := make([]string, len(sorted))
		for i, f := range sorted {
			names[i] = f.Name
		}
		if i := SearchEpisodeFile(names, season, episode); i >= 0 {
			return sorted[i]
		}
	}
	return sorted[0]
}

// Files lists the torrent's files on the provider, uploading it when needed.
func (d *Downloader) Files(ctx context.Context, user *config.UserConfig, infos *models.TorrentInfos, provider debrid.Provider) ([]debrid.File, error) {
	if infos.MagnetURL != "" {
		return provider.FilesFromMagnet(ctx, infos.MagnetURL, infos.InfoHash)
	}

	buf, err := d.torrents.GetTorrentFile(ctx, infos)
	if err != nil {
		return nil, err
	}

	if d.cfg.ReplacePasskeyEnabled() {
		if infos.Private && user.Passkey == "" {
			return provider.FilesFromHash(ctx, infos.InfoHash)
		}
		if !d.cfg.PasskeyMatches(user.Passkey) {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("invalid user passkey, pattern not match: %s", d.cfg.Passkey.Pattern), nil)
		}
		buf, err = ReplacePasskey(buf, d.cfg.Passkey.Replace, user.Passkey)
		if err != nil {
			return nil, err
		}
	}

	return provider.FilesFromBuffer(ctx, buf, infos.InfoHash)
}

// ReplacePasskey swaps the tracker passkey in the announce and announce-list
// entries of a raw .torrent. Every other key, info included, is kept byte for
// byte so the info hash does not change.
func ReplacePasskey(raw []byte, from, to string) ([]byte, error) {
	if from == "" {
		return raw, nil
	}

	var torrent map[string]bencode.RawMessage
	if err := bencode.DecodeBytes(raw, &torrent); err != nil {
		return nil, fmt.Errorf("failed to decode torrent: %w", err)
	}

	if value, ok := torrent["announce"]; ok {
		var announce string
		if err := bencode.DecodeBytes(value, &announce); err != nil {
			return nil, fmt.Errorf("invalid announce: %w", err)
		}
		encoded, err := bencode.EncodeBytes(strings.ReplaceAll(announce, from, to))
		if err != nil {
			return nil, err
		}
		torrent["announce"] = encoded
	}

	if value, ok := torrent["announce-list"]; ok {
		var tiers [][]string
		if err := bencode.DecodeBytes(value, &tiers); err != nil {
			return nil, fmt.Errorf("invalid announce-list: %w", err)
		}
		for _, tier := range tiers {
			for i, tracker := range tier {
				tier[i] = strings.ReplaceAll(tracker, from, to)
			}
		}
		encoded, err := bencode.EncodeBytes(tiers)
		if err != nil {
			return nil, err
		}
		torrent["announce-list"] = encoded
	}

	out, err := bencode.EncodeBytes(torrent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode torrent: %w", err)
	}
	return out, nil
}
