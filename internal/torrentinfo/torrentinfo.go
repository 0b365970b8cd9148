// Package torrentinfo fetches and persists the technical metadata of
// torrents found by the indexers.
package torrentinfo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/database"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/httputil"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

// Service resolves candidates into TorrentInfos, reading through the
// database before downloading the .torrent file.
type Service struct {
	db         database.Database
	httpClient *http.Client
	logger     logger.Logger
}

func NewService(db database.Database, log logger.Logger) *Service {
	return &Service{
		db:         db,
		httpClient: httputil.NewHTTPClient(constants.TorrentInfoMaxTimeout),
		logger:     log,
	}
}

// Get returns the infos of a candidate. Candidates that only carry a hash
// get infos without a file list.
func (s *Service) Get(ctx context.Context, c *models.Candidate) (*models.TorrentInfos, error) {
	if stored, err := s.db.GetTorrentInfos(c.ID); err != nil {
		s.logger.Warnf("[TorrentInfo] read failed for %s: %v", c.ID, err)
	} else if stored != nil {
		metrics.TorrentInfoFetchTotal.WithLabelValues("stored").Inc()
		return stored, nil
	}

	if c.Link == "" {
		if c.InfoHash == "" {
			metrics.TorrentInfoFetchTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("torrent %s has neither link nor info hash", c.ID)
		}
		magnet := c.MagnetURL
		if magnet == "" {
			magnet = "magnet:?xt=urn:btih:" + c.InfoHash
		}
		infos := &models.TorrentInfos{
			ID:        c.ID,
			InfoHash:  strings.ToLower(c.InfoHash),
			Name:      c.Name,
			Size:      c.Size,
			MagnetURL: magnet,
			IndexerID: c.IndexerID,
		}
		if err := s.db.StoreTorrentInfos(infos, nil); err != nil {
			s.logger.Warnf("[TorrentInfo] unable to persist %s: %v", c.ID, err)
		}
		metrics.TorrentInfoFetchTotal.WithLabelValues("magnet").Inc()
		return infos, nil
	}

	raw, err := s.download(ctx, c.Link)
	if err != nil {
		metrics.TorrentInfoFetchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	infos, err := Parse(raw)
	if err != nil {
		metrics.TorrentInfoFetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("torrent %s: %w", c.ID, err)
	}
	infos.ID = c.ID
	infos.IndexerID = c.IndexerID
	infos.Link = c.Link
	infos.CreatedAt = time.Now()

	if err := s.db.StoreTorrentInfos(infos, raw); err != nil {
		s.logger.Warnf("[TorrentInfo] unable to persist %s: %v", c.ID, err)
	}
	metrics.TorrentInfoFetchTotal.WithLabelValues("downloaded").Inc()
	return infos, nil
}

// GetByID returns stored infos, nil when unknown.
func (s *Service) GetByID(id string) (*models.TorrentInfos, error) {
	return s.db.GetTorrentInfos(id)
}

// GetTorrentFile returns the raw .torrent, downloading it again when it was
// not kept.
func (s *Service) GetTorrentFile(ctx context.Context, infos *models.TorrentInfos) ([]byte, error) {
	raw, err := s.db.GetTorrentFile(infos.ID)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		return raw, nil
	}
	if infos.Link == "" {
		return nil, fmt.Errorf("no torrent file for %s", infos.ID)
	}

	raw, err = s.download(ctx, infos.Link)
	if err != nil {
		return nil, err
	}
	if err := s.db.StoreTorrentInfos(infos, raw); err != nil {
		s.logger.Warnf("[TorrentInfo] unable to persist torrent file %s: %v", infos.ID, err)
	}
	return raw, nil
}

// Cleanup removes infos older than retention.
func (s *Service) Cleanup(retention time.Duration) (int, error) {
	return s.db.DeleteOlderThan(retention)
}

func (s *Service) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Debugf("[TorrentInfo] downloading %s", security.MaskURL(link))
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download torrent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{URL: security.MaskURL(link), StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxTorrentFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read torrent: %w", err)
	}
	if len(raw) > constants.MaxTorrentFileBytes {
		return nil, fmt.Errorf("torrent file exceeds %d bytes", constants.MaxTorrentFileBytes)
	}
	return raw, nil
}

// Parse extracts the technical infos of a .torrent file.
func Parse(raw []byte) (*models.TorrentInfos, error) {
	mi, err := metainfo.Load(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse torrent: %w", err)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to parse torrent info: %w", err)
	}

	hash := mi.HashInfoBytes()
	infos := &models.TorrentInfos{
		InfoHash: hash.HexString(),
		Name:     info.BestName(),
		Size:     info.TotalLength(),
		Private:  info.Private != nil && *info.Private,
	}
	// Private torrents are uploaded as files so the passkey can be rewritten.
	if !infos.Private {
		infos.MagnetURL = mi.Magnet(&hash, &info).String()
	}
	for _, f := range info.UpvertedFiles() {
		infos.Files = append(infos.Files, models.File{
			Name: f.DisplayPath(&info),
			Size: f.Length,
		})
	}
	return infos, nil
}
