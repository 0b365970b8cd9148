package debrid

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/alldebrid"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

// AllDebrid uses the public AllDebrid v4 API directly.
type AllDebrid struct {
	apiKey      string
	client      *alldebrid.Client
	rateLimiter ratelimiter.RateLimiter
	logger      logger.Logger
}

func NewAllDebrid(apiKey string, client *alldebrid.Client, limiter ratelimiter.RateLimiter, log logger.Logger) *AllDebrid {
	if limiter == nil {
		limiter = ratelimiter.NewTokenBucket(constants.AllDebridRateBurst, constants.AllDebridRateLimit)
	}
	return &AllDebrid{
		apiKey:      security.NewAPIKeyValidator().SanitizeAPIKey(apiKey),
		client:      client,
		rateLimiter: limiter,
		logger:      log,
	}
}

func (a *AllDebrid) ID() string        { return constants.DebridAllDebrid }
func (a *AllDebrid) Name() string      { return "AllDebrid" }
func (a *AllDebrid) ShortName() string { return "AD" }
func (a *AllDebrid) UserHash() string  { return userHash(a.apiKey) }

func (a *AllDebrid) wait(ctx context.Context, op string) error {
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	a.logger.Debugf("[AllDebrid] %s", op)
	return nil
}

func (a *AllDebrid) record(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.DebridRequestsTotal.WithLabelValues(constants.DebridAllDebrid, op, outcome).Inc()
}

// CheckCached uploads the hashes, which AllDebrid answers with a ready flag
// per magnet, then validates the files of every ready magnet.
func (a *AllDebrid) CheckCached(ctx context.Context, candidates []*models.Candidate, valid ValidFiles) ([]*models.Candidate, error) {
	byHash := make(map[string]*models.Candidate, len(candidates))
	var hashes []string
	for _, c := range candidates {
		h := strings.ToLower(c.Hash())
		if h == "" {
			continue
		}
		if _, seen := byHash[h]; !seen {
			byHash[h] = c
			hashes = append(hashes, h)
		}
	}

	cached := []*models.Candidate{}
	for _, group := range hashBatches(hashes, constants.CacheCheckBatchSize) {
		if err := a.wait(ctx, "checking cache"); err != nil {
			return cached, err
		}
		resp, err := a.client.UploadMagnets(ctx, a.apiKey, group)
		a.record("check", err)
		if err != nil {
			mapped := mapAllDebridError(err)
			if isAuthFailure(apperrors.TypeOf(mapped)) {
				return cached, mapped
			}
			a.logger.Errorf("[AllDebrid] error checking cache status: %v", err)
			continue
		}

		for _, m := range resp.Uploaded() {
			c, ok := byHash[strings.ToLower(m.Hash)]
			if !ok || !m.Ready || m.Error != nil {
				continue
			}
			files, err := a.magnetFiles(ctx, m.ID)
			if err != nil {
				a.logger.Warnf("[AllDebrid] unable to list files of magnet %d: %v", m.ID, err)
				continue
			}
			if len(files) > 0 && (valid == nil || valid(ModelFiles(files))) {
				cached = append(cached, c)
			}
		}
	}
	return cached, nil
}

func (a *AllDebrid) Progress(ctx context.Context, candidates []*models.Candidate) (map[string]models.Progress, error) {
	progress := zeroProgress(candidates)
	if len(progress) == 0 {
		return progress, nil
	}

	if err := a.wait(ctx, "reading magnet status"); err != nil {
		return progress, err
	}
	resp, err := a.client.MagnetStatuses(ctx, a.apiKey)
	a.record("progress", err)
	if err != nil {
		return progress, mapAllDebridError(err)
	}

	for _, m := range resp.Data.Magnets {
		h := strings.ToLower(m.Hash)
		if _, wanted := progress[h]; !wanted {
			continue
		}
		p := models.Progress{Speed: m.DownloadSpeed}
		if m.Size > 0 {
			p.Percent = int(m.Downloaded * 100 / m.Size)
		}
		progress[h] = p
	}
	return progress, nil
}

func (a *AllDebrid) FilesFromHash(ctx context.Context, infoHash string) ([]File, error) {
	return a.FilesFromMagnet(ctx, magnetFromHash(infoHash), infoHash)
}

func (a *AllDebrid) FilesFromMagnet(ctx context.Context, magnet, infoHash string) ([]File, error) {
	if err := a.wait(ctx, "uploading magnet "+infoHash); err != nil {
		return nil, err
	}
	resp, err := a.client.UploadMagnets(ctx, a.apiKey, []string{magnet})
	a.record("add", err)
	if err != nil {
		return nil, mapAllDebridError(err)
	}
	return a.readyFiles(ctx, resp)
}

func (a *AllDebrid) FilesFromBuffer(ctx context.Context, buf []byte, infoHash string) ([]File, error) {
	if err := a.wait(ctx, "uploading torrent file "+infoHash); err != nil {
		return nil, err
	}
	resp, err := a.client.UploadFile(ctx, a.apiKey, buf)
	a.record("upload", err)
	if err != nil {
		return nil, mapAllDebridError(err)
	}
	return a.readyFiles(ctx, resp)
}

func (a *AllDebrid) readyFiles(ctx context.Context, resp *alldebrid.MagnetUploadResponse) ([]File, error) {
	uploaded := resp.Uploaded()
	if len(uploaded) == 0 {
		return nil, apperrors.NewNotReadyError("alldebrid returned no magnet", nil)
	}
	m := uploaded[0]
	if m.Error != nil {
		return nil, mapAllDebridError(m.Error)
	}
	if !m.Ready {
		return nil, apperrors.NewNotReadyError("magnet not ready", nil)
	}

	files, err := a.magnetFiles(ctx, m.ID)
	if err != nil {
		return nil, mapAllDebridError(err)
	}
	if len(files) == 0 {
		return nil, apperrors.NewNotReadyError("no files found in magnet", nil)
	}
	return files, nil
}

func (a *AllDebrid) magnetFiles(ctx context.Context, magnetID int64) ([]File, error) {
	if err := a.wait(ctx, "listing files"); err != nil {
		return nil, err
	}
	resp, err := a.client.GetMagnetFiles(ctx, a.apiKey, magnetID)
	a.record("files", err)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, m := range resp.Data.Magnets {
		for _, l := range m.Links {
			files = append(files, File{
				Name: l.Filename,
				Size: l.Size,
				ID:   strconv.FormatInt(m.ID, 10),
				Link: l.Link,
			})
		}
	}
	return files, nil
}

func (a *AllDebrid) ResolveDownload(ctx context.Context, file File) (string, error) {
	if file.Link == "" {
		return "", apperrors.NewNotReadyError("file has no link", nil)
	}
	if err := a.wait(ctx, "unlocking link"); err != nil {
		return "", err
	}
	resp, err := a.client.UnlockLink(ctx, a.apiKey, file.Link)
	a.record("link", err)
	if err != nil {
		return "", mapAllDebridError(err)
	}
	if resp.Data.Link == "" {
		return "", apperrors.NewNotReadyError("alldebrid returned an empty link", nil)
	}
	return resp.Data.Link, nil
}

func mapAllDebridError(err error) error {
	var apiErr *alldebrid.APIError
	if !errors.As(err, &apiErr) {
		return apperrors.NewNotReadyError("alldebrid request failed", err)
	}
	switch apiErr.Code {
	case "AUTH_BAD_APIKEY", "AUTH_MISSING_APIKEY", "AUTH_USER_BANNED":
		return apperrors.NewStreamError(apperrors.ErrorTypeAccessDenied, apiErr.Message, err)
	case "AUTH_BLOCKED":
		return apperrors.NewStreamError(apperrors.ErrorTypeTwoFactorAuth, apiErr.Message, err)
	case "MUST_BE_PREMIUM", "FREE_TRIAL_LIMIT_REACHED":
		return apperrors.NewStreamError(apperrors.ErrorTypeNotPremium, apiErr.Message, err)
	}
	return apperrors.NewNotReadyError(apiErr.Message, err)
}
