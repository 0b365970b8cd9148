// Package metadata resolves Stremio ids into the MetaInfo used by the search
// pipeline, using the TMDB API.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/cache"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/httputil"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

// Resolver is what the stream and download services need from metadata.
type Resolver interface {
	Meta(ctx context.Context, contentType, stremioID string) (*models.MetaInfo, error)
	EpisodeMeta(ctx context.Context, imdbID string, season, episode int) (*models.MetaInfo, error)
}

type TMDB struct {
	baseURL     string
	apiKey      string
	store       cache.Store
	rateLimiter *ratelimiter.TokenBucket
	httpClient  *http.Client
	logger      logger.Logger
	validator   *security.APIKeyValidator
}

func NewTMDB(baseURL, apiKey string, store cache.Store, log logger.Logger) *TMDB {
	validator := security.NewAPIKeyValidator()
	return &TMDB{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      validator.SanitizeAPIKey(apiKey),
		store:       store,
		rateLimiter: ratelimiter.NewTokenBucket(20, 5),
		httpClient:  httputil.NewHTTPClient(constants.IndexerHTTPTimeout),
		logger:      log,
		validator:   validator,
	}
}

// ParseStremioID splits "tt123:1:2" into its imdb id, season and episode.
// Missing or malformed numbers read as 0.
func ParseStremioID(stremioID string) (string, int, int) {
	parts := strings.Split(stremioID, ":")
	var season, episode int
	if len(parts) > 1 {
		season, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		episode, _ = strconv.Atoi(parts[2])
	}
	return parts[0], season, episode
}

// Meta resolves the id of a stream request according to its content type.
func (t *TMDB) Meta(ctx context.Context, contentType, stremioID string) (*models.MetaInfo, error) {
	id, season, episode := ParseStremioID(stremioID)
	if !strings.HasPrefix(id, "tt") {
		return nil, apperrors.NewInvalidIDError(stremioID)
	}
	switch contentType {
	case constants.TypeMovie:
		return t.MovieMeta(ctx, id)
	case constants.TypeSeries:
		return t.EpisodeMeta(ctx, id, season, episode)
	default:
		return nil, apperrors.NewUnsupportedTypeError(contentType)
	}
}

func (t *TMDB) MovieMeta(ctx context.Context, imdbID string) (*models.MetaInfo, error) {
	key := fmt.Sprintf("meta:1:movie:%s", imdbID)
	var meta models.MetaInfo
	if found, err := t.store.Get(ctx, key, &meta); err != nil {
		t.logger.Warnf("[TMDB] cache read failed for %s: %v", key, err)
	} else if found {
		return &meta, nil
	}

	found, err := t.find(ctx, imdbID)
	if err != nil {
		return nil, err
	}
	if len(found.MovieResults) == 0 {
		return nil, fmt.Errorf("no movie found for IMDB ID: %s", imdbID)
	}
	movie := found.MovieResults[0]
	meta = models.MetaInfo{
		ID:        imdbID,
		TMDBID:    movie.ID,
		Name:      movie.Title,
		Year:      yearOf(movie.ReleaseDate),
		Type:      constants.TypeMovie,
		StremioID: imdbID,
	}

	if err := t.store.Set(ctx, key, meta, constants.MetaCacheTTL); err != nil {
		t.logger.Warnf("[TMDB] cache write failed for %s: %v", key, err)
	}
	return &meta, nil
}

// EpisodeMeta returns the series meta positioned on one episode. The episode
// list covers every regular season, specials excluded.
func (t *TMDB) EpisodeMeta(ctx context.Context, imdbID string, season, episode int) (*models.MetaInfo, error) {
	key := fmt.Sprintf("meta:1:series:%s", imdbID)
	var series models.MetaInfo
	found, err := t.store.Get(ctx, key, &series)
	if err != nil {
		t.logger.Warnf("[TMDB] cache read failed for %s: %v", key, err)
	}
	if !found {
		fetched, err := t.fetchSeries(ctx, imdbID)
		if err != nil {
			return nil, err
		}
		series = *fetched
		if err := t.store.Set(ctx, key, series, constants.MetaCacheTTL); err != nil {
			t.logger.Warnf("[TMDB] cache write failed for %s: %v", key, err)
		}
	}

	series.Season = season
	series.Episode = episode
	series.StremioID = fmt.Sprintf("%s:%d:%d", imdbID, season, episode)
	return &series, nil
}

func (t *TMDB) fetchSeries(ctx context.Context, imdbID string) (*models.MetaInfo, error) {
	found, err := t.find(ctx, imdbID)
	if err != nil {
		return nil, err
	}
	if len(found.TVResults) == 0 {
		return nil, fmt.Errorf("no series found for IMDB ID: %s", imdbID)
	}
	tv := found.TVResults[0]

	var details models.TMDBTVDetails
	if err := t.get(ctx, fmt.Sprintf("/tv/%d", tv.ID), nil, &details); err != nil {
		return nil, fmt.Errorf("failed to fetch TMDB series %d: %w", tv.ID, err)
	}

	meta := &models.MetaInfo{
		ID:     imdbID,
		TMDBID: tv.ID,
		Name:   tv.Name,
		Year:   yearOf(tv.FirstAirDate),
		Type:   constants.TypeSeries,
	}
	for _, s := range details.Seasons {
		if s.SeasonNumber == 0 {
			continue
		}
		for e := 1; e <= s.EpisodeCount; e++ {
			meta.Episodes = append(meta.Episodes, models.Episode{Season: s.SeasonNumber, Episode: e})
		}
	}
	return meta, nil
}

func (t *TMDB) find(ctx context.Context, imdbID string) (*models.TMDBFindResponse, error) {
	var resp models.TMDBFindResponse
	params := url.Values{"external_source": {"imdb_id"}}
	if err := t.get(ctx, "/find/"+url.PathEscape(imdbID), params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch TMDB data for %s: %w", imdbID, err)
	}
	return &resp, nil
}

func (t *TMDB) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	if t.apiKey == "" {
		return fmt.Errorf("TMDB API key not configured")
	}
	if err := t.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", t.apiKey)
	params.Set("language", "fr-FR")

	t.logger.Debugf("[TMDB] fetching %s (key: %s)", path, t.validator.MaskAPIKey(t.apiKey))
	return httputil.GetJSON(ctx, t.httpClient, t.baseURL+path+"?"+params.Encode(), nil, dst)
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
