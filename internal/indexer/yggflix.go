package indexer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cehbz/torrentname"

	"github.com/amaumene/gostremiodebrid/internal/cache"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/httputil"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

const yggflixPasskeyLength = 32

var (
	qualityPattern   = regexp.MustCompile(`(2160|1080|720|480|360)p`)
	separatorPattern = regexp.MustCompile(`[._\-\[\]()]+`)

	languageMarkers = []struct {
		language string
		tokens   []string
	}{
		{"french", []string{"french", "vf", "truefrench", "vff", "vfq"}},
		{"english", []string{"english", "eng", "vostfr", "vo"}},
		{"multi", []string{"multi", "multilangues"}},
	}
)

// flexNumber decodes numbers that the API sometimes sends as strings.
type flexNumber int64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		v = int64(f)
	}
	*n = flexNumber(v)
	return nil
}

// YggflixItem is a raw torrent entry of the Yggflix API.
type YggflixItem struct {
	ID       flexNumber `json:"id"`
	Title    string     `json:"title"`
	Size     flexNumber `json:"size"`
	Seeders  flexNumber `json:"seeders"`
	Leechers flexNumber `json:"leechers"`
}

// Yggflix searches the Yggflix API, which indexes YggTorrent by TMDB id.
type Yggflix struct {
	baseURL    string
	passkey    string
	httpClient *http.Client
	store      cache.Store
	logger     logger.Logger
}

func NewYggflix(baseURL, passkey string, store cache.Store, log logger.Logger) *Yggflix {
	return &Yggflix{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api",
		passkey:    passkey,
		httpClient: httputil.NewHTTPClient(constants.IndexerHTTPTimeout),
		store:      store,
		logger:     log,
	}
}

func (y *Yggflix) ID() string       { return constants.IndexerYggflix }
func (y *Yggflix) Title() string    { return "Yggtorrent (Yggflix)" }
func (y *Yggflix) Language() string { return "fr-FR" }

func (y *Yggflix) Supports(contentType string) bool {
	return contentType == constants.TypeMovie || contentType == constants.TypeSeries
}

func (y *Yggflix) SearchMovies(ctx context.Context, meta *models.MetaInfo) ([]*models.Candidate, error) {
	if meta.TMDBID == 0 {
		y.logger.Warnf("[Yggflix] TMDB id required for movie search of %s", meta.Name)
		return []*models.Candidate{}, nil
	}
	items := y.items(ctx, "movie", fmt.Sprintf("/movie/%d/torrents", meta.TMDBID), meta.TMDBID)
	return y.normalize(items, constants.TypeMovie), nil
}

// SearchSeries returns every torrent of the show. Season and episode
// filtering is done by the search pipeline.
func (y *Yggflix) SearchSeries(ctx context.Context, meta *models.MetaInfo) ([]*models.Candidate, error) {
	if meta.TMDBID == 0 {
		y.logger.Warnf("[Yggflix] TMDB id required for series search of %s", meta.Name)
		return []*models.Candidate{}, nil
	}
	items := y.items(ctx, "serie", fmt.Sprintf("/tvshow/%d/torrents", meta.TMDBID), meta.TMDBID)
	return y.normalize(items, constants.TypeSeries), nil
}

// items returns the raw items, memoized in the cache store. Failures are
// logged and memoized briefly as an empty result.
func (y *Yggflix) items(ctx context.Context, kind, endpoint string, tmdbID int) []YggflixItem {
	key := fmt.Sprintf("yggflixItems:1:%s:%d", kind, tmdbID)

	var items []YggflixItem
	if found, err := y.store.Get(ctx, key, &items); err != nil {
		y.logger.Warnf("[Yggflix] cache read failed for %s: %v", key, err)
	} else if found {
		return items
	}

	start := time.Now()
	err := httputil.GetJSON(ctx, y.httpClient, y.baseURL+endpoint, nil, &items)
	metrics.IndexerRequestDuration.WithLabelValues(y.ID()).Observe(time.Since(start).Seconds())

	ttl := constants.IndexerCacheTTL
	switch {
	case err != nil:
		metrics.IndexerRequestsTotal.WithLabelValues(y.ID(), "error").Inc()
		y.logger.Errorf("[Yggflix] error searching %s %d: %v", kind, tmdbID, err)
		items = []YggflixItem{}
		ttl = constants.IndexerEmptyCacheTTL
	case len(items) == 0:
		metrics.IndexerRequestsTotal.WithLabelValues(y.ID(), "empty").Inc()
		items = []YggflixItem{}
		ttl = constants.IndexerEmptyCacheTTL
	default:
		metrics.IndexerRequestsTotal.WithLabelValues(y.ID(), "success").Inc()
	}

	// A cancelled search must not poison the memo.
	if ctx.Err() == nil {
		if err := y.store.Set(ctx, key, items, ttl); err != nil {
			y.logger.Warnf("[Yggflix] cache write failed for %s: %v", key, err)
		}
	}
	return items
}

func (y *Yggflix) normalize(items []YggflixItem, contentType string) []*models.Candidate {
	candidates := make([]*models.Candidate, 0, len(items))
	for _, item := range items {
		externalID := strconv.FormatInt(int64(item.ID), 10)
		guid := "yggflix-" + externalID
		sum := sha1.Sum([]byte(guid))

		candidates = append(candidates, &models.Candidate{
			ID:         hex.EncodeToString(sum[:]),
			Name:       item.Title,
			IndexerID:  y.ID(),
			ExternalID: externalID,
			Size:       int64(item.Size),
			Seeders:    int(item.Seeders),
			Peers:      int(item.Seeders) + int(item.Leechers),
			Type:       contentType,
			Quality:    DetectQuality(item.Title),
			Languages:  DetectLanguages(item.Title),
			Link:       y.downloadURL(externalID),
		})
	}
	return candidates
}

// downloadURL is only available with a well-formed passkey.
func (y *Yggflix) downloadURL(torrentID string) string {
	if len(y.passkey) != yggflixPasskeyLength {
		return ""
	}
	return fmt.Sprintf("%s/torrent/%s/download?passkey=%s", y.baseURL, torrentID, y.passkey)
}

// DetectQuality reads the resolution tier of a title, 0 when unknown.
func DetectQuality(title string) int {
	if m := qualityPattern.FindStringSubmatch(title); m != nil {
		q, _ := strconv.Atoi(m[1])
		return q
	}

	parsed := torrentname.Parse(title)
	if parsed == nil {
		return 0
	}
	res := strings.ToLower(parsed.Resolution)
	if res == "4k" || res == "uhd" {
		return 2160
	}
	q, err := strconv.Atoi(strings.TrimSuffix(res, "p"))
	if err != nil {
		return 0
	}
	for _, known := range constants.Qualities {
		if known.Value == q {
			return q
		}
	}
	return 0
}

// DetectLanguages tags a title. Yggflix is a French tracker so titles without
// a marker default to french.
func DetectLanguages(title string) []string {
	words := make(map[string]bool)
	for _, w := range strings.Fields(separatorPattern.ReplaceAllString(strings.ToLower(title), " ")) {
		words[w] = true
	}

	var languages []string
	for _, marker := range languageMarkers {
		for _, token := range marker.tokens {
			if words[token] {
				languages = append(languages, marker.language)
				break
			}
		}
	}
	if len(languages) == 0 {
		languages = append(languages, "french")
	}
	return languages
}
