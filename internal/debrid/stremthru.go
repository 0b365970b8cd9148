package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/httputil"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

const (
	stremThruStatusCached     = "cached"
	stremThruStatusDownloaded = "downloaded"

	stremThruTimeout = 60 * time.Second
)

var stremThruShortNames = map[string]string{
	constants.DebridRealDebrid: "RD",
	constants.DebridAllDebrid:  "AD",
	constants.DebridDebridLink: "DL",
	constants.DebridPremiumize: "PM",
	constants.DebridPikPak:     "PP",
	constants.DebridEasyDebrid: "ED",
	constants.DebridOffcloud:   "OC",
	constants.DebridTorBox:     "TB",
}

// StremThruConfig configures a gateway client for one user.
type StremThruConfig struct {
	BaseURL  string
	Store    string
	APIKey   string
	ClientIP string

	// RetryBudget is the number of extra attempts after a transport failure.
	RetryBudget uint
}

// StremThru talks to a StremThru gateway which fronts several stores.
type StremThru struct {
	httpClient  *http.Client
	baseURL     string
	store       string
	apiKey      string
	clientIP    string
	retryBudget uint
	statuses    *StatusCache
	logger      logger.Logger
}

func NewStremThru(cfg StremThruConfig, statuses *StatusCache, log logger.Logger) *StremThru {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultStremThruURL
	}
	if cfg.Store == "" {
		cfg.Store = constants.DefaultStremThruStore
	}
	if statuses == nil {
		statuses = NewStatusCache()
	}
	return &StremThru{
		httpClient:  httputil.NewHTTPClient(stremThruTimeout),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		store:       cfg.Store,
		apiKey:      security.NewAPIKeyValidator().SanitizeAPIKey(cfg.APIKey),
		clientIP:    cfg.ClientIP,
		retryBudget: cfg.RetryBudget,
		statuses:    statuses,
		logger:      log,
	}
}

func (s *StremThru) ID() string   { return constants.DebridStremThru }
func (s *StremThru) Name() string { return "StremThru" }

// ShortName is the abbreviation of the backing store.
func (s *StremThru) ShortName() string {
	if short, ok := stremThruShortNames[s.store]; ok {
		return short
	}
	return "ST"
}

// Store returns the backing store name.
func (s *StremThru) Store() string { return s.store }

func (s *StremThru) UserHash() string { return userHash(s.apiKey) }

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexID(v)
		return nil
	}
	*f = flexID(strings.TrimSpace(string(data)))
	return nil
}

type stremThruFile struct {
	Index int    `json:"index"`
	Link  string `json:"link"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
}

type stremThruCheckItem struct {
	Hash   string          `json:"hash"`
	Magnet string          `json:"magnet"`
	Status string          `json:"status"`
	Files  []stremThruFile `json:"files"`
}

type stremThruMagnet struct {
	ID     flexID          `json:"id"`
	Hash   string          `json:"hash"`
	Name   string          `json:"name"`
	Status string          `json:"status"`
	Files  []stremThruFile `json:"files"`
}

type stremThruEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

type requestBody struct {
	contentType string
	data        []byte
}

func jsonBody(v interface{}) (*requestBody, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &requestBody{contentType: "application/json", data: data}, nil
}

func torrentBody(buf []byte) (*requestBody, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("torrent", "file.torrent")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(buf); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &requestBody{contentType: w.FormDataContentType(), data: b.Bytes()}, nil
}

// request sends one gateway call. A body carrying an error object yields an
// *APIError; other failures are transport errors.
func (s *StremThru) request(ctx context.Context, op, method, p string, body *requestBody, dst interface{}) error {
	endpoint := s.baseURL + "/v0/store" + p

	err := retry.Do(
		func() error {
			return s.do(ctx, method, endpoint, body, dst)
		},
		retry.Context(ctx),
		retry.Attempts(s.retryBudget+1),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			return !errors.As(err, &apiErr)
		}),
	)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.DebridRequestsTotal.WithLabelValues(constants.DebridStremThru, op, outcome).Inc()
	return err
}

func (s *StremThru) do(ctx context.Context, method, endpoint string, body *requestBody, dst interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("StremThru request error: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-StremThru-Store-Name", s.store)
	req.Header.Set("X-StremThru-Store-Authorization", "Bearer "+s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	s.logger.Debugf("[StremThru] %s %s", method, security.MaskURL(endpoint))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("StremThru request error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxJSONBody))
	if err != nil {
		return fmt.Errorf("StremThru request error: %w", err)
	}

	var env stremThruEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &httputil.StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("StremThru request error: %w", err)
	}
	if env.Error != nil {
		return env.Error
	}
	if resp.StatusCode >= 400 {
		return &httputil.StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}
	if dst == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, dst)
}

// CheckCached asks the gateway for the status of every candidate hash, at
// most CacheCheckBatchSize hashes per call. A failing batch is skipped unless
// the failure is an authorization problem, which is returned classified.
func (s *StremThru) CheckCached(ctx context.Context, candidates []*models.Candidate, valid ValidFiles) ([]*models.Candidate, error) {
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
	if len(hashes) == 0 {
		return []*models.Candidate{}, nil
	}

	sid := stremioIDFrom(ctx)
	cached := []*models.Candidate{}
	for _, group := range hashBatches(hashes, constants.CacheCheckBatchSize) {
		items, err := s.checkMagnets(ctx, group, sid)
		if err != nil {
			errType := AnalyzeError(err)
			if isAuthFailure(errType) {
				return cached, classify("check", err)
			}
			s.logger.Errorf("[StremThru] error checking cache status: %v", err)
			continue
		}

		for _, item := range items {
			h := strings.ToLower(item.Hash)
			c, ok := byHash[h]
			if !ok {
				continue
			}
			s.statuses.Set(h, item.Status)
			if item.Status != stremThruStatusCached && item.Status != stremThruStatusDownloaded {
				continue
			}
			files := make([]models.File, 0, len(item.Files))
			for _, f := range item.Files {
				files = append(files, models.File{Name: f.Name, Size: f.Size})
			}
			if len(files) > 0 && (valid == nil || valid(files)) {
				cached = append(cached, c)
			}
		}
	}
	return cached, nil
}

func (s *StremThru) checkMagnets(ctx context.Context, hashes []string, sid string) ([]stremThruCheckItem, error) {
	magnets := make([]string, len(hashes))
	for i, h := range hashes {
		magnets[i] = magnetFromHash(h)
	}
	query := url.Values{}
	query.Set("magnet", strings.Join(magnets, ","))
	query.Set("client_ip", s.clientIP)
	query.Set("sid", sid)

	var data struct {
		Items []stremThruCheckItem `json:"items"`
	}
	if err := s.request(ctx, "check", http.MethodGet, "/magnets/check?"+query.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return data.Items, nil
}

// Status returns the last known gateway status of a hash.
func (s *StremThru) Status(hash string) (string, bool) {
	return s.statuses.Get(strings.ToLower(hash))
}

func (s *StremThru) FilesFromHash(ctx context.Context, infoHash string) ([]File, error) {
	return s.FilesFromMagnet(ctx, magnetFromHash(infoHash), infoHash)
}

func (s *StremThru) FilesFromMagnet(ctx context.Context, magnet, infoHash string) ([]File, error) {
	body, err := jsonBody(map[string]string{"magnet": magnet})
	if err != nil {
		return nil, err
	}
	files, err := s.addAndList(ctx, body)
	if err != nil {
		s.logger.Errorf("[StremThru] error getting files from magnet %s: %v", infoHash, err)
		return nil, classify("files", err)
	}
	return files, nil
}

func (s *StremThru) FilesFromBuffer(ctx context.Context, buf []byte, infoHash string) ([]File, error) {
	body, err := torrentBody(buf)
	if err != nil {
		return nil, err
	}
	files, err := s.addAndList(ctx, body)
	if err != nil {
		s.logger.Errorf("[StremThru] error uploading torrent file %s: %v", infoHash, err)
		return nil, classify("upload", err)
	}
	return files, nil
}

// addAndList submits the content and reads the job status once. The gateway
// is not polled; a job that is not ready fails NOT_READY.
func (s *StremThru) addAndList(ctx context.Context, body *requestBody) ([]File, error) {
	var added stremThruMagnet
	if err := s.request(ctx, "add", http.MethodPost, "/magnets", body, &added); err != nil {
		return nil, err
	}
	if added.ID == "" {
		return nil, apperrors.NewNotReadyError("stremthru did not return a magnet id", nil)
	}

	magnet, err := s.magnet(ctx, string(added.ID))
	if err != nil {
		return nil, err
	}
	if !isReady(magnet.Status) {
		s.logger.Infof("[StremThru] magnet %s not ready, status: %s", added.ID, magnet.Status)
		return nil, apperrors.NewNotReadyError("magnet not ready: "+magnet.Status, nil)
	}
	if len(magnet.Files) == 0 {
		return nil, apperrors.NewNotReadyError("no files found in magnet", nil)
	}

	if magnet.Hash != "" {
		s.statuses.Set(strings.ToLower(magnet.Hash), magnet.Status)
	}

	files := make([]File, 0, len(magnet.Files))
	for _, f := range magnet.Files {
		files = append(files, File{
			Name: path.Base(strings.ReplaceAll(f.Name, "\\", "/")),
			Size: f.Size,
			ID:   fmt.Sprintf("%s:%d", added.ID, f.Index),
		})
	}
	return files, nil
}

func (s *StremThru) magnet(ctx context.Context, id string) (*stremThruMagnet, error) {
	var magnet stremThruMagnet
	if err := s.request(ctx, "status", http.MethodGet, "/magnets/"+url.PathEscape(id), nil, &magnet); err != nil {
		return nil, err
	}
	return &magnet, nil
}

// ResolveDownload turns a "<magnetId>:<index>" file id into a direct link.
func (s *StremThru) ResolveDownload(ctx context.Context, file File) (string, error) {
	link, err := s.resolve(ctx, file)
	if err != nil {
		s.logger.Errorf("[StremThru] error getting download link: %v", err)
		return "", classify("download", err)
	}
	return link, nil
}

func (s *StremThru) resolve(ctx context.Context, file File) (string, error) {
	magnetID, index, ok := strings.Cut(file.ID, ":")
	if !ok || magnetID == "" {
		return "", apperrors.NewNotReadyError("invalid file id "+file.ID, nil)
	}

	magnet, err := s.magnet(ctx, magnetID)
	if err != nil {
		return "", err
	}
	if !isReady(magnet.Status) {
		return "", apperrors.NewNotReadyError("file not ready: "+magnet.Status, nil)
	}

	var target *stremThruFile
	for i := range magnet.Files {
		if strconv.Itoa(magnet.Files[i].Index) == index {
			target = &magnet.Files[i]
			break
		}
	}
	if target == nil || target.Link == "" {
		return "", apperrors.NewNotReadyError("file not found or link not available", nil)
	}

	body, err := jsonBody(map[string]string{"link": target.Link})
	if err != nil {
		return "", err
	}
	var generated struct {
		Link string `json:"link"`
	}
	if err := s.request(ctx, "link", http.MethodPost, "/link/generate", body, &generated); err != nil {
		return "", err
	}
	if generated.Link == "" {
		return "", apperrors.NewNotReadyError("failed to generate download link", nil)
	}
	return generated.Link, nil
}

// Progress is not reported by the gateway.
func (s *StremThru) Progress(_ context.Context, candidates []*models.Candidate) (map[string]models.Progress, error) {
	return zeroProgress(candidates), nil
}

func isReady(status string) bool {
	return status == stremThruStatusDownloaded || status == stremThruStatusCached
}
