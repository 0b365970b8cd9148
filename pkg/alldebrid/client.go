package alldebrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/gostremiodebrid/pkg/httputil"
)

const defaultBaseURL = "https://api.alldebrid.com/v4"

type Client struct {
	httpClient *http.Client
	baseURL    string
	agent      string
}

func NewClient(agent string) *Client {
	return NewClientWithURL(defaultBaseURL, agent)
}

// NewClientWithURL targets another API root, mostly for tests.
func NewClientWithURL(baseURL, agent string) *Client {
	return &Client{
		httpClient: httputil.NewHTTPClient(60 * time.Second),
		baseURL:    strings.TrimRight(baseURL, "/"),
		agent:      agent,
	}
}

// APIError is the error object AllDebrid returns with status "error".
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AllDebrid API error: %s - %s", e.Code, e.Message)
}

type Magnet struct {
	ID    int64     `json:"id"`
	Hash  string    `json:"hash"`
	Name  string    `json:"name"`
	Size  int64     `json:"size"`
	Ready bool      `json:"ready"`
	Error *APIError `json:"error,omitempty"`
}

// MagnetUploadResponse represents the response from magnet upload endpoints
type MagnetUploadResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets []Magnet `json:"magnets"`
		Files   []Magnet `json:"files"`
	} `json:"data"`
	Error *APIError `json:"error,omitempty"`
}

// Uploaded returns the magnets regardless of which upload endpoint answered.
func (r *MagnetUploadResponse) Uploaded() []Magnet {
	if len(r.Data.Magnets) > 0 {
		return r.Data.Magnets
	}
	return r.Data.Files
}

type MagnetStatus struct {
	ID            int64  `json:"id"`
	Hash          string `json:"hash"`
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	Status        string `json:"status"`
	StatusCode    int    `json:"statusCode"`
	Downloaded    int64  `json:"downloaded"`
	DownloadSpeed int64  `json:"downloadSpeed"`
}

type MagnetStatusResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets []MagnetStatus `json:"magnets"`
	} `json:"data"`
	Error *APIError `json:"error,omitempty"`
}

// MagnetFilesResponse represents the response from magnet files endpoint
type MagnetFilesResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets []struct {
			ID    int64  `json:"id"`
			Hash  string `json:"hash"`
			Ready bool   `json:"ready"`
			Links []struct {
				Link     string `json:"link"`
				Filename string `json:"filename"`
				Size     int64  `json:"size"`
			} `json:"links"`
		} `json:"magnets"`
	} `json:"data"`
	Error *APIError `json:"error,omitempty"`
}

// LinkUnlockResponse represents the response from link unlock endpoint
type LinkUnlockResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link     string `json:"link"`
		Filename string `json:"filename"`
		Filesize int64  `json:"filesize"`
	} `json:"data"`
	Error *APIError `json:"error,omitempty"`
}

func (c *Client) UploadMagnets(ctx context.Context, apiKey string, magnetURLs []string) (*MagnetUploadResponse, error) {
	form := url.Values{}
	form.Set("agent", c.agent)
	for _, m := range magnetURLs {
		form.Add("magnets[]", m)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/magnet/upload", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result MagnetUploadResponse
	if err := c.do(req, apiKey, &result); err != nil {
		return nil, err
	}
	return &result, checkStatus(result.Status, result.Error)
}

// UploadFile sends a raw .torrent file.
func (c *Client) UploadFile(ctx context.Context, apiKey string, data []byte) (*MagnetUploadResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("files[]", "file.torrent")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/magnet/upload/file?" + url.Values{"agent": {c.agent}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result MagnetUploadResponse
	if err := c.do(req, apiKey, &result); err != nil {
		return nil, err
	}
	return &result, checkStatus(result.Status, result.Error)
}

// MagnetStatuses lists every magnet of the account.
func (c *Client) MagnetStatuses(ctx context.Context, apiKey string) (*MagnetStatusResponse, error) {
	var result MagnetStatusResponse
	if err := c.get(ctx, apiKey, "/magnet/status", nil, &result); err != nil {
		return nil, err
	}
	return &result, checkStatus(result.Status, result.Error)
}

func (c *Client) GetMagnetFiles(ctx context.Context, apiKey string, magnetID int64) (*MagnetFilesResponse, error) {
	params := url.Values{}
	params.Set("id[]", fmt.Sprint(magnetID))

	var result MagnetFilesResponse
	if err := c.get(ctx, apiKey, "/magnet/files", params, &result); err != nil {
		return nil, err
	}
	return &result, checkStatus(result.Status, result.Error)
}

func (c *Client) UnlockLink(ctx context.Context, apiKey, link string) (*LinkUnlockResponse, error) {
	var result LinkUnlockResponse
	if err := c.get(ctx, apiKey, "/link/unlock", url.Values{"link": {link}}, &result); err != nil {
		return nil, err
	}
	return &result, checkStatus(result.Status, result.Error)
}

func (c *Client) get(ctx context.Context, apiKey, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("agent", c.agent)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, apiKey, result)
}

func (c *Client) do(req *http.Request, apiKey string, result interface{}) error {
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return c.decodeResponse(resp, result)
}

func (c *Client) decodeResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxJSONBody))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(status string, apiErr *APIError) error {
	if status == "success" {
		return nil
	}
	if apiErr != nil {
		return apiErr
	}
	return &APIError{Code: "UNKNOWN", Message: "status " + status}
}
