package debrid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/alldebrid"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(testLogger())

	tests := []struct {
		name      string
		cfg       config.UserConfig
		wantID    string
		wantStore string
		wantURL   string
	}{
		{
			name:   "alldebrid direct",
			cfg:    config.UserConfig{DebridID: "alldebrid", DebridAPIKey: "adKey12345"},
			wantID: constants.DebridAllDebrid,
		},
		{
			name:      "alldebrid through gateway",
			cfg:       config.UserConfig{DebridID: "alldebrid", DebridAPIKey: "k", UseStremThru: true, StremThruURL: "https://st.example"},
			wantID:    constants.DebridStremThru,
			wantStore: "alldebrid",
			wantURL:   "https://st.example",
		},
		{
			name:      "gateway only provider uses default url",
			cfg:       config.UserConfig{DebridID: "torbox", DebridAPIKey: "k"},
			wantID:    constants.DebridStremThru,
			wantStore: "torbox",
			wantURL:   constants.DefaultStremThruURL,
		},
		{
			name:      "realdebrid has no direct client",
			cfg:       config.UserConfig{DebridID: "realdebrid", DebridAPIKey: "k"},
			wantID:    constants.DebridStremThru,
			wantStore: "realdebrid",
			wantURL:   constants.DefaultStremThruURL,
		},
		{
			name:      "stremthru itself defaults to realdebrid",
			cfg:       config.UserConfig{DebridID: "stremthru", DebridAPIKey: "k"},
			wantID:    constants.DebridStremThru,
			wantStore: "realdebrid",
			wantURL:   constants.DefaultStremThruURL,
		},
		{
			name:      "stremthru with explicit store",
			cfg:       config.UserConfig{DebridID: "stremthru", DebridAPIKey: "k", StremThruStore: "premiumize", UseStremThru: true},
			wantID:    constants.DebridStremThru,
			wantStore: "premiumize",
			wantURL:   constants.DefaultStremThruURL,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(&tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID())
			if st, ok := p.(*StremThru); ok {
				assert.Equal(t, tt.wantStore, st.Store())
				assert.Equal(t, tt.wantURL, st.baseURL)
				assert.Same(t, r.StatusCache(), st.statuses)
			}
		})
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry(testLogger())
	r.StatusCache().Set("known", "cached")

	p, err := r.Resolve(&config.UserConfig{DebridID: "made-up-id"})
	assert.Nil(t, p)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeUnknownProvider))

	status, ok := r.StatusCache().Get("known")
	assert.True(t, ok)
	assert.Equal(t, "cached", status)
}

func TestRegistryRejectsMalformedAllDebridKey(t *testing.T) {
	r := NewRegistry(testLogger())

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"too short", "abc"},
		{"header injection", "adKey12345\r\nX-Evil: 1"},
		{"query injection", "adKey12345&agent=other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(&config.UserConfig{DebridID: "alldebrid", DebridAPIKey: tt.key})
			assert.Nil(t, p)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConfigurationInvalid))
		})
	}

	p, err := r.Resolve(&config.UserConfig{DebridID: "alldebrid", DebridAPIKey: "user:pass", UseStremThru: true})
	require.NoError(t, err)
	assert.Equal(t, constants.DebridStremThru, p.ID())
}

func TestRegistryList(t *testing.T) {
	list := NewRegistry(testLogger()).List()
	require.Len(t, list, 9)

	ids := make(map[string]string)
	for _, d := range list {
		ids[d.ID] = d.ShortName
	}
	assert.Equal(t, "AD", ids["alldebrid"])
	assert.Equal(t, "ST", ids["stremthru"])
	assert.Equal(t, "PP", ids["pikpak"])
}

func TestUnsupportedProvider(t *testing.T) {
	p := NewUnsupported(Descriptor{ID: "pikpak", Name: "PikPak", ShortName: "PP"}, "key")

	cached, err := p.CheckCached(context.Background(), []*models.Candidate{candidate("a")}, nil)
	require.NoError(t, err)
	assert.Empty(t, cached)

	progress, err := p.Progress(context.Background(), []*models.Candidate{candidate("a")})
	require.NoError(t, err)
	assert.Equal(t, models.Progress{}, progress["a"])

	_, err = p.FilesFromBuffer(context.Background(), nil, "a")
	assert.EqualError(t, err, "PikPak direct API not supported. Please use StremThru integration instead.")
	_, err = p.ResolveDownload(context.Background(), File{})
	assert.Error(t, err)
}

func TestAllDebridProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/magnet/upload":
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[
				{"id":1,"hash":"aaa","ready":true},
				{"id":2,"hash":"bbb","ready":false}]}}`)
		case "/magnet/files":
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[{"id":1,"ready":true,"links":[
				{"link":"https://alldebrid.com/f/1","filename":"Movie.mkv","size":1000}]}]}}`)
		case "/magnet/status":
			_, _ = io.WriteString(w, `{"status":"success","data":{"magnets":[{"id":2,"hash":"bbb","size":200,"downloaded":50,"downloadSpeed":10}]}}`)
		case "/link/unlock":
			assert.Equal(t, "https://alldebrid.com/f/1", r.URL.Query().Get("link"))
			_, _ = io.WriteString(w, `{"status":"success","data":{"link":"https://cdn.alldebrid.com/Movie.mkv"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := NewRegistry(testLogger(), WithAllDebridClient(alldebrid.NewClientWithURL(srv.URL, "test")))
	p, err := r.Resolve(&config.UserConfig{DebridID: "alldebrid", DebridAPIKey: "adKey12345"})
	require.NoError(t, err)
	assert.Equal(t, "AD", p.ShortName())

	ctx := context.Background()
	cached, err := p.CheckCached(ctx, []*models.Candidate{candidate("aaa"), candidate("bbb")}, nil)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "aaa", cached[0].Hash())

	progress, err := p.Progress(ctx, []*models.Candidate{candidate("aaa"), candidate("bbb")})
	require.NoError(t, err)
	assert.Equal(t, models.Progress{Percent: 25, Speed: 10}, progress["bbb"])
	assert.Equal(t, models.Progress{}, progress["aaa"])

	files, err := p.FilesFromHash(ctx, "aaa")
	require.NoError(t, err)
	require.Len(t, files, 1)

	link, err := p.ResolveDownload(ctx, files[0])
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.alldebrid.com/Movie.mkv", link)
}

func TestMapAllDebridError(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"AUTH_BAD_APIKEY", apperrors.ErrorTypeAccessDenied},
		{"AUTH_MISSING_APIKEY", apperrors.ErrorTypeAccessDenied},
		{"AUTH_USER_BANNED", apperrors.ErrorTypeAccessDenied},
		{"AUTH_BLOCKED", apperrors.ErrorTypeTwoFactorAuth},
		{"MUST_BE_PREMIUM", apperrors.ErrorTypeNotPremium},
		{"FREE_TRIAL_LIMIT_REACHED", apperrors.ErrorTypeNotPremium},
		{"MAGNET_PROCESSING", apperrors.ErrorTypeNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := mapAllDebridError(&alldebrid.APIError{Code: tt.code})
			assert.Equal(t, tt.want, apperrors.TypeOf(err))
		})
	}
}

func TestStatusCache(t *testing.T) {
	c := NewStatusCache()
	c.Set("h", "cached")
	c.Set("", "ignored")

	status, ok := c.Get("h")
	assert.True(t, ok)
	assert.Equal(t, "cached", status)
	_, ok = c.Get("")
	assert.False(t, ok)

	c.Set("h", "downloading")
	status, _ = c.Get("h")
	assert.Equal(t, "downloading", status, "later checks overwrite")
}

func TestStatusCacheExpires(t *testing.T) {
	c := newStatusCache(50 * time.Millisecond)
	c.Set("h", "queued")

	assert.Eventually(t, func() bool {
		_, ok := c.Get("h")
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
}
