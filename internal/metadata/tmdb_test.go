package metadata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostremiodebrid/internal/cache"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

func newTMDBServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, testAPIKey, r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/find/tt0133093":
			assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))
			_, _ = io.WriteString(w, `{"movie_results":[{"id":603,"title":"Matrix","release_date":"1999-03-31"}],"tv_results":[]}`)
		case "/find/tt0944947":
			_, _ = io.WriteString(w, `{"movie_results":[],"tv_results":[{"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17"}]}`)
		case "/tv/1399":
			_, _ = io.WriteString(w, `{"id":1399,"seasons":[
				{"season_number":0,"episode_count":5},
				{"season_number":1,"episode_count":2},
				{"season_number":2,"episode_count":1}
			]}`)
		default:
			_, _ = io.WriteString(w, `{"movie_results":[],"tv_results":[]}`)
		}
	}))
}

func newTestTMDB(url string) *TMDB {
	return NewTMDB(url, testAPIKey, cache.NewMemory(10), logger.NewFromWriter(io.Discard, "error", nil))
}

func TestMovieMeta(t *testing.T) {
	var calls int32
	srv := newTMDBServer(t, &calls)
	defer srv.Close()

	tmdb := newTestTMDB(srv.URL)
	meta, err := tmdb.Meta(context.Background(), "movie", "tt0133093")
	require.NoError(t, err)
	assert.Equal(t, 603, meta.TMDBID)
	assert.Equal(t, "Matrix", meta.Name)
	assert.Equal(t, 1999, meta.Year)
	assert.Equal(t, "movie", meta.Type)
	assert.Equal(t, "tt0133093", meta.StremioID)

	_, err = tmdb.MovieMeta(context.Background(), "tt0133093")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEpisodeMeta(t *testing.T) {
	var calls int32
	srv := newTMDBServer(t, &calls)
	defer srv.Close()

	tmdb := newTestTMDB(srv.URL)
	meta, err := tmdb.Meta(context.Background(), "series", "tt0944947:1:2")
	require.NoError(t, err)
	assert.Equal(t, 1399, meta.TMDBID)
	assert.Equal(t, "series", meta.Type)
	assert.Equal(t, 1, meta.Season)
	assert.Equal(t, 2, meta.Episode)
	assert.Equal(t, "tt0944947:1:2", meta.StremioID)
	assert.Equal(t, []models.Episode{{Season: 1, Episode: 1}, {Season: 1, Episode: 2}, {Season: 2, Episode: 1}}, meta.Episodes)

	next, ok := meta.NextEpisode()
	require.True(t, ok)
	assert.Equal(t, models.Episode{Season: 2, Episode: 1}, next)

	other, err := tmdb.EpisodeMeta(context.Background(), "tt0944947", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "tt0944947:2:1", other.StremioID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "series details are cached")
}

func TestMetaErrors(t *testing.T) {
	var calls int32
	srv := newTMDBServer(t, &calls)
	defer srv.Close()
	tmdb := newTestTMDB(srv.URL)

	tests := []struct {
		name        string
		contentType string
		id          string
		errType     string
	}{
		{"unsupported type", "channel", "tt0133093", apperrors.ErrorTypeUnsupportedType},
		{"invalid id", "movie", "kitsu:1", apperrors.ErrorTypeInvalidID},
		{"not found", "movie", "tt404", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tmdb.Meta(context.Background(), tt.contentType, tt.id)
			require.Error(t, err)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
		})
	}

	noKey := NewTMDB(srv.URL, "", cache.NewMemory(1), logger.NewFromWriter(io.Discard, "error", nil))
	_, err := noKey.MovieMeta(context.Background(), "tt0133093")
	assert.ErrorContains(t, err, "not configured")
}

func TestParseStremioID(t *testing.T) {
	tests := []struct {
		in      string
		id      string
		season  int
		episode int
	}{
		{"tt123", "tt123", 0, 0},
		{"tt123:2:3", "tt123", 2, 3},
		{"tt123:x:3", "tt123", 0, 3},
	}
	for _, tt := range tests {
		id, s, e := ParseStremioID(tt.in)
		assert.Equal(t, tt.id, id)
		assert.Equal(t, tt.season, s)
		assert.Equal(t, tt.episode, e)
	}
}
