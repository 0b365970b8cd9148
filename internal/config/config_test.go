package config

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "https://yggflix.fr", cfg.Yggflix.URL)
	assert.Equal(t, 720*time.Hour, cfg.TorrentInfos.Retention)
	assert.Equal(t, []string{"indexers", "indexerTimeoutSec"}, cfg.ImmutableUserKeys)
	assert.False(t, cfg.ReplacePasskeyEnabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7000
yggflix:
  url: http://ygg.local
passkey:
  replace: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
defaults:
  max_torrents: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("GOSTREMIO_SERVER_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "http://ygg.local", cfg.Yggflix.URL)
	assert.Equal(t, 12, cfg.Defaults.MaxTorrents)
	assert.True(t, cfg.ReplacePasskeyEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no yggflix", func(c *Config) { c.Yggflix.URL = "" }, "yggflix.url"},
		{"bad pattern", func(c *Config) { c.Passkey.Pattern = "(" }, "passkey.pattern"},
		{"bad rate", func(c *Config) { c.RateLimit.Requests = 0 }, "rate_limit"},
		{"tmdb key", func(c *Config) { c.TMDB.APIKey = "0123456789abcdef0123456789abcdef" }, ""},
		{"malformed tmdb key", func(c *Config) { c.TMDB.APIKey = "key with spaces&x=1" }, "tmdb.api_key"},
		{"short tmdb key", func(c *Config) { c.TMDB.APIKey = "abc" }, "tmdb.api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestPasskeyMatches(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.PasskeyMatches("0123456789abcdef0123456789abcdef"))
	assert.False(t, cfg.PasskeyMatches("short"))
	assert.False(t, cfg.PasskeyMatches(""))
}

func encodeToken(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func TestParseUserConfig(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	token := encodeToken(t, map[string]interface{}{
		"debridId":          "torbox",
		"debridApiKey":      "key-123456",
		"qualities":         []int{1080},
		"excludeKeywords":   []string{" CAM ", ""},
		"maxTorrents":       5,
		"indexers":          []string{"other"},
		"indexerTimeoutSec": 1,
		"sortUncached":      [][]interface{}{{"size", false}},
		"ip":                "6.6.6.6",
	})

	uc, err := cfg.ParseUserConfig(token)
	require.NoError(t, err)

	assert.Equal(t, "torbox", uc.DebridID)
	assert.Equal(t, []int{1080}, uc.Qualities)
	assert.Equal(t, []string{"cam"}, uc.ExcludeKeywords)
	assert.Equal(t, 5, uc.MaxTorrents)
	assert.Equal(t, []string{"all"}, uc.Indexers, "immutable key keeps default")
	assert.Equal(t, 60, uc.IndexerTimeoutSec, "immutable key keeps default")
	assert.Equal(t, []SortKey{{"size", false}}, uc.SortUncached)
	assert.Equal(t, []SortKey{{"quality", true}, {"size", true}}, uc.SortCached)
	assert.Empty(t, uc.IP)
}

func TestParseUserConfigErrors(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("nope"))},
		{"wrong field type", encodeToken(t, map[string]interface{}{"maxTorrents": "ten"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cfg.ParseUserConfig(tt.token)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConfigurationInvalid))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	uc := cfg.DefaultUserConfig()
	uc.DebridID = "alldebrid"
	uc.IP = "1.1.1.1"

	token, err := uc.Encode()
	require.NoError(t, err)

	back, err := cfg.ParseUserConfig(token)
	require.NoError(t, err)
	assert.Equal(t, "alldebrid", back.DebridID)
	assert.Empty(t, back.IP, "client ip is never carried in the token")
}

func TestEncodeIsPathSafe(t *testing.T) {
	cfg := Default()
	uc := cfg.DefaultUserConfig()
	uc.DebridID = "stremthru"
	uc.StremThruURL = "https://st.example/?q=?????"

	data, err := json.Marshal(uc)
	require.NoError(t, err)
	require.Contains(t, base64.StdEncoding.EncodeToString(data), "/")

	token, err := uc.Encode()
	require.NoError(t, err)
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "+")

	back, err := cfg.ParseUserConfig(token)
	require.NoError(t, err)
	assert.Equal(t, uc.StremThruURL, back.StremThruURL)
}

func TestSortKeyJSON(t *testing.T) {
	var keys []SortKey
	require.NoError(t, json.Unmarshal([]byte(`[["seeders", true], ["size"]]`), &keys))
	assert.Equal(t, []SortKey{{"seeders", true}, {"size", false}}, keys)

	var bad SortKey
	assert.Error(t, json.Unmarshal([]byte(`[]`), &bad))
}

func TestAllowsQuality(t *testing.T) {
	uc := UserConfig{Qualities: []int{0, 1080}}
	assert.True(t, uc.AllowsQuality(1080))
	assert.True(t, uc.AllowsQuality(0))
	assert.False(t, uc.AllowsQuality(720))
}
