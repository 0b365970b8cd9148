// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/pkg/security"
	"github.com/spf13/viper"
)

// Config holds the process-wide configuration.
// Priority: environment variables > config file > defaults.
type Config struct {
	Server            ServerConfig       `mapstructure:"server"`
	Log               LogConfig          `mapstructure:"log"`
	DataDir           string             `mapstructure:"data_dir"`
	Cache             CacheConfig        `mapstructure:"cache"`
	Redis             RedisConfig        `mapstructure:"redis"`
	TMDB              TMDBConfig         `mapstructure:"tmdb"`
	Yggflix           YggflixConfig      `mapstructure:"yggflix"`
	Passkey           PasskeyConfig      `mapstructure:"passkey"`
	RateLimit         RateLimitConfig    `mapstructure:"rate_limit"`
	Addon             AddonConfig        `mapstructure:"addon"`
	TorrentInfos      TorrentInfosConfig `mapstructure:"torrent_infos"`
	Defaults          DefaultsConfig     `mapstructure:"defaults"`
	ImmutableUserKeys []string           `mapstructure:"immutable_user_keys"`

	passkeyPattern *regexp.Regexp
}

type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	PublicURL  string `mapstructure:"public_url"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
	// StaticDir holds the videos/ served on download errors.
	StaticDir string `mapstructure:"static_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// RedisConfig selects the shared cache store. An empty URL keeps everything
// in process memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type TMDBConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type YggflixConfig struct {
	URL     string `mapstructure:"url"`
	Passkey string `mapstructure:"passkey"`
}

// PasskeyConfig drives rewriting of the tracker passkey embedded in
// downloaded .torrent files. Replace is the passkey to substitute; rewriting
// is disabled when it is empty.
type PasskeyConfig struct {
	Replace string `mapstructure:"replace"`
	Pattern string `mapstructure:"pattern"`
	InfoURL string `mapstructure:"info_url"`
}

type RateLimitConfig struct {
	WindowSec int `mapstructure:"window_sec"`
	Requests  int `mapstructure:"requests"`
}

type AddonConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

type TorrentInfosConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

// DefaultsConfig holds the default user settings that operators may tune.
type DefaultsConfig struct {
	Qualities            []int    `mapstructure:"qualities"`
	ExcludeKeywords      []string `mapstructure:"exclude_keywords"`
	MaxTorrents          int      `mapstructure:"max_torrents"`
	PriotizePackTorrents int      `mapstructure:"priotize_pack_torrents"`
	PriotizeLanguages    []string `mapstructure:"priotize_languages"`
	Indexers             []string `mapstructure:"indexers"`
	IndexerTimeoutSec    int      `mapstructure:"indexer_timeout_sec"`
}

// Load reads configuration from an optional file and environment variables.
// Variables use the GOSTREMIO_ prefix, e.g. GOSTREMIO_SERVER_PORT.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./data")
	}

	v.SetEnvPrefix("GOSTREMIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", constants.DefaultPort)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("log.level", constants.DefaultLogLevel)
	v.SetDefault("log.format", "console")
	v.SetDefault("log.path", "")

	v.SetDefault("data_dir", "./data")
	v.SetDefault("cache.size", constants.DefaultCacheSize)
	v.SetDefault("redis.url", "")

	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")

	v.SetDefault("yggflix.url", "https://yggflix.fr")
	v.SetDefault("yggflix.passkey", "")

	v.SetDefault("passkey.replace", "")
	v.SetDefault("passkey.pattern", `^[a-zA-Z0-9]{32}$`)
	v.SetDefault("passkey.info_url", "")

	v.SetDefault("rate_limit.window_sec", constants.DefaultRateLimitWindowSec)
	v.SetDefault("rate_limit.requests", constants.DefaultRateLimitRequests)

	v.SetDefault("addon.id", constants.AddonID)
	v.SetDefault("addon.name", constants.AddonName)
	v.SetDefault("addon.description", constants.AddonDescription)

	v.SetDefault("torrent_infos.retention", "720h")

	d := Default().Defaults
	v.SetDefault("defaults.qualities", d.Qualities)
	v.SetDefault("defaults.exclude_keywords", d.ExcludeKeywords)
	v.SetDefault("defaults.max_torrents", d.MaxTorrents)
	v.SetDefault("defaults.priotize_pack_torrents", d.PriotizePackTorrents)
	v.SetDefault("defaults.priotize_languages", d.PriotizeLanguages)
	v.SetDefault("defaults.indexers", d.Indexers)
	v.SetDefault("defaults.indexer_timeout_sec", d.IndexerTimeoutSec)

	v.SetDefault("immutable_user_keys", Default().ImmutableUserKeys)
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: constants.DefaultPort},
		Log:     LogConfig{Level: constants.DefaultLogLevel, Format: "console"},
		DataDir: "./data",
		Cache:   CacheConfig{Size: constants.DefaultCacheSize},
		TMDB:    TMDBConfig{BaseURL: "https://api.themoviedb.org/3"},
		Yggflix: YggflixConfig{URL: "https://yggflix.fr"},
		Passkey: PasskeyConfig{Pattern: `^[a-zA-Z0-9]{32}$`},
		RateLimit: RateLimitConfig{
			WindowSec: constants.DefaultRateLimitWindowSec,
			Requests:  constants.DefaultRateLimitRequests,
		},
		Addon: AddonConfig{
			ID:          constants.AddonID,
			Name:        constants.AddonName,
			Description: constants.AddonDescription,
		},
		TorrentInfos: TorrentInfosConfig{Retention: 30 * 24 * time.Hour},
		Defaults: DefaultsConfig{
			Qualities:            []int{0, 720, 1080, 2160},
			ExcludeKeywords:      []string{},
			MaxTorrents:          8,
			PriotizePackTorrents: 2,
			PriotizeLanguages:    []string{},
			Indexers:             []string{"all"},
			IndexerTimeoutSec:    60,
		},
		ImmutableUserKeys: []string{"indexers", "indexerTimeoutSec"},
	}
}

// Validate checks the configuration and compiles derived values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Yggflix.URL == "" {
		return fmt.Errorf("yggflix.url is required")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.WindowSec <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window_sec must be positive")
	}
	if c.Defaults.MaxTorrents <= 0 {
		return fmt.Errorf("defaults.max_torrents must be positive")
	}
	if c.Defaults.IndexerTimeoutSec <= 0 {
		return fmt.Errorf("defaults.indexer_timeout_sec must be positive")
	}
	if c.TMDB.APIKey != "" && !security.NewAPIKeyValidator().ValidateAPIKey(c.TMDB.APIKey) {
		return fmt.Errorf("tmdb.api_key is malformed")
	}
	re, err := regexp.Compile(c.Passkey.Pattern)
	if err != nil {
		return fmt.Errorf("passkey.pattern: %w", err)
	}
	c.passkeyPattern = re
	return nil
}

// ReplacePasskeyEnabled reports whether .torrent passkeys are rewritten.
func (c *Config) ReplacePasskeyEnabled() bool {
	return c.Passkey.Replace != ""
}

// PasskeyMatches reports whether a user passkey satisfies the configured pattern.
func (c *Config) PasskeyMatches(passkey string) bool {
	if passkey == "" {
		return false
	}
	re := c.passkeyPattern
	if re == nil {
		re = regexp.MustCompile(c.Passkey.Pattern)
	}
	return re.MatchString(passkey)
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Window returns the inbound rate limit window.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSec) * time.Second
}
