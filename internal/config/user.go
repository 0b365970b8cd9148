package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
)

// SortKey orders candidates on one field. It is encoded as [field, desc].
type SortKey struct {
	Field string
	Desc  bool
}

func (s SortKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{s.Field, s.Desc})
}

func (s *SortKey) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 || len(raw) > 2 {
		return fmt.Errorf("sort key must have one or two elements")
	}
	if err := json.Unmarshal(raw[0], &s.Field); err != nil {
		return err
	}
	s.Desc = false
	if len(raw) == 2 {
		return json.Unmarshal(raw[1], &s.Desc)
	}
	return nil
}

// UserConfig holds the per-request settings decoded from the addon URL.
type UserConfig struct {
	DebridID              string    `json:"debridId"`
	DebridAPIKey          string    `json:"debridApiKey"`
	UseStremThru          bool      `json:"useStremThru"`
	StremThruURL          string    `json:"stremthruUrl,omitempty"`
	StremThruStore        string    `json:"stremthruStore,omitempty"`
	Qualities             []int     `json:"qualities"`
	ExcludeKeywords       []string  `json:"excludeKeywords"`
	MaxTorrents           int       `json:"maxTorrents"`
	SortCached            []SortKey `json:"sortCached"`
	SortUncached          []SortKey `json:"sortUncached"`
	PriotizePackTorrents  int       `json:"priotizePackTorrents"`
	PriotizeLanguages     []string  `json:"priotizeLanguages"`
	Indexers              []string  `json:"indexers"`
	IndexerTimeoutSec     int       `json:"indexerTimeoutSec"`
	Passkey               string    `json:"passkey,omitempty"`
	ForceCacheNextEpisode bool      `json:"forceCacheNextEpisode"`

	// IP is the client address, filled in by the HTTP layer.
	IP string `json:"-"`
}

// DefaultUserConfig builds the defaults every request is merged over.
func (c *Config) DefaultUserConfig() UserConfig {
	d := c.Defaults
	return UserConfig{
		Qualities:            append([]int(nil), d.Qualities...),
		ExcludeKeywords:      append([]string{}, d.ExcludeKeywords...),
		MaxTorrents:          d.MaxTorrents,
		SortCached:           []SortKey{{"quality", true}, {"size", true}},
		SortUncached:         []SortKey{{"seeders", true}},
		PriotizePackTorrents: d.PriotizePackTorrents,
		PriotizeLanguages:    append([]string{}, d.PriotizeLanguages...),
		Indexers:             append([]string{}, d.Indexers...),
		IndexerTimeoutSec:    d.IndexerTimeoutSec,
	}
}

// DecodeToken decodes a base64 JSON user configuration into its raw keys.
func DecodeToken(token string) (map[string]json.RawMessage, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewConfigurationError("configuration missing in URL", nil)
	}

	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err = enc.DecodeString(token); err == nil {
			break
		}
	}
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid configuration in URL", err)
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewConfigurationError("failed to parse configuration", err)
	}
	return raw, nil
}

// MergeUserConfig applies the caller's keys over the defaults. Immutable
// keys are dropped from the caller's input first, so they always keep the
// default value.
func (c *Config) MergeUserConfig(raw map[string]json.RawMessage) (*UserConfig, error) {
	merged := c.DefaultUserConfig()

	filtered := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		filtered[k] = v
	}
	for _, k := range c.ImmutableUserKeys {
		delete(filtered, k)
	}
	delete(filtered, "ip")

	data, err := json.Marshal(filtered)
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to encode configuration", err)
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, apperrors.NewConfigurationError("failed to apply configuration", err)
	}

	defaults := c.DefaultUserConfig()
	if merged.MaxTorrents <= 0 {
		merged.MaxTorrents = defaults.MaxTorrents
	}
	if merged.IndexerTimeoutSec <= 0 {
		merged.IndexerTimeoutSec = defaults.IndexerTimeoutSec
	}
	merged.PriotizeLanguages = nonEmpty(merged.PriotizeLanguages)
	merged.ExcludeKeywords = lowerNonEmpty(merged.ExcludeKeywords)
	return &merged, nil
}

// ParseUserConfig decodes a URL token and merges it over the defaults.
func (c *Config) ParseUserConfig(token string) (*UserConfig, error) {
	raw, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}
	return c.MergeUserConfig(raw)
}

// Encode returns the URL-safe base64 JSON token for the configuration. The
// token is a single path segment so it must never contain '/'.
func (u *UserConfig) Encode() (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// AllowsQuality reports whether a quality tier is in the allow-list.
func (u *UserConfig) AllowsQuality(q int) bool {
	for _, allowed := range u.Qualities {
		if allowed == q {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lowerNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
