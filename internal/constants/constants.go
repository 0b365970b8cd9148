// Package constants defines application-wide constants and default values.
package constants

const (
	// Addon metadata
	AddonID          = "community.gostremiodebrid"
	AddonVersion     = "1.0.0"
	AddonName        = "GoStremioDebrid"
	AddonDescription = "Yggflix torrents resolved through debrid services and StremThru"

	// Default configuration values
	DefaultPort     = 4000
	DefaultLogLevel = "info"

	// Cache settings
	DefaultCacheSize = 5000

	// Rate limiting of outbound debrid calls
	AllDebridRateLimit = 10 // requests per second
	AllDebridRateBurst = 2  // burst capacity

	// Inbound rate limiting
	DefaultRateLimitWindowSec = 3600
	DefaultRateLimitRequests  = 150
)

// Content types understood by the stream route.
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

// Quality describes a resolution tier selectable by users.
type Quality struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Qualities lists the supported tiers. Value 0 stands for unknown resolution.
var Qualities = []Quality{
	{0, "Unknown"},
	{360, "360p"},
	{480, "480p"},
	{720, "720p"},
	{1080, "1080p"},
	{2160, "4K"},
}

// QualityLabel returns the display label for a tier, or "" when unknown.
func QualityLabel(value int) string {
	for _, q := range Qualities {
		if q.Value == value {
			return q.Label
		}
	}
	return ""
}

// Language describes a language tag and the emoji used to display it.
type Language struct {
	Value string `json:"value"`
	Emoji string `json:"emoji"`
	Label string `json:"label"`
}

var Languages = []Language{
	{"multi", "🌐", "Multi"},
	{"french", "🇫🇷", "French"},
	{"english", "🇬🇧", "English"},
}

// LanguageByValue returns the language with the given value.
func LanguageByValue(value string) (Language, bool) {
	for _, l := range Languages {
		if l.Value == value {
			return l, true
		}
	}
	return Language{}, false
}

// SortFields are the candidate fields users can sort on.
var SortFields = []string{"seeders", "size", "quality"}
