package constants

// Debrid provider identifiers
const (
	DebridAllDebrid  = "alldebrid"
	DebridRealDebrid = "realdebrid"
	DebridDebridLink = "debridlink"
	DebridPremiumize = "premiumize"
	DebridStremThru  = "stremthru"
	DebridPikPak     = "pikpak"
	DebridTorBox     = "torbox"
	DebridEasyDebrid = "easydebrid"
	DebridOffcloud   = "offcloud"

	DefaultStremThruURL   = "https://stremthru.13377001.xyz"
	DefaultStremThruStore = DebridRealDebrid
)

// Indexer identifiers
const (
	IndexerYggflix = "yggflix"
)

// GatewayOnlyProviders have no usable public API and are always reached
// through StremThru.
var GatewayOnlyProviders = []string{DebridPikPak, DebridTorBox, DebridEasyDebrid, DebridOffcloud}
