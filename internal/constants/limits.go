// Package constants defines numerical limits and conversion factors.
package constants

// Limits and counts for various operations
const (
	// Concurrent technical-info fetches per search
	TorrentInfoConcurrency = 5

	// Hashes per gateway cache-check request
	CacheCheckBatchSize = 50

	// Share of maxTorrents reserved for preferred-language candidates
	LanguagePriorityRatio = 0.33

	// Largest .torrent body accepted from an indexer
	MaxTorrentFileBytes = 1 << 20
)
