// Package constants defines timeout values and retry limits used throughout the application.
package constants

import "time"

// Timeout constants for various operations
const (
	// Yggflix API calls
	IndexerHTTPTimeout = 10 * time.Second

	// Upper bound for a single technical-info fetch
	TorrentInfoMaxTimeout = 30 * time.Second

	// Gateway status memo validity
	StatusCacheTTL = 5 * time.Minute

	// Resolved download links
	DownloadCacheTTL = time.Hour

	// Indexer result memo
	IndexerCacheTTL      = 36 * time.Hour
	IndexerEmptyCacheTTL = time.Minute

	// Metadata memo
	MetaCacheTTL = 24 * time.Hour

	// Gateway request retries
	GatewayRetryBudget = 0
)
