// Package models defines the data structures shared between the search
// pipeline, the debrid providers and the HTTP layer.
package models

import "time"

// Candidate is a single torrent search result. Infos is attached once the
// technical metadata has been fetched; Cached, Disabled, InfoText and Progress
// are annotations set during provider enrichment.
type Candidate struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	IndexerID  string        `json:"indexerId"`
	ExternalID string        `json:"externalId"`
	Size       int64         `json:"size"`
	Seeders    int           `json:"seeders"`
	Peers      int           `json:"peers"`
	Type       string        `json:"type"`
	Quality    int           `json:"quality"`
	Languages  []string      `json:"languages"`
	Link       string        `json:"link,omitempty"`
	InfoHash   string        `json:"infoHash,omitempty"`
	MagnetURL  string        `json:"magnetUrl,omitempty"`
	Infos      *TorrentInfos `json:"infos,omitempty"`

	Cached   bool      `json:"cached"`
	Disabled bool      `json:"disabled"`
	InfoText string    `json:"infoText,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// Hash returns the info hash from the technical metadata when present.
func (c *Candidate) Hash() string {
	if c.Infos != nil && c.Infos.InfoHash != "" {
		return c.Infos.InfoHash
	}
	return c.InfoHash
}

// HasLanguage reports whether the candidate is tagged with one of values.
func (c *Candidate) HasLanguage(values ...string) bool {
	for _, l := range c.Languages {
		for _, v := range values {
			if l == v {
				return true
			}
		}
	}
	return false
}

// File is one entry of a torrent's file list.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// TorrentInfos is the technical metadata of a torrent, persisted by id.
type TorrentInfos struct {
	ID        string    `json:"id"`
	InfoHash  string    `json:"infoHash"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Files     []File    `json:"files"`
	Private   bool      `json:"private"`
	MagnetURL string    `json:"magnetUrl,omitempty"`
	IndexerID string    `json:"indexerId"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Progress is the download telemetry reported by a debrid provider.
type Progress struct {
	Percent int   `json:"percent"`
	Speed   int64 `json:"speed"`
}
