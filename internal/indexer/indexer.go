// Package indexer queries torrent search sources and normalizes their results
// into candidates.
package indexer

import (
	"context"

	"github.com/amaumene/gostremiodebrid/internal/models"
)

// Indexer is one search source. Implementations must tolerate being cut
// short by the caller's context.
type Indexer interface {
	ID() string
	Title() string
	Supports(contentType string) bool
	SearchMovies(ctx context.Context, meta *models.MetaInfo) ([]*models.Candidate, error)
	SearchSeries(ctx context.Context, meta *models.MetaInfo) ([]*models.Candidate, error)
}

// Descriptor is the public description of an indexer.
type Descriptor struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Language string   `json:"language"`
	Private  bool     `json:"private"`
	Types    []string `json:"types"`
}

// Describe builds descriptors for the configure page.
func Describe(indexers []Indexer) []Descriptor {
	out := make([]Descriptor, 0, len(indexers))
	for _, idx := range indexers {
		d := Descriptor{ID: idx.ID(), Title: idx.Title()}
		if y, ok := idx.(*Yggflix); ok {
			d.Language = y.Language()
			d.Private = true
		}
		for _, t := range []string{"movie", "series"} {
			if idx.Supports(t) {
				d.Types = append(d.Types, t)
			}
		}
		out = append(out, d)
	}
	return out
}
