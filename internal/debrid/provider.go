// Package debrid normalizes debrid storage services behind one Provider
// contract. Services without a usable public API are reached through the
// StremThru gateway.
package debrid

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"github.com/amaumene/gostremiodebrid/internal/models"
)

// File is one file of a torrent as seen by a provider. ID is opaque and only
// meaningful to the provider that produced it.
type File struct {
	Name string
	Size int64
	ID   string
	Link string
}

// ValidFiles decides whether a cached file set is usable for the request,
// for example whether it contains the wanted episode.
type ValidFiles func(files []models.File) bool

// Provider is the capability set every debrid service exposes.
type Provider interface {
	ID() string
	Name() string
	ShortName() string

	// CheckCached returns the subset of candidates that are instantly
	// available. Services without cache checking return an empty slice.
	CheckCached(ctx context.Context, candidates []*models.Candidate, valid ValidFiles) ([]*models.Candidate, error)

	FilesFromMagnet(ctx context.Context, magnet, infoHash string) ([]File, error)
	FilesFromHash(ctx context.Context, infoHash string) ([]File, error)
	FilesFromBuffer(ctx context.Context, buf []byte, infoHash string) ([]File, error)

	ResolveDownload(ctx context.Context, file File) (string, error)

	// UserHash identifies the credential without exposing it.
	UserHash() string

	// Progress reports one entry per candidate hash, zero when unknown.
	Progress(ctx context.Context, candidates []*models.Candidate) (map[string]models.Progress, error)
}

// Descriptor is the public description of a registered provider.
type Descriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

type stremioIDKey struct{}

// WithStremioID attaches the requested content id, forwarded to gateways that
// accept it as a session hint.
func WithStremioID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, stremioIDKey{}, id)
}

func stremioIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(stremioIDKey{}).(string)
	return id
}

func magnetFromHash(hash string) string {
	return "magnet:?xt=urn:btih:" + hash
}

func userHash(apiKey string) string {
	sum := md5.Sum([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// ModelFiles drops the provider specific fields.
func ModelFiles(files []File) []models.File {
	out := make([]models.File, len(files))
	for i, f := range files {
		out[i] = models.File{Name: f.Name, Size: f.Size}
	}
	return out
}

func zeroProgress(candidates []*models.Candidate) map[string]models.Progress {
	progress := make(map[string]models.Progress, len(candidates))
	for _, c := range candidates {
		if h := c.Hash(); h != "" {
			progress[h] = models.Progress{}
		}
	}
	return progress
}

func hashBatches(hashes []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(hashes); start += size {
		end := start + size
		if end > len(hashes) {
			end = len(hashes)
		}
		batches = append(batches, hashes[start:end])
	}
	return batches
}
