package debrid

import (
	"context"
	"fmt"

	"github.com/amaumene/gostremiodebrid/internal/models"
)

// Unsupported stands for a service without a usable public API. The registry
// always routes such services through the gateway.
type Unsupported struct {
	id        string
	name      string
	shortName string
	apiKey    string
}

func NewUnsupported(d Descriptor, apiKey string) *Unsupported {
	return &Unsupported{id: d.ID, name: d.Name, shortName: d.ShortName, apiKey: apiKey}
}

func (u *Unsupported) ID() string        { return u.id }
func (u *Unsupported) Name() string      { return u.name }
func (u *Unsupported) ShortName() string { return u.shortName }
func (u *Unsupported) UserHash() string  { return userHash(u.apiKey) }

func (u *Unsupported) unsupported() error {
	return fmt.Errorf("%s direct API not supported. Please use StremThru integration instead.", u.name)
}

func (u *Unsupported) CheckCached(context.Context, []*models.Candidate, ValidFiles) ([]*models.Candidate, error) {
	return []*models.Candidate{}, nil
}

func (u *Unsupported) Progress(_ context.Context, candidates []*models.Candidate) (map[string]models.Progress, error) {
	return zeroProgress(candidates), nil
}

func (u *Unsupported) FilesFromMagnet(context.Context, string, string) ([]File, error) {
	return nil, u.unsupported()
}

func (u *Unsupported) FilesFromHash(ctx context.Context, infoHash string) ([]File, error) {
	return u.FilesFromMagnet(ctx, magnetFromHash(infoHash), infoHash)
}

func (u *Unsupported) FilesFromBuffer(ctx context.Context, _ []byte, infoHash string) ([]File, error) {
	return u.FilesFromHash(ctx, infoHash)
}

func (u *Unsupported) ResolveDownload(context.Context, File) (string, error) {
	return "", u.unsupported()
}
