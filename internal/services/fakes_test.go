package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.NewFromWriter(io.Discard, "error", nil)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	return cfg
}

func testUser(cfg *config.Config) *config.UserConfig {
	u := cfg.DefaultUserConfig()
	return &u
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// fakeIndexer returns fresh copies of its candidates on every search.
type fakeIndexer struct {
	id         string
	types      []string
	candidates []models.Candidate
	err        error
	delay      time.Duration

	calls     int32
	active    int32
	maxActive int32
}

func (f *fakeIndexer) ID() string    { return f.id }
func (f *fakeIndexer) Title() string { return strings.ToUpper(f.id) }

func (f *fakeIndexer) Supports(contentType string) bool {
	for _, t := range f.types {
		if t == contentType {
			return true
		}
	}
	return false
}

func (f *fakeIndexer) search(ctx context.Context) ([]*models.Candidate, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxActive, m, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Candidate, len(f.candidates))
	for i := range f.candidates {
		c := f.candidates[i]
		c.IndexerID = f.id
		out[i] = &c
	}
	return out, nil
}

func (f *fakeIndexer) SearchMovies(ctx context.Context, _ *models.MetaInfo) ([]*models.Candidate, error) {
	return f.search(ctx)
}

func (f *fakeIndexer) SearchSeries(ctx context.Context, _ *models.MetaInfo) ([]*models.Candidate, error) {
	return f.search(ctx)
}

// fakeInfos derives infos from the candidate id unless configured otherwise.
type fakeInfos struct {
	mu      sync.Mutex
	hashes  map[string]string
	files   map[string][]models.File
	private map[string]bool
	fail    map[string]bool
}

func newFakeInfos() *fakeInfos {
	return &fakeInfos{
		hashes:  map[string]string{},
		files:   map[string][]models.File{},
		private: map[string]bool{},
		fail:    map[string]bool{},
	}
}

func (f *fakeInfos) Get(_ context.Context, c *models.Candidate) (*models.TorrentInfos, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[c.ID] {
		return nil, context.DeadlineExceeded
	}
	hash := f.hashes[c.ID]
	if hash == "" {
		hash = hashOf(c.ID)
	}
	return &models.TorrentInfos{
		ID:       c.ID,
		InfoHash: hash,
		Name:     c.Name,
		Files:    f.files[c.ID],
		Private:  f.private[c.ID],
	}, nil
}

// fakeProvider records calls and serves canned answers.
type fakeProvider struct {
	mu sync.Mutex

	cachedHashes map[string]bool
	cacheErr     error
	progress     map[string]models.Progress
	files        []debrid.File
	filesErr     error

	magnetCalls  int
	hashCalls    int
	bufferCalls  int
	resolveCalls int
	lastBuffer   []byte
}

func (p *fakeProvider) ID() string        { return "fake" }
func (p *fakeProvider) Name() string      { return "Fake" }
func (p *fakeProvider) ShortName() string { return "FK" }
func (p *fakeProvider) UserHash() string  { return "userhash" }

func (p *fakeProvider) CheckCached(_ context.Context, candidates []*models.Candidate, valid debrid.ValidFiles) ([]*models.Candidate, error) {
	if p.cacheErr != nil {
		return nil, p.cacheErr
	}
	var out []*models.Candidate
	for _, c := range candidates {
		if p.cachedHashes[c.Hash()] && valid(c.Infos.Files) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *fakeProvider) FilesFromMagnet(context.Context, string, string) ([]debrid.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.magnetCalls++
	return p.files, p.filesErr
}

func (p *fakeProvider) FilesFromHash(context.Context, string) ([]debrid.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hashCalls++
	return p.files, p.filesErr
}

func (p *fakeProvider) FilesFromBuffer(_ context.Context, buf []byte, _ string) ([]debrid.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bufferCalls++
	p.lastBuffer = buf
	return p.files, p.filesErr
}

func (p *fakeProvider) ResolveDownload(_ context.Context, f debrid.File) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolveCalls++
	return "https://cdn.example/" + f.ID, nil
}

func (p *fakeProvider) Progress(context.Context, []*models.Candidate) (map[string]models.Progress, error) {
	return p.progress, nil
}

func atomicCalls(f *fakeIndexer) int32 {
	return atomic.LoadInt32(&f.calls)
}
