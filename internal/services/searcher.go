// Package services holds the search, download and stream pipelines that sit
// between the HTTP handlers and the indexers, torrent infos and debrid
// providers.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/indexer"
	"github.com/amaumene/gostremiodebrid/internal/lock"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

const (
	noteMissingPasskey = "Uncached torrent require a passkey configuration"
	noteExpiredAPIKey  = "Unable to verify cache (+): Expired Debrid API Key."

	maxInfosTimeout = 30 * time.Second
)

// InfoFetcher returns the technical infos of a candidate.
type InfoFetcher interface {
	Get(ctx context.Context, c *models.Candidate) (*models.TorrentInfos, error)
}

// Searcher runs the search, filter and rank pipeline. At most one search per
// content id runs at a time; later callers wait and then search again.
type Searcher struct {
	cfg      *config.Config
	indexers []indexer.Indexer
	infos    InfoFetcher
	locks    *lock.Keyed
	logger   logger.Logger
}

func NewSearcher(cfg *config.Config, indexers []indexer.Indexer, infos InfoFetcher, log logger.Logger) *Searcher {
	return &Searcher{
		cfg:      cfg,
		indexers: indexers,
		infos:    infos,
		locks:    lock.NewKeyed("search"),
		logger:   log,
	}
}

// Indexers returns the configured indexers in search order.
func (s *Searcher) Indexers() []indexer.Indexer {
	return s.indexers
}

// GetTorrents returns the ranked candidates for meta. provider may be nil, in
// which case no cache annotation is done.
func (s *Searcher) GetTorrents(ctx context.Context, user *config.UserConfig, meta *models.MetaInfo, provider debrid.Provider) ([]*models.Candidate, error) {
	release, err := s.locks.Acquire(ctx, meta.StremioID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	s.logger.Infof("[Search] %s: searching torrents", meta.StremioID)

	selected, err := s.selectIndexers(user, meta)
	if err != nil {
		return nil, err
	}

	raw := s.searchAll(ctx, selected, user, meta)
	s.logger.Infof("[Search] %s: %d torrents found in %s", meta.StremioID, len(raw), time.Since(start).Round(time.Millisecond))

	var candidates []*models.Candidate
	if meta.Type == constants.TypeSeries {
		candidates = s.rankSeries(raw, user, meta)
	} else {
		candidates = s.rankMovies(raw, user)
	}

	s.logger.Infof("[Search] %s: %d torrents filtered, fetching infos", meta.StremioID, len(candidates))
	start = time.Now()
	candidates = s.attachInfos(ctx, candidates, user, meta)
	candidates = dedupByInfoHash(candidates)
	if len(candidates) > user.MaxTorrents {
		candidates = candidates[:user.MaxTorrents]
	}
	s.logger.Infof("[Search] %s: %d torrent infos found in %s", meta.StremioID, len(candidates), time.Since(start).Round(time.Millisecond))

	if len(candidates) == 0 {
		return nil, apperrors.NewNoTorrentInfosError(meta.Type, meta.StremioID)
	}

	if provider != nil {
		candidates = s.enrich(debrid.WithStremioID(ctx, meta.StremioID), candidates, user, meta, provider)
	}
	return candidates, nil
}

// selectIndexers prefers the user's indexers, then every indexer supporting
// the type, then every indexer.
func (s *Searcher) selectIndexers(user *config.UserConfig, meta *models.MetaInfo) ([]indexer.Indexer, error) {
	wantAll := false
	wanted := make(map[string]bool, len(user.Indexers))
	for _, id := range user.Indexers {
		if id == "all" {
			wantAll = true
		}
		wanted[id] = true
	}

	var available, chosen []indexer.Indexer
	for _, idx := range s.indexers {
		if !idx.Supports(meta.Type) {
			continue
		}
		available = append(available, idx)
		if wantAll || wanted[idx.ID()] {
			chosen = append(chosen, idx)
		}
	}

	switch {
	case len(chosen) > 0:
	case len(available) > 0:
		s.logger.Infof("[Search] %s: indexers %q not available, fallback to all %s indexers",
			meta.StremioID, strings.Join(user.Indexers, ", "), meta.Type)
		chosen = available
	case len(s.indexers) > 0:
		s.logger.Infof("[Search] %s: indexers %q or %s indexers not available, fallback to all indexers",
			meta.StremioID, strings.Join(user.Indexers, ", "), meta.Type)
		chosen = s.indexers
	default:
		return nil, apperrors.NewNoIndexerConfiguredError(meta.StremioID)
	}

	titles := make([]string, len(chosen))
	for i, idx := range chosen {
		titles[i] = idx.Title()
	}
	s.logger.Debugf("[Search] %s: %d indexers selected: %s", meta.StremioID, len(chosen), strings.Join(titles, ", "))
	return chosen, nil
}

// searchAll queries every indexer concurrently. A failing or slow indexer
// contributes nothing; results are merged in indexer order.
func (s *Searcher) searchAll(ctx context.Context, indexers []indexer.Indexer, user *config.UserConfig, meta *models.MetaInfo) []*models.Candidate {
	timeout := time.Duration(user.IndexerTimeoutSec) * time.Second
	results := make([][]*models.Candidate, len(indexers))

	var g errgroup.Group
	for i, idx := range indexers {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			var found []*models.Candidate
			var err error
			if meta.Type == constants.TypeSeries {
				found, err = idx.SearchSeries(ictx, meta)
			} else {
				found, err = idx.SearchMovies(ictx, meta)
			}
			if err != nil {
				s.logger.Warnf("[Search] %s: indexer %s failed: %v", meta.StremioID, idx.ID(), err)
				return nil
			}
			if ictx.Err() != nil {
				s.logger.Warnf("[Search] %s: indexer %s timed out", meta.StremioID, idx.ID())
				return nil
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var merged []*models.Candidate
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

func (s *Searcher) keep(c *models.Candidate, user *config.UserConfig, matcher *seasonMatcher) bool {
	if !user.AllowsQuality(c.Quality) {
		return false
	}
	if len(user.ExcludeKeywords) > 0 {
		words := parseWords(c.Name)
		for _, kw := range user.ExcludeKeywords {
			if containsWord(words, kw) {
				return false
			}
		}
	}
	if matcher != nil && !matcher.matchesSeason(c.Name) {
		return false
	}
	return true
}

func (s *Searcher) rankMovies(raw []*models.Candidate, user *config.UserConfig) []*models.Candidate {
	filtered := make([]*models.Candidate, 0, len(raw))
	for _, c := range raw {
		if s.keep(c, user, nil) {
			filtered = append(filtered, c)
		}
	}
	sortCandidates(filtered, bySeedersDesc)
	filtered = promote(filtered, languageFilter(user.PriotizeLanguages), languageCap(user.MaxTorrents))
	return truncate(filtered, user.MaxTorrents+2)
}

func (s *Searcher) rankSeries(raw []*models.Candidate, user *config.UserConfig, meta *models.MetaInfo) []*models.Candidate {
	matcher := newSeasonMatcher(meta.Season, meta.Episode)

	var filtered, packs []*models.Candidate
	isPack := make(map[*models.Candidate]bool)
	for _, c := range raw {
		if !s.keep(c, user, matcher) {
			continue
		}
		filtered = append(filtered, c)
		if matcher.isPack(c.Name) && !hasEpisodeToken(c.Name) {
			packs = append(packs, c)
			isPack[c] = true
		}
	}

	sortCandidates(filtered, bySeedersDesc)
	sortCandidates(packs, bySeedersDesc)
	filtered = promote(filtered, languageFilter(user.PriotizeLanguages), languageCap(user.MaxTorrents))

	gated := make([]*models.Candidate, 0, len(filtered))
	for _, c := range filtered {
		if matcher.passesEpisodeGate(c.Name) {
			gated = append(gated, c)
		}
	}
	gated = truncate(gated, user.MaxTorrents+2)

	if user.PriotizePackTorrents > 0 && len(packs) > 0 {
		hasPack := false
		for _, c := range gated {
			if isPack[c] {
				hasPack = true
				break
			}
		}
		if !hasPack {
			best := packs[:min(len(packs), user.PriotizePackTorrents)]
			keep := max(len(gated)-len(best), 0)
			gated = append(gated[:keep:keep], best...)
		}
	}
	return gated
}

// attachInfos fetches the technical infos with bounded parallelism. Failed
// candidates are dropped.
func (s *Searcher) attachInfos(ctx context.Context, candidates []*models.Candidate, user *config.UserConfig, meta *models.MetaInfo) []*models.Candidate {
	timeout := min(maxInfosTimeout, time.Duration(user.IndexerTimeoutSec)*time.Second)
	sem := semaphore.NewWeighted(constants.TorrentInfoConcurrency)
	ok := make([]bool, len(candidates))

	var wg sync.WaitGroup
	for i, c := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			infos, err := s.infos.Get(fctx, c)
			if err != nil {
				s.logger.Warnf("[Search] %s: failed getting torrent infos for %s from indexer %s: %v",
					meta.StremioID, c.ID, c.IndexerID, err)
				return
			}
			c.Infos = infos
			ok[i] = true
		}()
	}
	wg.Wait()

	out := make([]*models.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if ok[i] && c.Infos != nil {
			out = append(out, c)
		}
	}
	return out
}

func dedupByInfoHash(candidates []*models.Candidate) []*models.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]*models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		h := strings.ToLower(c.Hash())
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, c)
	}
	return out
}

// enrich annotates candidates with the provider's cache state and progress.
// Provider failures degrade the result instead of failing the search.
func (s *Searcher) enrich(ctx context.Context, candidates []*models.Candidate, user *config.UserConfig, meta *models.MetaInfo, provider debrid.Provider) []*models.Candidate {
	valid := func([]models.File) bool { return true }
	if meta.Type == constants.TypeSeries {
		valid = func(files []models.File) bool {
			return SearchEpisodeFile(fileNames(files), meta.Season, meta.Episode) >= 0
		}
	}

	cached, err := provider.CheckCached(ctx, candidates, valid)
	if err != nil {
		return s.providerFailed(candidates, meta, provider, err)
	}

	isCached := make(map[*models.Candidate]bool, len(cached))
	for _, c := range cached {
		c.Cached = true
		isCached[c] = true
	}

	var uncached []*models.Candidate
	for _, c := range candidates {
		if isCached[c] {
			continue
		}
		if meta.Type == constants.TypeSeries && c.Infos != nil && len(c.Infos.Files) > 0 &&
			!valid(c.Infos.Files) {
			continue
		}
		uncached = append(uncached, c)
	}

	if s.cfg.ReplacePasskeyEnabled() && !s.cfg.PasskeyMatches(user.Passkey) {
		for _, c := range uncached {
			if c.Infos != nil && c.Infos.Private {
				c.Disabled = true
				c.InfoText = noteMissingPasskey
			}
		}
	}

	s.logger.Infof("[Search] %s: %d cached, %d uncached on %s", meta.StremioID, len(cached), len(uncached), provider.ShortName())

	match := languageFilter(user.PriotizeLanguages)
	sortCandidates(cached, user.SortCached)
	sortCandidates(uncached, user.SortUncached)
	result := append(promote(cached, match, 0), promote(uncached, match, 0)...)

	progress, err := provider.Progress(ctx, result)
	if err != nil {
		return s.providerFailed(result, meta, provider, err)
	}
	for _, c := range result {
		if p, ok := progress[c.Hash()]; ok {
			c.Progress = &p
		}
	}
	return result
}

func (s *Searcher) providerFailed(candidates []*models.Candidate, meta *models.MetaInfo, provider debrid.Provider, err error) []*models.Candidate {
	s.logger.Warnf("[Search] %s: %s: %v", meta.StremioID, provider.ShortName(), err)
	if apperrors.Is(err, apperrors.ErrorTypeExpiredAPIKey) {
		for _, c := range candidates {
			c.Disabled = true
			c.InfoText = noteExpiredAPIKey
		}
	}
	return candidates
}

func truncate(candidates []*models.Candidate, n int) []*models.Candidate {
	if len(candidates) > n {
		return candidates[:n]
	}
	return candidates
}

func fileNames(files []models.File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
