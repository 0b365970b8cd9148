package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	"github.com/amaumene/gostremiodebrid/internal/metadata"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

const mediaInfoTTL = time.Hour

var indexerDisplayNames = map[string]string{
	"yggflix":    "YGG-API",
	"yggtorrent": "YGG-API",
}

// ProviderResolver picks the debrid provider of a user configuration.
type ProviderResolver interface {
	Resolve(u *config.UserConfig) (debrid.Provider, error)
}

// Streamer turns search results into Stremio streams whose URLs point back at
// the download route.
type Streamer struct {
	providers ProviderResolver
	meta      metadata.Resolver
	searcher  *Searcher
	next      *NextEpisode
	media     *MediaInfoExtractor
	logger    logger.Logger
}

func NewStreamer(providers ProviderResolver, meta metadata.Resolver, searcher *Searcher, next *NextEpisode, log logger.Logger) *Streamer {
	return &Streamer{
		providers: providers,
		meta:      meta,
		searcher:  searcher,
		next:      next,
		media:     NewMediaInfoExtractor(mediaInfoTTL),
		logger:    log,
	}
}

// Provider resolves the user's provider. A configuration without provider
// searches without cache annotations.
func (s *Streamer) Provider(user *config.UserConfig) (debrid.Provider, error) {
	if user.DebridID == "" {
		return nil, nil
	}
	return s.providers.Resolve(user)
}

func (s *Streamer) GetStreams(ctx context.Context, user *config.UserConfig, contentType, stremioID, publicURL string) ([]models.Stream, error) {
	provider, err := s.Provider(user)
	if err != nil {
		return nil, err
	}
	meta, err := s.meta.Meta(ctx, contentType, stremioID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.searcher.GetTorrents(ctx, user, meta, provider)
	if err != nil {
		return nil, err
	}

	if contentType == constants.TypeSeries && s.next != nil {
		warm := *user
		warm.ForceCacheNextEpisode = false
		go s.next.Prepare(context.WithoutCancel(ctx), warm, meta, provider)
	}

	token, err := user.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode user config: %w", err)
	}

	shortName := ""
	if provider != nil {
		shortName = provider.ShortName()
	}

	streams := make([]models.Stream, 0, len(candidates))
	for _, c := range candidates {
		stream := s.format(c, meta, shortName)
		stream.URL = "#"
		if !c.Disabled {
			stream.URL = fmt.Sprintf("%s/%s/download/%s/%s/%s", strings.TrimRight(publicURL, "/"), token, contentType, stremioID, c.ID)
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

func (s *Streamer) format(c *models.Candidate, meta *models.MetaInfo, shortName string) models.Stream {
	var file *models.File
	if meta.Type == constants.TypeSeries && c.Infos != nil && len(c.Infos.Files) > 0 {
		files := append([]models.File(nil), c.Infos.Files...)
		sort.SliceStable(files, func(i, j int) bool { return files[i].Size > files[j].Size })
		if i := SearchEpisodeFile(fileNames(files), meta.Season, meta.Episode); i >= 0 {
			file = &files[i]
		}
	}

	title := c.Name
	size := c.Size
	if file != nil {
		title = file.Name
		if file.Size > 0 {
			size = file.Size
		}
	}

	rows := []string{title}
	if c.InfoText != "" {
		rows = append(rows, "ℹ️ "+c.InfoText)
	}

	main := []string{
		"💾 " + formatBytes(size),
		fmt.Sprintf("👥 %d", c.Seeders),
		"⚙️ " + indexerDisplayName(c.IndexerID),
	}
	rows = append(rows, strings.Join(append(main, languageEmojis(c.Languages, c.Name)...), " "))

	mi := s.media.Extract(c.Name)
	var media []string
	if mi.Codec != "" {
		media = append(media, "🎬 "+mi.Codec)
	}
	if mi.Source != "" {
		media = append(media, "📀 "+mi.Source)
	}
	if mi.Audio != "" {
		media = append(media, "🔊 "+mi.Audio)
	}
	if len(media) > 0 {
		rows = append(rows, strings.Join(media, " "))
	}

	if p := c.Progress; p != nil && !c.Cached && (p.Percent > 0 || p.Speed > 0) {
		rows = append(rows, fmt.Sprintf("⬇️ %d%% %s/s", p.Percent, formatBytes(p.Speed)))
	}

	status := "⬇️"
	if c.Cached {
		status = "⚡"
	}
	name := fmt.Sprintf("[%s%s]", shortName, status)
	if c.Quality > 0 {
		name += fmt.Sprintf(" (%s)", constants.QualityLabel(c.Quality))
	}

	return models.Stream{Name: name, Title: strings.Join(rows, "\n")}
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "n/a"
	}
	return humanize.IBytes(uint64(n))
}

func indexerDisplayName(id string) string {
	if name, ok := indexerDisplayNames[strings.ToLower(id)]; ok {
		return name
	}
	return id
}

// languageEmojis renders the language flags. A multi release that also
// carries French shows the French flag next to the globe.
func languageEmojis(languages []string, name string) []string {
	if len(languages) == 0 {
		return nil
	}

	lowerName := strings.ToLower(name)
	hasMulti, hasFrench := false, false
	for _, l := range languages {
		switch {
		case l == "multi":
			hasMulti = true
		case l == "french", strings.Contains(l, "vf"), strings.Contains(l, "français"), strings.Contains(l, "francais"):
			hasFrench = true
		}
	}
	frenchInName := (strings.Contains(lowerName, "multi") || strings.Contains(lowerName, "dual")) &&
		(strings.Contains(lowerName, ".vf") || strings.Contains(lowerName, "vff") || strings.Contains(lowerName, "vfi") ||
			strings.Contains(lowerName, "truefrench") || strings.Contains(lowerName, "french"))

	emojis := make([]string, 0, len(languages))
	for _, l := range languages {
		lang, ok := constants.LanguageByValue(l)
		if !ok {
			continue
		}
		emoji := lang.Emoji
		if l == "multi" && hasMulti && (hasFrench || frenchInName) {
			if fr, ok := constants.LanguageByValue("french"); ok {
				emoji += " " + fr.Emoji
			}
		}
		emojis = append(emojis, emoji)
	}
	return emojis
}
