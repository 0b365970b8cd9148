package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/cehbz/torrentname"
)

// MediaInfo is the codec, source and audio read from a release name.
type MediaInfo struct {
	Codec  string
	Source string
	Audio  string
}

type labeledPattern struct {
	label   string
	pattern *regexp.Regexp
}

var (
	codecPatterns = []labeledPattern{
		{"H265", regexp.MustCompile(`(?i)hevc|x265|h\.?265`)},
		{"H264", regexp.MustCompile(`(?i)avc|x264|h\.?264`)},
		{"AV1", regexp.MustCompile(`(?i)av1`)},
	}
	sourcePatterns = []labeledPattern{
		{"REMUX", regexp.MustCompile(`(?i)remux`)},
		{"BLURAY", regexp.MustCompile(`(?i)bluray|bdrip`)},
		{"WEB-DL", regexp.MustCompile(`(?i)web[ \-._]?dl`)},
		{"WEBRIP", regexp.MustCompile(`(?i)webrip`)},
		{"WEB", regexp.MustCompile(`(?i)\bweb\b`)},
		{"HDTV", regexp.MustCompile(`(?i)hdtv`)},
		{"DVDRIP", regexp.MustCompile(`(?i)dvdrip`)},
	}
	audioPatterns = []labeledPattern{
		{"DTS-HD", regexp.MustCompile(`(?i)dts[ \-._]?hd`)},
		{"DTS:X", regexp.MustCompile(`(?i)dts[ \-._]?x`)},
		{"ATMOS", regexp.MustCompile(`(?i)atmos`)},
		{"TRUEHD", regexp.MustCompile(`(?i)truehd`)},
		{"DD+", regexp.MustCompile(`(?i)dd\+|e[\-_]?ac[\-_]?3`)},
		{"DD", regexp.MustCompile(`(?i)dd`)},
		{"DTS", regexp.MustCompile(`(?i)dts`)},
		{"AAC", regexp.MustCompile(`(?i)aac`)},
	}
)

func firstLabel(name string, patterns []labeledPattern) string {
	for _, p := range patterns {
		if p.pattern.MatchString(name) {
			return p.label
		}
	}
	return ""
}

// MediaInfoExtractor memoizes extraction results per name until they expire.
type MediaInfoExtractor struct {
	memo *ttlcache.Cache[string, MediaInfo]
}

func NewMediaInfoExtractor(ttl time.Duration) *MediaInfoExtractor {
	return &MediaInfoExtractor{
		memo: ttlcache.New(ttlcache.Options[string, MediaInfo]{}.SetDefaultTTL(ttl)),
	}
}

func (m *MediaInfoExtractor) Extract(name string) MediaInfo {
	if info, ok := m.memo.Get(name); ok {
		return info
	}

	info := MediaInfo{
		Codec:  firstLabel(name, codecPatterns),
		Source: firstLabel(name, sourcePatterns),
		Audio:  firstLabel(name, audioPatterns),
	}
	if info.Codec == "" || info.Source == "" {
		fillFromParsedName(name, &info)
	}

	m.memo.Set(name, info, ttlcache.DefaultTTL)
	return info
}

// fillFromParsedName completes the regex result with the release parser for
// spellings the patterns do not know.
func fillFromParsedName(name string, info *MediaInfo) {
	parsed := torrentname.Parse(name)
	if parsed == nil {
		return
	}
	if info.Codec == "" {
		info.Codec = firstLabel(parsed.Codec, codecPatterns)
	}
	if info.Source == "" {
		source := strings.ReplaceAll(parsed.Source, "Blu-ray", "BluRay")
		info.Source = firstLabel(source, sourcePatterns)
	}
}
