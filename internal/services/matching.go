package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	completePattern     = regexp.MustCompile(`(?i)complete|integr[ae]l`)
	seasonRangePattern  = regexp.MustCompile(`s(\d{2,}) s(\d{2,})`)
	seasonTokenPattern  = regexp.MustCompile(` (s\d{2,}|season \d) `)
	anyEpisodePattern   = regexp.MustCompile(`s\d+ ?e\d+`)
	nameSeparators      = regexp.MustCompile(`[\s.\-_]+`)
)

// parseWords lowercases s and splits it on anything that is not a letter or
// a digit.
func parseWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizeName lowercases a release name and collapses its separators into
// single spaces, keeping number boundaries intact.
func normalizeName(name string) string {
	return strings.TrimSpace(nameSeparators.ReplaceAllString(strings.ToLower(name), " "))
}

func pad2(n int) string {
	return fmt.Sprintf("%02d", n)
}

// seasonMatcher holds the season and episode patterns of one request.
type seasonMatcher struct {
	season  int
	episode int

	seasonNumber *regexp.Regexp
	seasonText   *regexp.Regexp
	exactEpisode *regexp.Regexp
}

func newSeasonMatcher(season, episode int) *seasonMatcher {
	return &seasonMatcher{
		season:       season,
		episode:      episode,
		seasonNumber: regexp.MustCompile(fmt.Sprintf(`(?i)S0*%d(?:E\d+)?(?:\D|$)`, season)),
		seasonText:   regexp.MustCompile(fmt.Sprintf(`(?i)Season\s*0*%d(?:\D|$)`, season)),
		exactEpisode: regexp.MustCompile(fmt.Sprintf(`s0*%d ?e0*%d(?:\D|$)`, season, episode)),
	}
}

// matchesSeason is the season filter applied to every series candidate.
func (m *seasonMatcher) matchesSeason(name string) bool {
	return m.seasonNumber.MatchString(name) ||
		m.seasonText.MatchString(name) ||
		completePattern.MatchString(name)
}

// isPack recognizes season packs: an explicit season mention, a season range
// covering the wanted one, or a bare "complete" marker.
func (m *seasonMatcher) isPack(name string) bool {
	words := parseWords(name)
	joined := strings.Join(words, " ")

	if strings.Contains(joined, fmt.Sprintf("season %d", m.season)) ||
		strings.Contains(joined, "s"+pad2(m.season)) {
		return true
	}
	if r := seasonRangePattern.FindStringSubmatch(joined); r != nil {
		from, _ := strconv.Atoi(r[1])
		to, _ := strconv.Atoi(r[2])
		if m.season >= from && m.season <= to {
			return true
		}
	}
	if containsWord(words, "complete") && !seasonTokenPattern.MatchString(joined) {
		return true
	}
	return false
}

// passesEpisodeGate keeps exact episode matches and season packs that carry
// no episode token.
func (m *seasonMatcher) passesEpisodeGate(name string) bool {
	normalized := normalizeName(name)
	if m.exactEpisode.MatchString(normalized) {
		return true
	}
	return strings.Contains(normalized, "s"+pad2(m.season)) && !anyEpisodePattern.MatchString(normalized)
}

// hasEpisodeToken reports whether the name targets a single episode.
func hasEpisodeToken(name string) bool {
	return anyEpisodePattern.MatchString(normalizeName(name))
}

// SearchEpisodeFile returns the index of the first name matching the episode,
// trying the strictest patterns first, or -1.
func SearchEpisodeFile(names []string, season, episode int) int {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)S0*%dE0*%d(?:\D|$)`, season, episode)),
		regexp.MustCompile(fmt.Sprintf(`(?i)\b%dx0*%d(?:\D|$)`, season, episode)),
		regexp.MustCompile(fmt.Sprintf(`(?i)Season\s*0*%d.*Episode\s*0*%d(?:\D|$)`, season, episode)),
		regexp.MustCompile(fmt.Sprintf(`(?i)\bE0*%d(?:\D|$)|\bep\.?\s*0*%d(?:\D|$)`, episode, episode)),
	}
	for _, re := range patterns {
		for i, name := range names {
			if re.MatchString(name) {
				return i
			}
		}
	}

	legacy := fmt.Sprintf("%d%s", season, pad2(episode))
	for i, name := range names {
		if strings.Contains(name, legacy) {
			return i
		}
	}
	return -1
}

func containsWord(words []string, w string) bool {
	for _, word := range words {
		if word == w {
			return true
		}
	}
	return false
}
