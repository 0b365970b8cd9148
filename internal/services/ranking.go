package services

import (
	"math"
	"sort"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/models"
)

var bySeedersDesc = []config.SortKey{{Field: "seeders", Desc: true}}

func sortField(c *models.Candidate, field string) int64 {
	switch field {
	case "seeders":
		return int64(c.Seeders)
	case "size":
		return c.Size
	case "quality":
		return int64(c.Quality)
	case "peers":
		return int64(c.Peers)
	default:
		return 0
	}
}

// sortCandidates is a stable multi-key sort. Unknown fields compare equal.
func sortCandidates(candidates []*models.Candidate, keys []config.SortKey) {
	sort.SliceStable(candidates, func(i, j int) bool {
		for _, k := range keys {
			a, b := sortField(candidates[i], k.Field), sortField(candidates[j], k.Field)
			if a == b {
				continue
			}
			if k.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
}

// languageCap is the number of preferred-language candidates promoted ahead
// of the seeders order.
func languageCap(maxTorrents int) int {
	n := int(math.Round(float64(maxTorrents) * constants.LanguagePriorityRatio))
	if n < 1 {
		return 1
	}
	return n
}

// languageFilter matches candidates in multi or one of the preferred
// languages. Without preferences every candidate matches.
func languageFilter(preferred []string) func(*models.Candidate) bool {
	if len(preferred) == 0 {
		return func(*models.Candidate) bool { return true }
	}
	wanted := append([]string{"multi"}, preferred...)
	return func(c *models.Candidate) bool {
		return c.HasLanguage(wanted...)
	}
}

// promote moves up to max matching candidates to the front, keeping the
// relative order inside both partitions. A max of 0 means no limit.
func promote(candidates []*models.Candidate, match func(*models.Candidate) bool, max int) []*models.Candidate {
	front := make([]*models.Candidate, 0, len(candidates))
	rest := make([]*models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if match(c) && (max <= 0 || len(front) < max) {
			front = append(front, c)
			continue
		}
		rest = append(rest, c)
	}
	return append(front, rest...)
}
