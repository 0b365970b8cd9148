package models

// Episode identifies an episode within a series.
type Episode struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// MetaInfo is the resolved metadata of the requested content.
type MetaInfo struct {
	ID        string    `json:"id"`
	TMDBID    int       `json:"tmdbId"`
	Name      string    `json:"name"`
	Year      int       `json:"year"`
	Type      string    `json:"type"`
	Season    int       `json:"season"`
	Episode   int       `json:"episode"`
	StremioID string    `json:"stremioId"`
	Episodes  []Episode `json:"episodes,omitempty"`
}

// NextEpisode returns the episode following the current one in Episodes.
func (m *MetaInfo) NextEpisode() (Episode, bool) {
	for i, e := range m.Episodes {
		if e.Season == m.Season && e.Episode == m.Episode {
			if i+1 < len(m.Episodes) {
				return m.Episodes[i+1], true
			}
			return Episode{}, false
		}
	}
	return Episode{}, false
}
