package models

type Manifest struct {
	ID            string        `json:"id"`
	Version       string        `json:"version"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Icon          string        `json:"icon,omitempty"`
	Types         []string      `json:"types"`
	Resources     []string      `json:"resources"`
	Catalogs      []interface{} `json:"catalogs"`
	BehaviorHints BehaviorHints `json:"behaviorHints"`
	IDPrefixes    []string      `json:"idPrefixes,omitempty"`
}

type BehaviorHints struct {
	Configurable          bool `json:"configurable"`
	ConfigurationRequired bool `json:"configurationRequired,omitempty"`
}

// Stream represents a single playable stream in Stremio format.
type Stream struct {
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// StreamResponse is the response format for stream endpoints.
type StreamResponse struct {
	Streams []Stream `json:"streams"`
}
