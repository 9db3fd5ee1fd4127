package catalog

// Item is one entry of a catalog page. Identity is the slug; items are
// re-fetched, never mutated.
type Item struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	ImageURL      string `json:"imageUrl"`
	MediaType     string `json:"mediaType"`
	LatestEpisode string `json:"latestEpisode"`
	ReleaseTime   string `json:"releaseTime"`
}

// Page is a catalog page as returned by Home, Search and Batch.
// Synthetic marks pages that were generated locally because every upstream
// path missed, so the UI can show an "unstable link" hint.
type Page struct {
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	Items      []Item `json:"items"`
	Synthetic  bool   `json:"synthetic"`
}

// Detail is the full metadata of one title. It's owned by the caller that
// fetched it.
type Detail struct {
	Title      string            `json:"title"`
	ImageURL   string            `json:"imageUrl"`
	Synopsis   string            `json:"synopsis"`
	Attributes map[string]string `json:"attributes"`
	Genres     []string          `json:"genres"`
	Episodes   []EpisodeRef      `json:"episodes"`
	Synthetic  bool              `json:"synthetic"`
}

// EpisodeRef points at one watchable episode.
// Number is the episode number derived from the slug, or 0 when none could
// be derived (HasNumber is false then).
type EpisodeRef struct {
	Slug      string `json:"slug"`
	Label     string `json:"label"`
	Number    int    `json:"number"`
	HasNumber bool   `json:"hasNumber"`
	Date      string `json:"date"`
}

// Schedule maps a release day to the items airing on it.
type Schedule struct {
	Days      map[string][]Item `json:"days"`
	Synthetic bool              `json:"synthetic"`
}
