package stream

import (
	"strings"
	"time"
)

// Kind says how a source must be rendered.
type Kind string

const (
	// KindDirect is a URL playable natively by a media element.
	KindDirect Kind = "direct-media"
	// KindEmbedded is a URL that only plays inside a cross-origin frame.
	KindEmbedded Kind = "embedded-frame"
)

// Source is one candidate video source ("server") for an episode.
type Source struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	URL  string `json:"url"`
}

// DownloadLink groups provider links for one quality label. Read-only, no
// playback semantics.
type DownloadLink struct {
	Quality   string         `json:"quality"`
	Providers []ProviderLink `json:"providers"`
}

type ProviderLink struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// Result is a successful stream resolution for one episode.
type Result struct {
	Title     string         `json:"title"`
	Sources   []Source       `json:"sources"`
	Downloads []DownloadLink `json:"downloads"`
}

// ResultCacheItem is the cache entry for a Result.
type ResultCacheItem struct {
	Result  Result
	Created time.Time
}

// Cache is the interface for a resolved-stream cache or store.
type Cache interface {
	Set(key string, result Result) error
	Get(key string) (Result, time.Time, bool, error)
}

var directExtensions = []string{".mp4", ".mkv", ".webm", ".ogg", ".m3u8"}

// ClassifyURL decides the rendering kind by the URL's file extension.
// Anything that isn't a known media file is delegated to a frame.
func ClassifyURL(rawURL string) Kind {
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i != -1 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.ToLower(trimmed)
	for _, ext := range directExtensions {
		if strings.HasSuffix(trimmed, ext) {
			return KindDirect
		}
	}
	return KindEmbedded
}

// Preferred picks the default source: the first one whose name contains the
// quality marker substring, or just the first one. This is a tie-break
// policy kept for compatibility with upstream naming, not a quality ranking.
func Preferred(sources []Source, qualityMarker string) (Source, bool) {
	if len(sources) == 0 {
		return Source{}, false
	}
	if qualityMarker != "" {
		for _, source := range sources {
			if strings.Contains(source.Name, qualityMarker) {
				return source, true
			}
		}
	}
	return sources[0], true
}
