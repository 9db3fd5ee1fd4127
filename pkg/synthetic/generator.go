// Package synthetic produces deterministic placeholder content for when
// every real data path fails. Same input, same output: the fallback UX is
// stable and tests can assert on it.
package synthetic

import (
	"net/url"
	"strconv"

	"github.com/kaizorxxx/novastream/pkg/catalog"
	"github.com/kaizorxxx/novastream/pkg/stream"
)

const (
	pageSize         = 12
	episodesPerTitle = 12
	totalPages       = 5

	// Known-good public test assets, so the fallback player actually plays.
	fallbackHLS = "https://test-streams.mux.dev/x36xhzz/x36xhzz.m3u8"
	fallbackMP4 = "http://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"

	synopsis = "Signal intercepted. The primary database connection was severed, but this cached neural fragment remains. In a world where data is currency, this drama explores the depths of the digital void."
)

// Generator implements catalog.Fallback.
type Generator struct{}

var _ catalog.Fallback = Generator{}

// CatalogPage returns a fixed 12-item page. Slugs follow the pattern
// cyber-drama-{0..11} regardless of the requested page number, which only
// affects the page field itself.
func (g Generator) CatalogPage(page int) catalog.Page {
	if page < 1 {
		page = 1
	}
	items := make([]catalog.Item, 0, pageSize)
	for i := 0; i < pageSize; i++ {
		items = append(items, catalog.Item{
			Slug:          "cyber-drama-" + strconv.Itoa(i),
			Title:         "Neon Dynasty: Chronicles " + strconv.Itoa(i),
			ImageURL:      placeholderImage("NeonDynasty "+strconv.Itoa(i), "300x450"),
			MediaType:     "TV",
			LatestEpisode: strconv.Itoa(12 + i),
			ReleaseTime:   strconv.Itoa(i*5) + " min ago",
		})
	}
	return catalog.Page{
		Page:       page,
		TotalPages: totalPages,
		Items:      items,
		Synthetic:  true,
	}
}

// Detail returns a placeholder detail with 12 episodes derived from the slug.
func (g Generator) Detail(slug string) catalog.Detail {
	if slug == "" {
		slug = "unknown"
	}
	episodes := make([]catalog.EpisodeRef, 0, episodesPerTitle)
	for i := 1; i <= episodesPerTitle; i++ {
		episodes = append(episodes, catalog.EpisodeRef{
			Slug:      slug + "-episode-" + strconv.Itoa(i),
			Label:     "Episode " + strconv.Itoa(i),
			Number:    i,
			HasNumber: true,
		})
	}
	return catalog.Detail{
		Title:    catalog.TitleFromSlug(slug),
		ImageURL: placeholderImage(slug, "600x800"),
		Synopsis: synopsis,
		Attributes: map[string]string{
			"status":  "Ongoing",
			"studio":  "Sansekai Nodes",
			"dirilis": "2077",
			"durasi":  "24 min",
			"season":  "Winter 2077",
			"tipe":    "TV",
		},
		Genres:    []string{"Cyberpunk", "Sci-Fi", "Action", "Romance"},
		Episodes:  episodes,
		Synthetic: true,
	}
}

// Schedule returns the synthetic catalog items spread over the week.
func (g Generator) Schedule() catalog.Schedule {
	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	page := g.CatalogPage(1)
	schedule := catalog.Schedule{
		Days:      map[string][]catalog.Item{},
		Synthetic: true,
	}
	for i, item := range page.Items {
		day := days[i%len(days)]
		schedule.Days[day] = append(schedule.Days[day], item)
	}
	return schedule
}

// StreamSources returns sources pointing at known-good public test assets.
func (g Generator) StreamSources() []stream.Source {
	return []stream.Source{
		{Name: "Backup Node Alpha", Kind: stream.ClassifyURL(fallbackHLS), URL: fallbackHLS},
		{Name: "Backup Node Beta", Kind: stream.ClassifyURL(fallbackMP4), URL: fallbackMP4},
	}
}

// DownloadLinks returns a fixed placeholder download set.
func (g Generator) DownloadLinks() []stream.DownloadLink {
	return []stream.DownloadLink{
		{
			Quality: "1080p Neural",
			Providers: []stream.ProviderLink{
				{Provider: "G-Drive", URL: "#"},
				{Provider: "Mega", URL: "#"},
			},
		},
	}
}

func placeholderImage(text, size string) string {
	return "https://placehold.co/" + size + "/09090b/ef4444?text=" + url.QueryEscape(text)
}
