package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Upstream payloads drift in field naming, so every text field is looked up
// through a fixed priority table and the first present, non-empty value wins.
var (
	titleKeys   = []string{"title", "name", "judul"}
	imageKeys   = []string{"thumbnail", "poster", "cover", "image"}
	typeKeys    = []string{"type", "tipe"}
	episodeKeys = []string{"latest_episode", "episode"}
	releaseKeys = []string{"release_time", "released", "rilis"}
	labelKeys   = []string{"episode", "title", "name"}
	dateKeys    = []string{"date", "released", "tanggal"}
)

const (
	fallbackPage       = 1
	fallbackTotalPages = 1
)

// NormalizeItem maps one upstream catalog entry of any known shape into an
// Item. It's total: any JSON object yields a structurally valid Item, with
// placeholder text derived from the slug where the upstream left gaps.
func NormalizeItem(raw gjson.Result) Item {
	slug := raw.Get("slug").String()
	return Item{
		Slug:          slug,
		Title:         firstString(raw, titleKeys, TitleFromSlug(slug)),
		ImageURL:      firstString(raw, imageKeys, ""),
		MediaType:     firstString(raw, typeKeys, "TV"),
		LatestEpisode: firstString(raw, episodeKeys, ""),
		ReleaseTime:   firstString(raw, releaseKeys, ""),
	}
}

// NormalizePage maps a whole catalog response
// ({status, data: {page, total_pages, anime: [...]}}) into a Page.
func NormalizePage(raw gjson.Result) Page {
	data := raw.Get("data")
	var items []Item
	// gjson's Array() wraps non-array values in a single-element array, so
	// guard to stay total over arbitrary payloads
	if anime := data.Get("anime"); anime.IsArray() {
		for _, itemRaw := range anime.Array() {
			items = append(items, NormalizeItem(itemRaw))
		}
	}
	return Page{
		Page:       intOrDefault(data.Get("page"), fallbackPage),
		TotalPages: intOrDefault(data.Get("total_pages"), fallbackTotalPages),
		Items:      items,
	}
}

// NormalizeDetail maps a detail response into a Detail. The episode list is
// sorted so that playback sees episodes in ascending numeric order.
func NormalizeDetail(slug string, raw gjson.Result) Detail {
	data := raw.Get("data")

	attributes := map[string]string{}
	data.Get("info").ForEach(func(key, value gjson.Result) bool {
		if key.String() == "genres" {
			return true
		}
		if value.Type == gjson.String && value.String() != "" {
			attributes[key.String()] = value.String()
		}
		return true
	})

	var episodes []EpisodeRef
	if epsRaw := data.Get("episodes"); epsRaw.IsArray() {
		for _, epRaw := range epsRaw.Array() {
			epSlug := epRaw.Get("slug").String()
			number, hasNumber := EpisodeNumber(epSlug)
			episodes = append(episodes, EpisodeRef{
				Slug:      epSlug,
				Label:     firstString(epRaw, labelKeys, epSlug),
				Number:    number,
				HasNumber: hasNumber,
				Date:      firstString(epRaw, dateKeys, ""),
			})
		}
	}
	SortEpisodes(episodes)

	return Detail{
		Title:      firstString(data, titleKeys, TitleFromSlug(slug)),
		ImageURL:   firstString(data, imageKeys, ""),
		Synopsis:   firstString(data, []string{"synopsis", "description", "sinopsis"}, "No synopsis available for "+TitleFromSlug(slug)+"."),
		Attributes: attributes,
		Genres:     normalizeGenres(data.Get("info.genres")),
		Episodes:   episodes,
	}
}

// NormalizeSchedule maps a schedule response ({status, data: {<day>: [...]}})
// into a Schedule.
func NormalizeSchedule(raw gjson.Result) Schedule {
	days := map[string][]Item{}
	raw.Get("data").ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			return true
		}
		var items []Item
		for _, itemRaw := range value.Array() {
			items = append(items, NormalizeItem(itemRaw))
		}
		days[key.String()] = items
		return true
	})
	return Schedule{Days: days}
}

// normalizeGenres accepts both an array of strings and a comma-separated
// string, which both occur upstream.
func normalizeGenres(raw gjson.Result) []string {
	var genres []string
	if raw.IsArray() {
		for _, g := range raw.Array() {
			if g.String() != "" {
				genres = append(genres, g.String())
			}
		}
		return genres
	}
	for _, g := range strings.Split(raw.String(), ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

// EpisodeNumber derives the episode number from the trailing digits of a
// slug like "neon-dynasty-episode-12". ok is false when the slug doesn't
// end in digits.
func EpisodeNumber(slug string) (int, bool) {
	end := len(slug)
	start := end
	for start > 0 && slug[start-1] >= '0' && slug[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	number, err := strconv.Atoi(slug[start:end])
	if err != nil {
		return 0, false
	}
	return number, true
}

// SortEpisodes sorts ascending by the number derived from the slug.
// Episodes without a derivable number sort after all numbered ones; among
// themselves, and for equal numbers, upstream order is kept. The comparator
// must stay transitive here: treating unnumbered entries as "equal to
// everything" would let one sitting mid-list block the numbered ones from
// being ordered.
func SortEpisodes(episodes []EpisodeRef) {
	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].HasNumber != episodes[j].HasNumber {
			return episodes[i].HasNumber
		}
		return episodes[i].HasNumber && episodes[i].Number < episodes[j].Number
	})
}

func firstString(raw gjson.Result, keys []string, fallback string) string {
	for _, key := range keys {
		if value := raw.Get(key); value.Exists() && value.String() != "" {
			return value.String()
		}
	}
	return fallback
}

func intOrDefault(raw gjson.Result, fallback int) int {
	if !raw.Exists() {
		return fallback
	}
	if value := int(raw.Int()); value > 0 {
		return value
	}
	return fallback
}

// TitleFromSlug turns "cyber-drama-3" into "Cyber Drama 3" as a placeholder
// for upstream entries that carry no usable title.
func TitleFromSlug(slug string) string {
	if slug == "" {
		return "Untitled"
	}
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
