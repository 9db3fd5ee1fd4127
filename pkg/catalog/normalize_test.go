package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNormalizePage(t *testing.T) {
	raw := gjson.Parse(`{
		"status": "success",
		"data": {
			"page": 2,
			"total_pages": 31,
			"anime": [
				{"slug": "neon-dynasty", "title": "Neon Dynasty", "thumbnail": "https://img.example.com/nd.jpg", "type": "TV", "latest_episode": "12", "release_time": "2 hours ago"},
				{"slug": "ghost-protocol", "judul": "Ghost Protocol", "image": "https://img.example.com/gp.jpg"}
			]
		}
	}`)
	page := NormalizePage(raw)

	require.Equal(t, 2, page.Page)
	require.Equal(t, 31, page.TotalPages)
	require.Len(t, page.Items, 2)
	exp := Item{
		Slug:          "neon-dynasty",
		Title:         "Neon Dynasty",
		ImageURL:      "https://img.example.com/nd.jpg",
		MediaType:     "TV",
		LatestEpisode: "12",
		ReleaseTime:   "2 hours ago",
	}
	require.True(t, cmp.Equal(exp, page.Items[0]), cmp.Diff(exp, page.Items[0]))
	// Alternate field names from the priority tables
	require.Equal(t, "Ghost Protocol", page.Items[1].Title)
	require.Equal(t, "https://img.example.com/gp.jpg", page.Items[1].ImageURL)
	require.Equal(t, "TV", page.Items[1].MediaType)
}

// Normalization must be total: any JSON input yields a structurally valid
// value, never a panic or error.
func TestNormalizeTotal(t *testing.T) {
	for _, input := range []string{`{}`, `null`, `[]`, `{"data":42}`, `{"data":{"anime":"not an array"}}`} {
		page := NormalizePage(gjson.Parse(input))
		require.Equal(t, 1, page.Page, "input: %s", input)
		require.Equal(t, 1, page.TotalPages, "input: %s", input)
		require.Empty(t, page.Items, "input: %s", input)

		detail := NormalizeDetail("some-show", gjson.Parse(input))
		require.Equal(t, "Some Show", detail.Title, "input: %s", input)
		require.NotEmpty(t, detail.Synopsis, "input: %s", input)
		require.Empty(t, detail.Episodes, "input: %s", input)

		schedule := NormalizeSchedule(gjson.Parse(input))
		require.Empty(t, schedule.Days, "input: %s", input)
	}
}

func TestNormalizeItemFieldPriority(t *testing.T) {
	// When multiple keys of a priority table are present, the earlier one wins
	item := NormalizeItem(gjson.Parse(`{"slug":"x","title":"A","name":"B","judul":"C","thumbnail":"t.jpg","poster":"p.jpg"}`))
	require.Equal(t, "A", item.Title)
	require.Equal(t, "t.jpg", item.ImageURL)

	// Empty values don't win
	item = NormalizeItem(gjson.Parse(`{"slug":"x","title":"","name":"B"}`))
	require.Equal(t, "B", item.Title)

	// Missing title falls back to the slug-derived one
	item = NormalizeItem(gjson.Parse(`{"slug":"cyber-drama-3"}`))
	require.Equal(t, "Cyber Drama 3", item.Title)
}

func TestNormalizeDetail(t *testing.T) {
	raw := gjson.Parse(`{
		"status": "success",
		"data": {
			"title": "Neon Dynasty",
			"thumbnail": "https://img.example.com/nd.jpg",
			"synopsis": "A story.",
			"info": {"status": "Ongoing", "studio": "Example Works", "genres": ["Action", "Sci-Fi"]},
			"episodes": [
				{"slug": "neon-dynasty-episode-2", "episode": "Episode 2", "date": "Jan 8"},
				{"slug": "neon-dynasty-episode-1", "episode": "Episode 1", "date": "Jan 1"}
			]
		}
	}`)
	detail := NormalizeDetail("neon-dynasty", raw)

	require.Equal(t, "Neon Dynasty", detail.Title)
	require.Equal(t, "A story.", detail.Synopsis)
	require.Equal(t, map[string]string{"status": "Ongoing", "studio": "Example Works"}, detail.Attributes)
	require.Equal(t, []string{"Action", "Sci-Fi"}, detail.Genres)
	// Episodes come back sorted ascending
	require.Len(t, detail.Episodes, 2)
	require.Equal(t, "neon-dynasty-episode-1", detail.Episodes[0].Slug)
	require.Equal(t, "neon-dynasty-episode-2", detail.Episodes[1].Slug)
	require.Equal(t, "Jan 1", detail.Episodes[0].Date)
}

func TestNormalizeGenresCommaString(t *testing.T) {
	detail := NormalizeDetail("x", gjson.Parse(`{"data":{"info":{"genres":"Action, Sci-Fi , Romance"}}}`))
	require.Equal(t, []string{"Action", "Sci-Fi", "Romance"}, detail.Genres)
}

func TestEpisodeNumber(t *testing.T) {
	number, ok := EpisodeNumber("neon-dynasty-episode-12")
	require.True(t, ok)
	require.Equal(t, 12, number)

	_, ok = EpisodeNumber("neon-dynasty-movie")
	require.False(t, ok)

	_, ok = EpisodeNumber("")
	require.False(t, ok)
}

func TestSortEpisodes(t *testing.T) {
	// Numeric sort, not lexicographic: episode-10 comes after episode-2
	episodes := []EpisodeRef{
		{Slug: "show-episode-1", Number: 1, HasNumber: true},
		{Slug: "show-episode-10", Number: 10, HasNumber: true},
		{Slug: "show-episode-2", Number: 2, HasNumber: true},
		{Slug: "show-special"},
	}
	SortEpisodes(episodes)
	require.Equal(t, "show-episode-1", episodes[0].Slug)
	require.Equal(t, "show-episode-2", episodes[1].Slug)
	require.Equal(t, "show-episode-10", episodes[2].Slug)
	require.Equal(t, "show-special", episodes[3].Slug)
}

func TestSortEpisodesUnnumberedBetweenNumbered(t *testing.T) {
	// An unnumbered entry sitting between numbered ones must not block the
	// numbered ones from being ordered
	episodes := []EpisodeRef{
		{Slug: "show-episode-2", Number: 2, HasNumber: true},
		{Slug: "show-special"},
		{Slug: "show-episode-1", Number: 1, HasNumber: true},
	}
	SortEpisodes(episodes)
	require.Equal(t, "show-episode-1", episodes[0].Slug)
	require.Equal(t, "show-episode-2", episodes[1].Slug)
	require.Equal(t, "show-special", episodes[2].Slug)
}

func TestSortEpisodesUnnumberedKeepOrder(t *testing.T) {
	episodes := []EpisodeRef{
		{Slug: "show-ova"},
		{Slug: "show-episode-1", Number: 1, HasNumber: true},
		{Slug: "show-special"},
	}
	SortEpisodes(episodes)
	require.Equal(t, "show-episode-1", episodes[0].Slug)
	require.Equal(t, "show-ova", episodes[1].Slug)
	require.Equal(t, "show-special", episodes[2].Slug)
}

func TestTitleFromSlug(t *testing.T) {
	require.Equal(t, "Cyber Drama 3", TitleFromSlug("cyber-drama-3"))
	require.Equal(t, "Untitled", TitleFromSlug(""))
}
