package synthetic

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kaizorxxx/novastream/pkg/stream"
)

func TestCatalogPageDeterministic(t *testing.T) {
	g := Generator{}
	first := g.CatalogPage(1)
	second := g.CatalogPage(1)
	require.True(t, cmp.Equal(first, second), cmp.Diff(first, second))
}

func TestCatalogPage(t *testing.T) {
	page := Generator{}.CatalogPage(3)
	require.True(t, page.Synthetic)
	require.Equal(t, 3, page.Page)
	require.Equal(t, 5, page.TotalPages)
	require.Len(t, page.Items, 12)
	for i, item := range page.Items {
		require.Equal(t, "cyber-drama-"+strconv.Itoa(i), item.Slug)
		require.NotEmpty(t, item.Title)
		require.NotEmpty(t, item.ImageURL)
		require.NotEmpty(t, item.LatestEpisode)
	}
}

func TestDetail(t *testing.T) {
	detail := Generator{}.Detail("cyber-drama-0")
	require.True(t, detail.Synthetic)
	require.Equal(t, "Cyber Drama 0", detail.Title)
	require.NotEmpty(t, detail.Synopsis)
	require.NotEmpty(t, detail.Genres)
	require.Len(t, detail.Episodes, 12)
	for i, episode := range detail.Episodes {
		require.Equal(t, "cyber-drama-0-episode-"+strconv.Itoa(i+1), episode.Slug)
		require.True(t, episode.HasNumber)
		require.Equal(t, i+1, episode.Number)
	}
}

func TestSchedule(t *testing.T) {
	schedule := Generator{}.Schedule()
	require.True(t, schedule.Synthetic)
	total := 0
	for _, items := range schedule.Days {
		total += len(items)
	}
	require.Equal(t, 12, total)
}

// The fallback sources must point at assets a player can actually load, one
// HLS and one progressive.
func TestStreamSources(t *testing.T) {
	sources := Generator{}.StreamSources()
	require.Len(t, sources, 2)
	for _, source := range sources {
		require.Equal(t, stream.KindDirect, source.Kind)
		require.NotEmpty(t, source.URL)
	}
}
