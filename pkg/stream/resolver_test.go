package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct {
	body  []byte
	ok    bool
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, targetURL string) ([]byte, bool) {
	f.calls++
	return f.body, f.ok
}

type mapCache struct {
	items map[string]ResultCacheItem
}

func (c *mapCache) Set(key string, result Result) error {
	c.items[key] = ResultCacheItem{Result: result, Created: time.Now()}
	return nil
}

func (c *mapCache) Get(key string) (Result, time.Time, bool, error) {
	item, found := c.items[key]
	return item.Result, item.Created, found, nil
}

const watchBody = `{
	"status": "success",
	"data": {
		"title": "Neon Dynasty Episode 1",
		"streaming_servers": [
			{"name": "Server 360P", "type": "mp4", "url": "https://cdn.example.com/ep1-360.mp4"},
			{"name": "Server 720P", "type": "mp4", "url": "https://cdn.example.com/ep1-720.mp4"},
			{"name": "NeoStream", "type": "embed", "url": "https://embed.example.com/player?id=ep1"},
			{"name": "Broken", "type": "embed", "url": ""}
		],
		"download_links": [
			{"quality": "720p", "links": [{"provider": "G-Drive", "url": "https://drive.example.com/x"}]}
		]
	}
}`

func newResolver(t *testing.T, fetcher Fetcher, cache Cache) *Resolver {
	t.Helper()
	opts := NewResolverOpts("https://upstream.example.com/endpoints", time.Minute)
	resolver, err := NewResolver(opts, fetcher, cache, nil, zap.NewNop())
	require.NoError(t, err)
	return resolver
}

func TestResolve(t *testing.T) {
	resolver := newResolver(t, &stubFetcher{body: []byte(watchBody), ok: true}, nil)

	result, ok := resolver.Resolve(context.Background(), "neon-dynasty-episode-1")
	require.True(t, ok)
	require.Equal(t, "Neon Dynasty Episode 1", result.Title)
	// The empty-URL server is dropped
	require.Len(t, result.Sources, 3)
	require.Equal(t, KindDirect, result.Sources[0].Kind)
	require.Equal(t, KindDirect, result.Sources[1].Kind)
	require.Equal(t, KindEmbedded, result.Sources[2].Kind)
	require.Len(t, result.Downloads, 1)
	require.Equal(t, "720p", result.Downloads[0].Quality)
	require.Equal(t, "G-Drive", result.Downloads[0].Providers[0].Provider)
}

func TestResolveUnresolved(t *testing.T) {
	resolver := newResolver(t, &stubFetcher{ok: false}, nil)

	_, ok := resolver.Resolve(context.Background(), "neon-dynasty-episode-1")
	require.False(t, ok)
}

func TestResolveNoServers(t *testing.T) {
	// A structurally valid response without servers is still unresolved
	body := []byte(`{"status":"success","data":{"title":"x","streaming_servers":[]}}`)
	resolver := newResolver(t, &stubFetcher{body: body, ok: true}, nil)

	_, ok := resolver.Resolve(context.Background(), "neon-dynasty-episode-1")
	require.False(t, ok)
}

func TestResolveNameFallsBackToType(t *testing.T) {
	body := []byte(`{"status":"success","data":{"streaming_servers":[{"type":"embed","url":"https://embed.example.com/1"}]}}`)
	resolver := newResolver(t, &stubFetcher{body: body, ok: true}, nil)

	result, ok := resolver.Resolve(context.Background(), "x-episode-1")
	require.True(t, ok)
	require.Equal(t, "embed", result.Sources[0].Name)
}

func TestResolveCaching(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(watchBody), ok: true}
	resolver := newResolver(t, fetcher, &mapCache{items: map[string]ResultCacheItem{}})

	first, ok := resolver.Resolve(context.Background(), "neon-dynasty-episode-1")
	require.True(t, ok)
	second, ok := resolver.Resolve(context.Background(), "neon-dynasty-episode-1")
	require.True(t, ok)
	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, first, second)
}
