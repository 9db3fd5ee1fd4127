package stream

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Fetcher is the failover fetch pipeline (implemented by pkg/fetch).
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) ([]byte, bool)
}

type ResolverOptions struct {
	// Base URL of the upstream endpoint directory.
	BaseURL  string
	CacheAge time.Duration
}

func NewResolverOpts(baseURL string, cacheAge time.Duration) ResolverOptions {
	return ResolverOptions{
		BaseURL:  baseURL,
		CacheAge: cacheAge,
	}
}

var DefaultResolverOpts = ResolverOptions{
	CacheAge: 6 * time.Hour,
}

// Resolver resolves the candidate video sources for an episode slug.
// It's stateless apart from its cache and safe for concurrent use.
type Resolver struct {
	baseURL  string
	fetcher  Fetcher
	cache    Cache
	cacheAge time.Duration
	prober   *EmbedProber
	logger   *zap.Logger
}

// NewResolver creates a Resolver. cache and prober may be nil.
func NewResolver(opts ResolverOptions, fetcher Fetcher, cache Cache, prober *EmbedProber, logger *zap.Logger) (*Resolver, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("opts.BaseURL must not be empty")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher must not be nil")
	}
	if opts.CacheAge == 0 {
		opts.CacheAge = DefaultResolverOpts.CacheAge
	}
	return &Resolver{
		baseURL:  opts.BaseURL,
		fetcher:  fetcher,
		cache:    cache,
		cacheAge: opts.CacheAge,
		prober:   prober,
		logger:   logger,
	}, nil
}

// Resolve returns the sources and download links for an episode, or
// ok=false when every network path missed. ok=false is recoverable: the
// caller may simply resolve again.
func (r *Resolver) Resolve(ctx context.Context, episodeSlug string) (Result, bool) {
	zapFieldSlug := zap.String("episodeSlug", episodeSlug)

	if r.cache != nil {
		result, created, found, err := r.cache.Get(episodeSlug)
		if err != nil {
			r.logger.Error("Couldn't get streams from cache", zap.Error(err), zapFieldSlug)
		} else if found && time.Since(created) <= r.cacheAge {
			r.logger.Debug("Hit cache for streams", zap.Int("sourceCount", len(result.Sources)), zapFieldSlug)
			return result, true
		}
	}

	body, ok := r.fetcher.Fetch(ctx, r.baseURL+"/watch.php?slug="+url.QueryEscape(episodeSlug))
	if !ok {
		return Result{}, false
	}

	result := normalizeResult(gjson.ParseBytes(body))
	if len(result.Sources) == 0 {
		r.logger.Warn("Watch response carried no streaming servers", zapFieldSlug)
		return Result{}, false
	}
	r.upgradeEmbeds(ctx, result.Sources)
	r.logger.Debug("Resolved streams", zap.Int("sourceCount", len(result.Sources)), zap.Int("downloadCount", len(result.Downloads)), zapFieldSlug)

	if r.cache != nil {
		if err := r.cache.Set(episodeSlug, result); err != nil {
			r.logger.Error("Couldn't cache streams", zap.Error(err), zapFieldSlug)
		}
	}
	return result, true
}

// upgradeEmbeds tries to turn embedded-frame sources into direct-media ones
// by scraping the embed page. Best effort: a failed probe changes nothing.
func (r *Resolver) upgradeEmbeds(ctx context.Context, sources []Source) {
	if r.prober == nil {
		return
	}
	for i, source := range sources {
		if source.Kind != KindEmbedded {
			continue
		}
		mediaURL, err := r.prober.ProbeEmbed(ctx, source.URL)
		if err != nil {
			r.logger.Debug("Embed probe missed", zap.Error(err), zap.String("sourceName", source.Name))
			continue
		}
		sources[i].URL = mediaURL
		sources[i].Kind = KindDirect
	}
}

// normalizeResult maps a watch response
// ({status, data: {title, streaming_servers: [...], download_links: [...]}})
// into a Result. Total over any JSON object.
func normalizeResult(raw gjson.Result) Result {
	data := raw.Get("data")
	var result Result
	result.Title = data.Get("title").String()

	serversRaw := data.Get("streaming_servers")
	if !serversRaw.IsArray() {
		return result
	}
	for _, serverRaw := range serversRaw.Array() {
		serverURL := serverRaw.Get("url").String()
		if serverURL == "" {
			continue
		}
		name := serverRaw.Get("name").String()
		if name == "" {
			name = serverRaw.Get("type").String()
		}
		result.Sources = append(result.Sources, Source{
			Name: name,
			Kind: ClassifyURL(serverURL),
			URL:  serverURL,
		})
	}

	if linksRaw := data.Get("download_links"); linksRaw.IsArray() {
		for _, linkRaw := range linksRaw.Array() {
			link := DownloadLink{
				Quality: linkRaw.Get("quality").String(),
			}
			for _, providerRaw := range linkRaw.Get("links").Array() {
				link.Providers = append(link.Providers, ProviderLink{
					Provider: providerRaw.Get("provider").String(),
					URL:      providerRaw.Get("url").String(),
				})
			}
			result.Downloads = append(result.Downloads, link)
		}
	}
	return result
}
