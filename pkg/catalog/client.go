package catalog

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrEmptySlug is the only error the client ever returns. Network failure is
// never an error here: it degrades to synthetic content instead.
var ErrEmptySlug = errors.New("slug must not be empty")

// Fetcher is the failover fetch pipeline the client issues its requests
// through (implemented by pkg/fetch).
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) ([]byte, bool)
}

// Fallback produces deterministic placeholder content for when every network
// path misses (implemented by pkg/synthetic).
type Fallback interface {
	CatalogPage(page int) Page
	Detail(slug string) Detail
	Schedule() Schedule
}

type ClientOptions struct {
	// Base URL of the upstream endpoint directory, e.g.
	// "https://example.com/animekompi/endpoints".
	BaseURL  string
	CacheAge time.Duration
}

func NewClientOpts(baseURL string, cacheAge time.Duration) ClientOptions {
	return ClientOptions{
		BaseURL:  baseURL,
		CacheAge: cacheAge,
	}
}

var DefaultClientOpts = ClientOptions{
	CacheAge: 15 * time.Minute,
}

// Client exposes catalog browsing, search and detail lookup over the
// failover fetcher. It's stateless apart from its caches and safe for
// concurrent use across sessions.
type Client struct {
	baseURL     string
	fetcher     Fetcher
	fallback    Fallback
	pageCache   PageCache
	detailCache DetailCache
	cacheAge    time.Duration
	logger      *zap.Logger
}

func NewClient(opts ClientOptions, fetcher Fetcher, fallback Fallback, pageCache PageCache, detailCache DetailCache, logger *zap.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("opts.BaseURL must not be empty")
	}
	if fetcher == nil || fallback == nil {
		return nil, errors.New("fetcher and fallback must not be nil")
	}
	if opts.CacheAge == 0 {
		opts.CacheAge = DefaultClientOpts.CacheAge
	}
	return &Client{
		baseURL:     opts.BaseURL,
		fetcher:     fetcher,
		fallback:    fallback,
		pageCache:   pageCache,
		detailCache: detailCache,
		cacheAge:    opts.CacheAge,
		logger:      logger,
	}, nil
}

// Home returns the given page of the home catalog. It never fails: when all
// network paths miss or page 1 comes back empty, a synthetic page is
// returned instead.
func (c *Client) Home(ctx context.Context, page int) Page {
	return c.page(ctx, c.baseURL+"/home.php?page="+strconv.Itoa(page), "home-"+strconv.Itoa(page), page)
}

// Search returns the given page of search results for the query, with the
// same degradation behavior as Home.
func (c *Client) Search(ctx context.Context, query string, page int) Page {
	target := c.baseURL + "/search.php?q=" + url.QueryEscape(query) + "&page=" + strconv.Itoa(page)
	return c.page(ctx, target, "search-"+query+"-"+strconv.Itoa(page), page)
}

// Batch returns the given page of the batch-release catalog.
func (c *Client) Batch(ctx context.Context, page int) Page {
	return c.page(ctx, c.baseURL+"/batch.php?page="+strconv.Itoa(page), "batch-"+strconv.Itoa(page), page)
}

// Detail returns the full metadata for a slug. The only error condition is
// an empty slug, which is a caller bug rather than a network condition.
func (c *Client) Detail(ctx context.Context, slug string) (Detail, error) {
	if slug == "" {
		return Detail{}, ErrEmptySlug
	}
	zapFieldSlug := zap.String("slug", slug)

	if c.detailCache != nil {
		detail, created, found, err := c.detailCache.Get(slug)
		if err != nil {
			c.logger.Error("Couldn't get detail from cache", zap.Error(err), zapFieldSlug)
		} else if found && time.Since(created) <= c.cacheAge {
			c.logger.Debug("Hit cache for detail", zapFieldSlug)
			return detail, nil
		}
	}

	body, ok := c.fetcher.Fetch(ctx, c.baseURL+"/detail.php?slug="+url.QueryEscape(slug))
	if !ok {
		c.logger.Warn("Detail unresolved on all paths, returning synthetic detail", zapFieldSlug)
		return c.fallback.Detail(slug), nil
	}
	detail := NormalizeDetail(slug, gjson.ParseBytes(body))

	if c.detailCache != nil {
		if err := c.detailCache.Set(slug, detail); err != nil {
			c.logger.Error("Couldn't cache detail", zap.Error(err), zapFieldSlug)
		}
	}
	return detail, nil
}

// Schedule returns the weekly release schedule, synthetic when unresolved.
func (c *Client) Schedule(ctx context.Context) Schedule {
	body, ok := c.fetcher.Fetch(ctx, c.baseURL+"/schedule.php")
	if !ok {
		c.logger.Warn("Schedule unresolved on all paths, returning synthetic schedule")
		return c.fallback.Schedule()
	}
	return NormalizeSchedule(gjson.ParseBytes(body))
}

func (c *Client) page(ctx context.Context, targetURL, cacheKey string, page int) Page {
	zapFieldKey := zap.String("cacheKey", cacheKey)

	if c.pageCache != nil {
		cached, created, found, err := c.pageCache.Get(cacheKey)
		if err != nil {
			c.logger.Error("Couldn't get page from cache", zap.Error(err), zapFieldKey)
		} else if found && time.Since(created) <= c.cacheAge {
			c.logger.Debug("Hit cache for page", zapFieldKey)
			return cached
		}
	}

	body, ok := c.fetcher.Fetch(ctx, targetURL)
	if !ok {
		c.logger.Warn("Catalog page unresolved on all paths, returning synthetic page", zapFieldKey)
		return c.fallback.CatalogPage(page)
	}
	result := NormalizePage(gjson.ParseBytes(body))
	// An empty first page means the upstream is up but broken. Showing the
	// synthetic page beats showing an empty catalog.
	if len(result.Items) == 0 && page <= 1 {
		c.logger.Warn("Catalog page 1 came back empty, returning synthetic page", zapFieldKey)
		return c.fallback.CatalogPage(page)
	}

	if c.pageCache != nil {
		if err := c.pageCache.Set(cacheKey, result); err != nil {
			c.logger.Error("Couldn't cache page", zap.Error(err), zapFieldKey)
		}
	}
	return result
}
