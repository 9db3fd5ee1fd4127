package catalog

import (
	"time"
)

// PageCacheItem combines a Page with its creation time, so cache backends
// that don't expire entries themselves still let the client judge freshness.
type PageCacheItem struct {
	Page    Page
	Created time.Time
}

// DetailCacheItem is the cache entry for a Detail.
type DetailCacheItem struct {
	Detail  Detail
	Created time.Time
}

// PageCache is the interface for a catalog page cache.
type PageCache interface {
	Set(key string, page Page) error
	Get(key string) (Page, time.Time, bool, error)
}

// DetailCache is the interface for a detail cache.
type DetailCache interface {
	Set(key string, detail Detail) error
	Get(key string) (Detail, time.Time, bool, error)
}
