package main

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kaizorxxx/novastream/pkg/catalog"
	"github.com/kaizorxxx/novastream/pkg/stream"
)

func registerTypes() {
	// For catalog page and detail caches
	gob.Register(time.Time{})
	gob.Register(catalog.PageCacheItem{})
	gob.Register(catalog.DetailCacheItem{})
	// For the stream result store
	gob.Register(stream.ResultCacheItem{})
}

var _ catalog.PageCache = (*pageCache)(nil)

// pageCache is the cache for catalog.Page objects, backed by github.com/patrickmn/go-cache.
type pageCache struct {
	cache *gocache.Cache
}

// Set implements the catalog.PageCache interface.
func (c *pageCache) Set(key string, page catalog.Page) error {
	item := catalog.PageCacheItem{
		Page:    page,
		Created: time.Now(),
	}
	c.cache.Set(key, item, 0)
	return nil
}

// Get implements the catalog.PageCache interface.
func (c *pageCache) Get(key string) (catalog.Page, time.Time, bool, error) {
	itemIface, found := c.cache.Get(key)
	if !found {
		return catalog.Page{}, time.Time{}, found, nil
	}
	item, ok := itemIface.(catalog.PageCacheItem)
	if !ok {
		return catalog.Page{}, time.Time{}, found, fmt.Errorf("Couldn't cast cached value to catalog.PageCacheItem: type was: %T", itemIface)
	}
	return item.Page, item.Created, found, nil
}

var _ catalog.DetailCache = (*detailCache)(nil)

// detailCache is the cache for catalog.Detail objects.
type detailCache struct {
	cache *gocache.Cache
}

// Set implements the catalog.DetailCache interface.
func (c *detailCache) Set(key string, detail catalog.Detail) error {
	item := catalog.DetailCacheItem{
		Detail:  detail,
		Created: time.Now(),
	}
	c.cache.Set(key, item, 0)
	return nil
}

// Get implements the catalog.DetailCache interface.
func (c *detailCache) Get(key string) (catalog.Detail, time.Time, bool, error) {
	itemIface, found := c.cache.Get(key)
	if !found {
		return catalog.Detail{}, time.Time{}, found, nil
	}
	item, ok := itemIface.(catalog.DetailCacheItem)
	if !ok {
		return catalog.Detail{}, time.Time{}, found, fmt.Errorf("Couldn't cast cached value to catalog.DetailCacheItem: type was: %T", itemIface)
	}
	return item.Detail, item.Created, found, nil
}

var _ catalog.PageCache = (*redisPageCache)(nil)

// redisPageCache is the Redis-backed alternative to pageCache, for running
// multiple service instances against one shared cache.
type redisPageCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// Set implements the catalog.PageCache interface.
func (c *redisPageCache) Set(key string, page catalog.Page) error {
	item := catalog.PageCacheItem{
		Page:    page,
		Created: time.Now(),
	}
	data, err := gobEncode(item)
	if err != nil {
		return err
	}
	return c.rdb.Set(context.Background(), "page:"+key, data, 0).Err()
}

// Get implements the catalog.PageCache interface.
func (c *redisPageCache) Get(key string) (catalog.Page, time.Time, bool, error) {
	data, err := c.rdb.Get(context.Background(), "page:"+key).Bytes()
	if err == redis.Nil {
		return catalog.Page{}, time.Time{}, false, nil
	} else if err != nil {
		return catalog.Page{}, time.Time{}, false, fmt.Errorf("Couldn't get item from Redis: %v", err)
	}
	var item catalog.PageCacheItem
	if err = gobDecode(data, &item); err != nil {
		return catalog.Page{}, time.Time{}, true, err
	}
	return item.Page, item.Created, true, nil
}

var _ catalog.DetailCache = (*redisDetailCache)(nil)

// redisDetailCache is the Redis-backed alternative to detailCache.
type redisDetailCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// Set implements the catalog.DetailCache interface.
func (c *redisDetailCache) Set(key string, detail catalog.Detail) error {
	item := catalog.DetailCacheItem{
		Detail:  detail,
		Created: time.Now(),
	}
	data, err := gobEncode(item)
	if err != nil {
		return err
	}
	return c.rdb.Set(context.Background(), "detail:"+key, data, 0).Err()
}

// Get implements the catalog.DetailCache interface.
func (c *redisDetailCache) Get(key string) (catalog.Detail, time.Time, bool, error) {
	data, err := c.rdb.Get(context.Background(), "detail:"+key).Bytes()
	if err == redis.Nil {
		return catalog.Detail{}, time.Time{}, false, nil
	} else if err != nil {
		return catalog.Detail{}, time.Time{}, false, fmt.Errorf("Couldn't get item from Redis: %v", err)
	}
	var item catalog.DetailCacheItem
	if err = gobDecode(data, &item); err != nil {
		return catalog.Detail{}, time.Time{}, true, err
	}
	return item.Detail, item.Created, true, nil
}

func gobEncode(item interface{}) ([]byte, error) {
	writer := bytes.Buffer{}
	encoder := gob.NewEncoder(&writer)
	if err := encoder.Encode(item); err != nil {
		return nil, fmt.Errorf("Couldn't encode item: %v", err)
	}
	return writer.Bytes(), nil
}

func gobDecode(data []byte, item interface{}) error {
	reader := bytes.NewReader(data)
	decoder := gob.NewDecoder(reader)
	if err := decoder.Decode(item); err != nil {
		return fmt.Errorf("Couldn't decode item: %v", err)
	}
	return nil
}

func saveGoCache(items map[string]gocache.Item, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("Couldn't create go-cache file: %v", err)
	}
	defer file.Close()
	encoder := gob.NewEncoder(file)
	if err = encoder.Encode(items); err != nil {
		return fmt.Errorf("Couldn't encode items for go-cache file: %v", err)
	}
	return nil
}

func loadGoCache(filePath string) (map[string]gocache.Item, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("Couldn't open go-cache file: %v", err)
	}
	defer file.Close()
	decoder := gob.NewDecoder(file)
	result := map[string]gocache.Item{}
	if err = decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("Couldn't decode items from go-cache file: %v", err)
	}
	return result, nil
}

func persistCaches(ctx context.Context, cacheFilePath string, goCaches map[string]*gocache.Cache, logger *zap.Logger) {
	if ctx.Err() != nil {
		logger.Warn("Regular cache persistence triggered, but server is shutting down")
		return
	}

	logger.Info("Persisting caches...", zap.String("cacheFilePath", cacheFilePath))
	start := time.Now()

	// If the dir doesn't exist yet, we'll create it
	_, err := os.Stat(cacheFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(cacheFilePath, 0700); err != nil {
				logger.Error("Couldn't create cache directory", zap.Error(err), zap.String("dir", cacheFilePath))
				return
			}
			logger.Info("Created cache directory", zap.String("dir", cacheFilePath))
		} else {
			logger.Error("Couldn't get cache directory info", zap.Error(err), zap.String("dir", cacheFilePath))
			return
		}
	}

	for name, goCache := range goCaches {
		if err := saveGoCache(goCache.Items(), cacheFilePath+"/"+name+".gob"); err != nil {
			logger.Error("Couldn't save cache to file", zap.Error(err), zap.String("cache", name))
		}
	}

	duration := time.Since(start).Milliseconds()
	durationString := strconv.FormatInt(duration, 10) + "ms"
	logger.Info("Persisted caches", zap.String("duration", durationString))
}

func logCacheStats(goCaches map[string]*gocache.Cache, logger *zap.Logger) {
	for name, goCache := range goCaches {
		logger.Info("Cache stats", zap.String("cache", name), zap.Int("itemCount", goCache.ItemCount()))
	}
}
