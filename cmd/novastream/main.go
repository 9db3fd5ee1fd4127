package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kaizorxxx/novastream/pkg/catalog"
	"github.com/kaizorxxx/novastream/pkg/fetch"
	"github.com/kaizorxxx/novastream/pkg/logadapter"
	"github.com/kaizorxxx/novastream/pkg/playback"
	"github.com/kaizorxxx/novastream/pkg/stream"
	"github.com/kaizorxxx/novastream/pkg/synthetic"
)

const version = "0.1.0"

func init() {
	// Make predicting "random" numbers harder (the fetcher randomizes its UA)
	rand.Seed(time.Now().UnixNano())
}

func main() {
	mainCtx, mainCtxCancel := context.WithCancel(context.Background())
	defer mainCtxCancel()

	// Bootstrap logger until we know the configured level and encoding
	logger, err := createLogger("debug", "console")
	if err != nil {
		panic(err)
	}

	logger.Info("Parsing config...")
	config := parseConfig(logger)
	config.validate(logger)
	configJSON, err := json.Marshal(config)
	if err != nil {
		logger.Fatal("Couldn't marshal config to JSON", zap.Error(err))
	}
	logger.Info("Parsed config", zap.ByteString("config", configJSON))

	if logger, err = createLogger(config.LogLevel, config.LogEncoding); err != nil {
		logger.Fatal("Couldn't create logger with configured level and encoding", zap.Error(err))
	}
	defer logger.Sync()

	// Caches

	registerTypes()
	goCaches := map[string]*gocache.Cache{}
	var pages catalog.PageCache
	var details catalog.DetailCache
	if config.RedisAddr == "" {
		goCaches["page"] = loadOrCreateGoCache(config.CachePath+"/page.gob", config.CacheAgeCatalog, logger)
		goCaches["detail"] = loadOrCreateGoCache(config.CachePath+"/detail.gob", config.CacheAgeCatalog, logger)
		pages = &pageCache{cache: goCaches["page"]}
		details = &detailCache{cache: goCaches["detail"]}
	} else {
		rdb := newRedisClient(config.RedisAddr, config.RedisCreds, logger)
		pages = &redisPageCache{rdb: rdb, logger: logger}
		details = &redisDetailCache{rdb: rdb, logger: logger}
	}

	// Persistent store for resolved stream sources

	badgerOpts := badger.DefaultOptions(config.StoragePath).
		WithLogger(logadapter.NewBadger2Zap(logger)).
		WithSyncWrites(false)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		logger.Fatal("Couldn't open BadgerDB", zap.Error(err), zap.String("storagePath", config.StoragePath))
	}
	defer db.Close()
	results := &resultStore{db: db, keyPrefix: "result:"}

	// Clients

	paths := config.ProxyPrefixes
	if len(paths) == 0 {
		paths = fetch.DefaultPaths
	}
	fetcherOpts := fetch.NewFetcherOpts(paths, config.FetchTimeout, config.SocksProxyAddr)
	fetcher, err := fetch.NewFetcher(fetcherOpts, logger)
	if err != nil {
		logger.Fatal("Couldn't create fetcher", zap.Error(err))
	}

	generator := synthetic.Generator{}

	catalogOpts := catalog.NewClientOpts(config.UpstreamURL, config.CacheAgeCatalog)
	catalogClient, err := catalog.NewClient(catalogOpts, fetcher, generator, pages, details, logger)
	if err != nil {
		logger.Fatal("Couldn't create catalog client", zap.Error(err))
	}

	prober := stream.NewEmbedProber(config.FetchTimeout, logger)
	resolverOpts := stream.NewResolverOpts(config.UpstreamURL, config.CacheAgeStreams)
	resolver, err := stream.NewResolver(resolverOpts, fetcher, results, prober, logger)
	if err != nil {
		logger.Fatal("Couldn't create stream resolver", zap.Error(err))
	}

	// Playback sessions

	adPolicy := playback.AdPolicy{
		Enabled:       config.AdsEnabled,
		Preroll:       config.PrerollEnabled,
		PauseAd:       config.PauseAdEnabled,
		DirectLink:    config.DirectLinkEnabled,
		DirectLinkURL: config.DirectLinkURL,
		PopunderURL:   config.PopunderURL,
	}
	controllerOpts := playback.NewControllerOpts(config.AutoAdvanceSeconds, config.QualityMarker)
	sessions := newSessionManager(controllerOpts, resolver, adPolicy, logger)
	defer sessions.close()

	// HTTP server

	app := fiber.New(fiber.Config{
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          15 * time.Second,
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(cors.New())
	app.Use(createLoggingMiddleware(logger))

	app.Get("/health", createHealthHandler())
	v1 := app.Group("/v1")
	v1.Get("/home", createHomeHandler(catalogClient))
	v1.Get("/search", createSearchHandler(catalogClient))
	v1.Get("/batch", createBatchHandler(catalogClient))
	v1.Get("/schedule", createScheduleHandler(catalogClient))
	v1.Get("/detail/:slug", createDetailHandler(catalogClient))
	v1.Get("/watch/:slug", createWatchHandler(resolver, generator, config.QualityMarker, logger))

	session := v1.Group("/session", createSessionMiddleware())
	session.Get("/", createSessionSnapshotHandler(sessions, logger))
	session.Post("/event/:event", createSessionEventHandler(sessions, logger))
	session.Post("/:slug", createSelectEpisodeHandler(catalogClient, sessions, logger))

	stoppingSrv := make(chan struct{})
	go func() {
		addr := config.BindAddr + ":" + strconv.Itoa(config.Port)
		logger.Info("Starting server", zap.String("address", addr), zap.String("version", version))
		if err := app.Listen(addr); err != nil {
			select {
			case <-stoppingSrv:
				// Expected error during shutdown
			default:
				logger.Fatal("Couldn't start server", zap.Error(err))
			}
		}
	}()

	// Background tasks

	go runBadgerGC(mainCtx, db, logger)

	if config.RedisAddr == "" {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-mainCtx.Done():
					return
				case <-ticker.C:
					persistCaches(mainCtx, config.CachePath, goCaches, logger)
					logCacheStats(goCaches, logger)
				}
			}
		}()
	}

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("Received signal, shutting down server...", zap.Stringer("signal", sig))
	close(stoppingSrv)
	mainCtxCancel()
	if err := app.Shutdown(); err != nil {
		logger.Error("Error shutting down server", zap.Error(err))
	}
	if config.RedisAddr == "" {
		// ctx is canceled, so persist directly instead of via persistCaches
		for name, goCache := range goCaches {
			if err := saveGoCache(goCache.Items(), config.CachePath+"/"+name+".gob"); err != nil {
				logger.Error("Couldn't save cache to file during shutdown", zap.Error(err), zap.String("cache", name))
			}
		}
	}
	logger.Info("Finished shutting down server")
}

func createLogger(level, encoding string) (*zap.Logger, error) {
	var logLevel zapcore.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(logLevel)
	logConfig.Encoding = encoding
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	// Disable stack traces below error level, they're noise in a service log
	logConfig.DisableStacktrace = true
	return logConfig.Build()
}

func loadOrCreateGoCache(filePath string, expiration time.Duration, logger *zap.Logger) *gocache.Cache {
	items, err := loadGoCache(filePath)
	if err != nil {
		logger.Info("Couldn't load cache from file, starting with an empty one", zap.Error(err), zap.String("filePath", filePath))
		return gocache.New(expiration, expiration)
	}
	logger.Info("Loaded cache from file", zap.String("filePath", filePath), zap.Int("itemCount", len(items)))
	return gocache.NewFrom(expiration, expiration, items)
}

func newRedisClient(addr, creds string, logger *zap.Logger) *redis.Client {
	opts := &redis.Options{Addr: addr}
	if creds != "" {
		parts := strings.SplitN(creds, ":", 2)
		if len(parts) == 2 {
			opts.Username = parts[0]
			opts.Password = parts[1]
		} else {
			opts.Password = creds
		}
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Couldn't ping Redis", zap.Error(err), zap.String("redisAddr", addr))
	}
	return rdb
}
