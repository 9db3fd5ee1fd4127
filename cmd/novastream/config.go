package main

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type config struct {
	BindAddr           string        `json:"bindAddr"`
	Port               int           `json:"port"`
	UpstreamURL        string        `json:"upstreamURL"`
	ProxyPrefixes      []string      `json:"proxyPrefixes"`
	SocksProxyAddr     string        `json:"socksProxyAddr"`
	FetchTimeout       time.Duration `json:"fetchTimeout"`
	CacheAgeCatalog    time.Duration `json:"cacheAgeCatalog"`
	CacheAgeStreams    time.Duration `json:"cacheAgeStreams"`
	AutoAdvanceSeconds int           `json:"autoAdvanceSeconds"`
	QualityMarker      string        `json:"qualityMarker"`
	RedisAddr          string        `json:"redisAddr"`
	RedisCreds         string        `json:"redisCreds"`
	StoragePath        string        `json:"storagePath"`
	CachePath          string        `json:"cachePath"`
	LogLevel           string        `json:"logLevel"`
	LogEncoding        string        `json:"logEncoding"`
	AdsEnabled         bool          `json:"adsEnabled"`
	PrerollEnabled     bool          `json:"prerollEnabled"`
	PauseAdEnabled     bool          `json:"pauseAdEnabled"`
	DirectLinkEnabled  bool          `json:"directLinkEnabled"`
	DirectLinkURL      string        `json:"directLinkURL"`
	PopunderURL        string        `json:"popunderURL"`
	EnvPrefix          string        `json:"envPrefix"`
}

func parseConfig(logger *zap.Logger) config {
	result := config{}

	// Flags
	var (
		bindAddr           = flag.String("bindAddr", "localhost", `Local interface address to bind to. "localhost" only allows access from the local host. "0.0.0.0" binds to all network interfaces.`)
		port               = flag.Int("port", 8080, "Port to listen on")
		upstreamURL        = flag.String("upstreamURL", "https://rgsordertracking.com/animekompi/endpoints", "Base URL of the upstream content API endpoint directory")
		proxyPrefixes      = flag.String("proxyPrefixes", "", `Ordered comma-separated list of relay proxy prefixes the target URL is appended to (percent-encoded). An empty element means a direct request. Keep empty for the built-in default path list.`)
		socksProxyAddr     = flag.String("socksProxyAddr", "", "SOCKS5 proxy address, tried as an additional network path after all others missed (\"127.0.0.1:9050\" would be a typical value for TOR)")
		fetchTimeout       = flag.Duration("fetchTimeout", 5*time.Second, "Timeout per network path attempt. The format must be acceptable by Go's 'time.ParseDuration()', for example \"5s\".")
		cacheAgeCatalog    = flag.Duration("cacheAgeCatalog", 15*time.Minute, "Max age of cache entries for catalog pages and details")
		cacheAgeStreams    = flag.Duration("cacheAgeStreams", 6*time.Hour, "Max age of persisted entries for resolved stream sources")
		autoAdvanceSeconds = flag.Int("autoAdvanceSeconds", 10, "Seconds the end-of-episode auto-advance countdown starts from")
		qualityMarker      = flag.String("qualityMarker", "720", "Substring of a streaming server name that marks the preferred default source")
		redisAddr          = flag.String("redisAddr", "", `Redis host and port, for example "localhost:6379". It's used for the catalog caches. Keep empty to use in-memory go-cache.`)
		redisCreds         = flag.String("redisCreds", "", `Credentials for Redis. Password for Redis version 5 and older, username and password for Redis version 6 and newer. Use the colon character (":") for separating username and password.`)
		storagePath        = flag.String("storagePath", "", `Path for storing the data of the persistent DB which stores resolved stream sources. An empty value will lead to 'os.UserCacheDir()+"/novastream/badger"'.`)
		cachePath          = flag.String("cachePath", "", `Path for loading persisted caches on startup and persisting the current cache in regular intervals. An empty value will lead to 'os.UserCacheDir()+"/novastream/cache"'.`)
		logLevel           = flag.String("logLevel", "debug", `Log level to show only logs with the given and more severe levels. Can be "debug", "info", "warn", "error".`)
		logEncoding        = flag.String("logEncoding", "console", `Log encoding. Can be "console" or "json", where "json" makes more sense when using centralized logging solutions like ELK, Graylog or Loki.`)
		adsEnabled         = flag.Bool("adsEnabled", false, "Master switch for all monetization gates")
		prerollEnabled     = flag.Bool("prerollEnabled", false, "Gate the first play behind a preroll redirect")
		pauseAdEnabled     = flag.Bool("pauseAdEnabled", false, "Gate resumption after a pause behind an ad")
		directLinkEnabled  = flag.Bool("directLinkEnabled", false, "Intercept the first episode selection per session with a direct-link redirect")
		directLinkURL      = flag.String("directLinkURL", "", "Redirect target of the one-shot direct-link gate")
		popunderURL        = flag.String("popunderURL", "", "Redirect target of the preroll and pause gates")
		envPrefix          = flag.String("envPrefix", "", "Prefix for environment variables")
	)

	flag.Parse()

	if *envPrefix != "" && !strings.HasSuffix(*envPrefix, "_") {
		*envPrefix += "_"
	}
	result.EnvPrefix = *envPrefix

	// Only overwrite the values by their env var counterparts that have not been set (and that *are* set via env var).
	var err error
	if !isArgSet("bindAddr") {
		if val, ok := os.LookupEnv(*envPrefix + "BIND_ADDR"); ok {
			*bindAddr = val
		}
	}
	result.BindAddr = *bindAddr

	if !isArgSet("port") {
		if val, ok := os.LookupEnv(*envPrefix + "PORT"); ok {
			if *port, err = strconv.Atoi(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to int", zap.Error(err), zap.String("envVar", "PORT"))
			}
		}
	}
	result.Port = *port

	if !isArgSet("upstreamURL") {
		if val, ok := os.LookupEnv(*envPrefix + "UPSTREAM_URL"); ok {
			*upstreamURL = val
		}
	}
	result.UpstreamURL = strings.TrimSuffix(*upstreamURL, "/")

	if !isArgSet("proxyPrefixes") {
		if val, ok := os.LookupEnv(*envPrefix + "PROXY_PREFIXES"); ok {
			*proxyPrefixes = val
		}
	}
	if *proxyPrefixes != "" {
		for _, prefix := range strings.Split(*proxyPrefixes, ",") {
			result.ProxyPrefixes = append(result.ProxyPrefixes, strings.TrimSpace(prefix))
		}
	}

	if !isArgSet("socksProxyAddr") {
		if val, ok := os.LookupEnv(*envPrefix + "SOCKS_PROXY_ADDR"); ok {
			*socksProxyAddr = val
		}
	}
	result.SocksProxyAddr = *socksProxyAddr

	if !isArgSet("fetchTimeout") {
		if val, ok := os.LookupEnv(*envPrefix + "FETCH_TIMEOUT"); ok {
			if *fetchTimeout, err = time.ParseDuration(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to time.Duration", zap.Error(err), zap.String("envVar", "FETCH_TIMEOUT"))
			}
		}
	}
	result.FetchTimeout = *fetchTimeout

	if !isArgSet("cacheAgeCatalog") {
		if val, ok := os.LookupEnv(*envPrefix + "CACHE_AGE_CATALOG"); ok {
			if *cacheAgeCatalog, err = time.ParseDuration(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to time.Duration", zap.Error(err), zap.String("envVar", "CACHE_AGE_CATALOG"))
			}
		}
	}
	result.CacheAgeCatalog = *cacheAgeCatalog

	if !isArgSet("cacheAgeStreams") {
		if val, ok := os.LookupEnv(*envPrefix + "CACHE_AGE_STREAMS"); ok {
			if *cacheAgeStreams, err = time.ParseDuration(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to time.Duration", zap.Error(err), zap.String("envVar", "CACHE_AGE_STREAMS"))
			}
		}
	}
	result.CacheAgeStreams = *cacheAgeStreams

	if !isArgSet("autoAdvanceSeconds") {
		if val, ok := os.LookupEnv(*envPrefix + "AUTO_ADVANCE_SECONDS"); ok {
			if *autoAdvanceSeconds, err = strconv.Atoi(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to int", zap.Error(err), zap.String("envVar", "AUTO_ADVANCE_SECONDS"))
			}
		}
	}
	result.AutoAdvanceSeconds = *autoAdvanceSeconds

	if !isArgSet("qualityMarker") {
		if val, ok := os.LookupEnv(*envPrefix + "QUALITY_MARKER"); ok {
			*qualityMarker = val
		}
	}
	result.QualityMarker = *qualityMarker

	if !isArgSet("redisAddr") {
		if val, ok := os.LookupEnv(*envPrefix + "REDIS_ADDR"); ok {
			*redisAddr = val
		}
	}
	result.RedisAddr = *redisAddr

	if !isArgSet("redisCreds") {
		if val, ok := os.LookupEnv(*envPrefix + "REDIS_CREDS"); ok {
			*redisCreds = val
		}
	}
	result.RedisCreds = *redisCreds

	if !isArgSet("storagePath") {
		if val, ok := os.LookupEnv(*envPrefix + "STORAGE_PATH"); ok {
			*storagePath = val
		}
	}
	result.StoragePath = *storagePath

	if !isArgSet("cachePath") {
		if val, ok := os.LookupEnv(*envPrefix + "CACHE_PATH"); ok {
			*cachePath = val
		}
	}
	result.CachePath = *cachePath

	if !isArgSet("logLevel") {
		if val, ok := os.LookupEnv(*envPrefix + "LOG_LEVEL"); ok {
			*logLevel = val
		}
	}
	result.LogLevel = *logLevel

	if !isArgSet("logEncoding") {
		if val, ok := os.LookupEnv(*envPrefix + "LOG_ENCODING"); ok {
			*logEncoding = val
		}
	}
	result.LogEncoding = *logEncoding

	if !isArgSet("adsEnabled") {
		if val, ok := os.LookupEnv(*envPrefix + "ADS_ENABLED"); ok {
			if *adsEnabled, err = strconv.ParseBool(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to bool", zap.Error(err), zap.String("envVar", "ADS_ENABLED"))
			}
		}
	}
	result.AdsEnabled = *adsEnabled

	if !isArgSet("prerollEnabled") {
		if val, ok := os.LookupEnv(*envPrefix + "PREROLL_ENABLED"); ok {
			if *prerollEnabled, err = strconv.ParseBool(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to bool", zap.Error(err), zap.String("envVar", "PREROLL_ENABLED"))
			}
		}
	}
	result.PrerollEnabled = *prerollEnabled

	if !isArgSet("pauseAdEnabled") {
		if val, ok := os.LookupEnv(*envPrefix + "PAUSE_AD_ENABLED"); ok {
			if *pauseAdEnabled, err = strconv.ParseBool(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to bool", zap.Error(err), zap.String("envVar", "PAUSE_AD_ENABLED"))
			}
		}
	}
	result.PauseAdEnabled = *pauseAdEnabled

	if !isArgSet("directLinkEnabled") {
		if val, ok := os.LookupEnv(*envPrefix + "DIRECT_LINK_ENABLED"); ok {
			if *directLinkEnabled, err = strconv.ParseBool(val); err != nil {
				logger.Fatal("Couldn't convert environment variable from string to bool", zap.Error(err), zap.String("envVar", "DIRECT_LINK_ENABLED"))
			}
		}
	}
	result.DirectLinkEnabled = *directLinkEnabled

	if !isArgSet("directLinkURL") {
		if val, ok := os.LookupEnv(*envPrefix + "DIRECT_LINK_URL"); ok {
			*directLinkURL = val
		}
	}
	result.DirectLinkURL = *directLinkURL

	if !isArgSet("popunderURL") {
		if val, ok := os.LookupEnv(*envPrefix + "POPUNDER_URL"); ok {
			*popunderURL = val
		}
	}
	result.PopunderURL = *popunderURL

	return result
}

func (c *config) validate(logger *zap.Logger) {
	if c.StoragePath == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			logger.Fatal("Couldn't determine user cache directory via `os.UserCacheDir()`", zap.Error(err))
		}
		c.StoragePath = filepath.Join(userCacheDir, "novastream/badger")
	} else {
		c.StoragePath = filepath.Clean(c.StoragePath)
	}
	// If the dir doesn't exist, BadgerDB creates it when writing its DB files.

	if c.CachePath == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			logger.Fatal("Couldn't determine user cache directory via `os.UserCacheDir()`", zap.Error(err))
		}
		c.CachePath = filepath.Join(userCacheDir, "novastream/cache")
	} else {
		c.CachePath = filepath.Clean(c.CachePath)
	}
	// If the dir doesn't exist, it's created when the files are written.

	if c.DirectLinkEnabled && c.DirectLinkURL == "" {
		logger.Fatal("Enabling the direct-link gate requires setting directLinkURL")
	}

	if c.LogEncoding != "console" && c.LogEncoding != "json" {
		logger.Fatal(`logEncoding must be one of "console" or "json"`, zap.String("logEncoding", c.LogEncoding))
	}
}

// isArgSet returns true if the argument you're looking for is actually set as command line argument.
// Pass without "-" prefix.
func isArgSet(arg string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == arg {
			found = true
		}
	})
	return found
}
