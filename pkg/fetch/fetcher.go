package fetch

import (
	"context"
	"fmt"
	"io/ioutil"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Relay prefixes the target URL is appended to (percent-encoded).
// An empty prefix means a direct request to the target.
var DefaultPaths = []string{
	"",
	"https://api.allorigins.win/get?url=",
	"https://corsproxy.io/?",
	"https://api.codetabs.com/v1/proxy?quest=",
}

type FetcherOptions struct {
	Paths             []string
	PerAttemptTimeout time.Duration
	// Optional SOCKS5 proxy address. When set, one more path (a direct
	// request through the proxy) is tried after all others missed.
	SocksProxyAddr string
}

func NewFetcherOpts(paths []string, perAttemptTimeout time.Duration, socksProxyAddr string) FetcherOptions {
	return FetcherOptions{
		Paths:             paths,
		PerAttemptTimeout: perAttemptTimeout,
		SocksProxyAddr:    socksProxyAddr,
	}
}

var DefaultFetcherOpts = FetcherOptions{
	Paths:             DefaultPaths,
	PerAttemptTimeout: 5 * time.Second,
}

// path is one way to reach the target: an optional relay prefix plus the
// HTTP client to go through (the SOCKS path has its own client).
type path struct {
	prefix string
	client *http.Client
}

// Fetcher issues one logical request through an ordered list of network
// paths and returns the first structurally valid JSON payload.
// It's stateless apart from its configuration and safe for concurrent use.
type Fetcher struct {
	paths  []path
	logger *zap.Logger
}

func NewFetcher(opts FetcherOptions, logger *zap.Logger) (*Fetcher, error) {
	if len(opts.Paths) == 0 && opts.SocksProxyAddr == "" {
		return nil, fmt.Errorf("opts.Paths must not be empty")
	}
	if opts.PerAttemptTimeout == 0 {
		opts.PerAttemptTimeout = DefaultFetcherOpts.PerAttemptTimeout
	}

	plainClient := &http.Client{
		Timeout: opts.PerAttemptTimeout,
	}
	paths := make([]path, 0, len(opts.Paths)+1)
	for _, prefix := range opts.Paths {
		paths = append(paths, path{prefix: prefix, client: plainClient})
	}
	if opts.SocksProxyAddr != "" {
		socksClient, err := NewSocksHTTPclient(opts.PerAttemptTimeout, opts.SocksProxyAddr)
		if err != nil {
			return nil, fmt.Errorf("Couldn't create SOCKS5 HTTP client: %v", err)
		}
		paths = append(paths, path{prefix: "", client: socksClient})
	}

	return &Fetcher{
		paths:  paths,
		logger: logger,
	}, nil
}

// Fetch tries each configured path in order and returns the body of the
// first response that parses as JSON (after unwrapping a relay envelope).
// ok is false when every path missed. That's a normal outcome callers must
// branch on, not an error: timeouts, CORS relays being down and garbage
// payloads are all expected from the upstreams this deals with.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) ([]byte, bool) {
	zapFieldTarget := zap.String("target", targetURL)

	var missErrs error
	for i, p := range f.paths {
		reqURL := targetURL
		if p.prefix != "" {
			reqURL = p.prefix + url.QueryEscape(targetURL)
		}
		body, err := f.attempt(ctx, p.client, reqURL)
		if err != nil {
			missErrs = multierr.Append(missErrs, fmt.Errorf("path %v: %v", i, err))
			f.logger.Debug("Network path missed, trying next one", zap.Int("path", i), zap.Error(err), zapFieldTarget)
			continue
		}
		if i > 0 {
			f.logger.Debug("Resolved via relay path", zap.Int("path", i), zapFieldTarget)
		}
		return body, true
	}

	f.logger.Warn("All network paths missed", zap.Int("pathCount", len(f.paths)), zap.Error(missErrs), zapFieldTarget)
	return nil, false
}

func (f *Fetcher) attempt(ctx context.Context, client *http.Client, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Couldn't create GET request: %v", err)
	}
	// Some upstreams block requests based on User-Agent
	fakeVersion := strconv.Itoa(rand.Intn(10000))
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0."+fakeVersion+".149 Safari/537.36")

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Couldn't send GET request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Bad GET response: %v", res.StatusCode)
	}
	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("Couldn't read response body: %v", err)
	}

	body, err = unwrapRelayEnvelope(body)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("Response body is not valid JSON")
	}
	return body, nil
}

// unwrapRelayEnvelope unwraps an allorigins-style relay response
// ({"contents": "...", "status": {"http_code": 200}}) and fails the attempt
// when the relay itself reports an upstream failure.
// Payloads without such an envelope pass through untouched.
func unwrapRelayEnvelope(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return body, nil
	}
	parsed := gjson.ParseBytes(body)
	contents := parsed.Get("contents")
	statusCode := parsed.Get("status.http_code")
	if !contents.Exists() || !statusCode.Exists() {
		return body, nil
	}
	if statusCode.Int() >= 400 {
		return nil, fmt.Errorf("Relay reports upstream failure: HTTP %v", statusCode.Int())
	}
	if contents.String() == "" {
		return nil, fmt.Errorf("Relay envelope has empty contents")
	}
	return []byte(contents.String()), nil
}
