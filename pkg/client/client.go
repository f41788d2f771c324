// Package client provides an HTTP client with the caching layer wired in:
// every call runs through the interception hookpoint first and through
// response capture afterwards. It doubles as the reference for hosts that
// wire the hookpoints into their own HTTP pipeline.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restcache/rest-cache/pkg/cache"
)

// Prometheus metrics for outbound requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restcache_requests_total",
		Help: "Total outbound requests by result",
	}, []string{"result"}) // "hit", "origin", "error"

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restcache_request_duration_seconds",
		Help:    "Outbound request duration in seconds by result",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"result"})
)

// DefaultTimeout bounds origin calls when the caller does not supply one.
const DefaultTimeout = 30 * time.Second

// Config holds the client configuration.
type Config struct {
	// Engine is the interception engine. Required.
	Engine *cache.Engine

	// Timeout is the default timeout for origin calls.
	Timeout time.Duration

	// UserAgent is sent on every origin call when set.
	UserAgent string

	// Transport overrides the HTTP transport (for testing).
	Transport http.RoundTripper
}

// Client executes outbound GET calls through the caching layer.
type Client struct {
	httpClient *http.Client
	engine     *cache.Engine
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// New creates a caching HTTP client.
func New(cfg Config) (*Client, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	if cfg.Transport != nil {
		httpClient.Transport = cfg.Transport
	}
	return &Client{
		httpClient: httpClient,
		engine:     cfg.Engine,
		timeout:    timeout,
		userAgent:  cfg.UserAgent,
		logger:     log.With().Str("component", "client").Logger(),
	}, nil
}

// Get performs a GET request through the caching layer with the given
// cache options.
func (c *Client) Get(ctx context.Context, url string, opts cache.Options) (*cache.Response, error) {
	return c.Do(ctx, url, cache.GetArgs(opts))
}

// Do performs a request through the caching layer. A fresh cache hit is
// returned without a network call; otherwise the origin is contacted and
// the exchange captured.
func (c *Client) Do(ctx context.Context, url string, args cache.Args) (*cache.Response, error) {
	started := time.Now()

	if res, ok := c.engine.OnBeforeRequest(ctx, url, args); ok {
		requestsTotal.WithLabelValues("hit").Inc()
		requestDuration.WithLabelValues("hit").Observe(time.Since(started).Seconds())
		return res, nil
	}

	res, err := c.Fetch(ctx, url, args)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	res = c.engine.OnAfterRequest(ctx, res, args, url)

	requestsTotal.WithLabelValues("origin").Inc()
	requestDuration.WithLabelValues("origin").Observe(time.Since(started).Seconds())
	return res, nil
}

// Fetch performs the real network call without consulting the cache on
// either side. The sweeper uses it to replay pending entries; capture is
// the sweeper's responsibility there.
func (c *Client) Fetch(ctx context.Context, url string, args cache.Args) (*cache.Response, error) {
	method := args.Method
	if method == "" {
		method = http.MethodGet
	}

	if args.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, args.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, values := range args.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	httpRes, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Origin request failed")
		return nil, fmt.Errorf("origin request: %w", err)
	}
	defer httpRes.Body.Close()

	res, err := cache.FromHTTP(httpRes)
	if err != nil {
		return nil, fmt.Errorf("read origin response: %w", err)
	}
	return res, nil
}
