// Package client provides the HTTP client for the people attribute service,
// with retries, request-rate limiting, optional Redis caching and typed
// failures.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/people-enricher/pkg/cache"
	"github.com/Sternrassler/people-enricher/pkg/logging"
	"github.com/Sternrassler/people-enricher/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrich_client_requests_total",
		Help: "Total people service requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrich_client_request_duration_seconds",
		Help:    "People service request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrich_client_errors_total",
		Help: "Total people service errors by class",
	}, []string{"class"})
)

// attributePath is the path template of the attribute endpoint, used as a
// low-cardinality label and in logs.
const attributePath = "/people/{id}/age"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 10

// Client fetches one integer attribute per person.
// It is safe for concurrent use; one instance should be shared by all workers.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Manager
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the people service, e.g. "https://some.example.api"
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// RequestTimeout bounds a single HTTP round trip
	RequestTimeout time.Duration

	// Rate Limiting
	RateLimit float64 // Requests per second, 0 disables the limiter
	Burst     int     // Limiter burst, defaults to 1

	// Retry (server and network errors only)
	MaxRetries     int // Total attempts including the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// DefaultRetryAfter is used when a rate-limited response carries no
	// usable Retry-After header
	DefaultRetryAfter time.Duration

	// Caching (optional)
	Redis    *redis.Client
	CacheTTL time.Duration // Fallback TTL when the service sends no caching headers
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         userAgent,
		RequestTimeout:    30 * time.Second,
		RateLimit:         0,
		Burst:             1,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		DefaultRetryAfter: 5 * time.Second,
		CacheTTL:          10 * time.Minute,
	}
}

// New creates a new people service client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = 5 * time.Second
	}

	logger := logging.NewLogger(logging.ComponentClient)

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logger,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// FetchAttribute returns the age of one person.
// Failures are *FetchError values; responses asking for backoff are
// *RateLimitedError values.
func (c *Client) FetchAttribute(ctx context.Context, personID int64) (int, error) {
	if personID <= 0 {
		errorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return 0, &FetchError{
			PersonID:   personID,
			ErrorClass: ErrorClassClient,
			Message:    "person id must be positive",
		}
	}

	key := cache.AttributeKey(personID)
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Int64("person_id", personID).Msg("Attribute served from cache")
			return entry.Value, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Int64("person_id", personID).Msg("Cache get error")
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, &FetchError{
				PersonID:   personID,
				ErrorClass: ErrorClassNetwork,
				Message:    "request rate limiter",
				Err:        err,
			}
		}
	}

	var value int
	var resp *http.Response
	retryConfig := RetryConfig{
		MaxAttempts:       c.config.MaxRetries,
		InitialBackoff:    c.config.InitialBackoff,
		MaxBackoff:        c.config.MaxBackoff,
		BackoffMultiplier: 2.0,
	}

	err := retryWithBackoff(ctx, retryConfig, c.logger, func() error {
		var attemptErr error
		value, resp, attemptErr = c.fetchOnce(ctx, personID)
		return attemptErr
	})
	if err != nil {
		if class := classOf(err); class != "" {
			errorsTotal.WithLabelValues(string(class)).Inc()
		}
		return 0, err
	}

	if c.cache != nil {
		c.storeInCache(ctx, key, value, resp)
	}

	return value, nil
}

// fetchOnce performs a single GET and interprets the response.
func (c *Client) fetchOnce(ctx context.Context, personID int64) (int, *http.Response, error) {
	endpoint := fmt.Sprintf("%s/people/%d/age", c.baseURL, personID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, &FetchError{
			PersonID:   personID,
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			Err:        err,
		}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/plain")

	c.logger.Debug().
		Int64("person_id", personID).
		Str("endpoint", attributePath).
		Msg("Executing people service request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return 0, nil, &FetchError{
			PersonID:   personID,
			ErrorClass: c.classifyError(nil, err),
			Message:    "http request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_, _ = io.Copy(io.Discard, resp.Body)

	if class := c.classifyError(resp, nil); class != "" {
		fetchErr := &FetchError{
			PersonID:   personID,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}

		c.logger.Debug().
			Int64("person_id", personID).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("People service request error")

		if class == ErrorClassRateLimit {
			return 0, resp, &RateLimitedError{
				FetchError: fetchErr,
				After:      ratelimit.ParseRetryAfter(resp.Header, c.config.DefaultRetryAfter),
			}
		}
		return 0, resp, fetchErr
	}

	if readErr != nil {
		return 0, resp, &FetchError{
			PersonID:   personID,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        readErr,
		}
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, resp, &FetchError{
			PersonID:   personID,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassParse,
			Message:    "response body is not an integer",
			Err:        err,
		}
	}

	return value, resp, nil
}

// classifyError categorizes a transport error or a response status.
// Returns "" for 2xx responses.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 520:
		return ErrorClassRateLimit
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ""
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx cannot carry an attribute and are treated like 4xx
		return ErrorClassClient
	}
}

// storeInCache caches a fetched value for as long as the response allows.
func (c *Client) storeInCache(ctx context.Context, key cache.Key, value int, resp *http.Response) {
	entry := &cache.Entry{
		Value:    value,
		Expires:  cache.ExpiresFromResponse(resp, c.config.CacheTTL),
		CachedAt: time.Now(),
	}
	if entry.TTL() <= 0 {
		return
	}

	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache attribute")
		return
	}

	c.logger.Debug().
		Str("key", key.String()).
		Dur("ttl", entry.TTL()).
		Msg("Cached attribute")
}

// Close releases idle connections held by the transport.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
