// Package config builds the enricher configuration from environment
// variables, falling back to defaults for anything unset or unparsable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/people-enricher/pkg/client"
	"github.com/Sternrassler/people-enricher/pkg/enrich"
	"github.com/Sternrassler/people-enricher/pkg/logging"
)

// Defaults
const (
	DefaultBaseURL           = "https://some.example.api"
	DefaultUserAgent         = "people-enricher/1.0"
	DefaultWorkers           = 5
	DefaultRequestTimeout    = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultRetryAfterDefault = 5 * time.Second
	DefaultIDFrom            = 1
	DefaultIDTo              = 99
	DefaultCacheTTL          = 10 * time.Minute
)

// Environment variable names
const (
	EnvBaseURL           = "ENRICH_BASE_URL"
	EnvUserAgent         = "ENRICH_USER_AGENT"
	EnvWorkers           = "ENRICH_WORKERS"
	EnvRequestTimeout    = "ENRICH_REQUEST_TIMEOUT"
	EnvRunTimeout        = "ENRICH_RUN_TIMEOUT"
	EnvRateLimit         = "ENRICH_RATE_LIMIT"
	EnvMaxRetries        = "ENRICH_MAX_RETRIES"
	EnvInitialBackoff    = "ENRICH_INITIAL_BACKOFF"
	EnvRetryAfterDefault = "ENRICH_RETRY_AFTER_DEFAULT"
	EnvFailFast          = "ENRICH_FAIL_FAST"
	EnvDBPath            = "ENRICH_DB_PATH"
	EnvDBQuery           = "ENRICH_DB_QUERY"
	EnvIDFrom            = "ENRICH_ID_FROM"
	EnvIDTo              = "ENRICH_ID_TO"
	EnvCacheTTL          = "ENRICH_CACHE_TTL"
	EnvRedisURL          = "REDIS_URL"
	EnvMetricsAddr       = "METRICS_ADDR"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogPretty         = "LOG_PRETTY"
)

// Config holds the configuration of one enricher process.
type Config struct {
	// Attribute service
	BaseURL           string
	UserAgent         string
	RequestTimeout    time.Duration
	RateLimit         float64 // requests per second, 0 = unlimited
	MaxRetries        int
	InitialBackoff    time.Duration
	RetryAfterDefault time.Duration

	// Pipeline
	Workers    int
	RunTimeout time.Duration // 0 = no deadline
	FailFast   bool

	// Identifier source: SQLite when DBPath is set, otherwise IDFrom..IDTo
	DBPath  string
	DBQuery string
	IDFrom  int64
	IDTo    int64

	// Redis (optional) backs the attribute cache and the shared backoff gate
	RedisURL string
	CacheTTL time.Duration

	// Observability
	MetricsAddr string // empty disables the metrics server
	LogLevel    logging.LogLevel
	LogPretty   bool
}

// Default returns a Config with all default values.
func Default() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         DefaultUserAgent,
		RequestTimeout:    DefaultRequestTimeout,
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		RetryAfterDefault: DefaultRetryAfterDefault,
		Workers:           DefaultWorkers,
		IDFrom:            DefaultIDFrom,
		IDTo:              DefaultIDTo,
		CacheTTL:          DefaultCacheTTL,
		LogLevel:          logging.LevelInfo,
	}
}

// FromEnv returns a Config with values from environment variables, falling
// back to defaults.
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv(EnvRunTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.RunTimeout = d
		}
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RateLimit = f
		}
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvInitialBackoff); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.InitialBackoff = d
		}
	}
	if v := os.Getenv(EnvRetryAfterDefault); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RetryAfterDefault = d
		}
	}
	if v := os.Getenv(EnvFailFast); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.FailFast = b
		}
	}

	cfg.DBPath = os.Getenv(EnvDBPath)
	cfg.DBQuery = os.Getenv(EnvDBQuery)

	if v := os.Getenv(EnvIDFrom); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.IDFrom = n
		}
	}
	if v := os.Getenv(EnvIDTo); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.IDTo = n
		}
	}

	cfg.RedisURL = os.Getenv(EnvRedisURL)
	if v := os.Getenv(EnvCacheTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.CacheTTL = d
		}
	}

	cfg.MetricsAddr = os.Getenv(EnvMetricsAddr)
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = logging.LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv(EnvLogPretty); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogPretty = b
		}
	}

	return cfg
}

// Validate checks the settings that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", EnvBaseURL))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1 (got %d)", EnvWorkers, c.Workers))
	}
	if c.DBPath == "" {
		if c.IDFrom < 1 {
			errs = append(errs, fmt.Errorf("%s must be >= 1 (got %d)", EnvIDFrom, c.IDFrom))
		}
		if c.IDFrom > c.IDTo {
			errs = append(errs, fmt.Errorf("%s (%d) must not exceed %s (%d)", EnvIDFrom, c.IDFrom, EnvIDTo, c.IDTo))
		}
	}

	return errors.Join(errs...)
}

// ClientConfig returns the attribute client configuration.
func (c *Config) ClientConfig() client.Config {
	cc := client.DefaultConfig(c.BaseURL, c.UserAgent)
	cc.RequestTimeout = c.RequestTimeout
	cc.RateLimit = c.RateLimit
	cc.MaxRetries = c.MaxRetries
	cc.InitialBackoff = c.InitialBackoff
	cc.DefaultRetryAfter = c.RetryAfterDefault
	cc.CacheTTL = c.CacheTTL
	return cc
}

// EnrichConfig returns the pipeline configuration.
func (c *Config) EnrichConfig() enrich.Config {
	ec := enrich.DefaultConfig()
	ec.Workers = c.Workers
	ec.FailFast = c.FailFast
	return ec
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Pretty = c.LogPretty
	return lc
}
