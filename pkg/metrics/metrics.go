// Package metrics provides the Prometheus registry and HTTP handler for the
// people enricher. All metrics are defined in their respective packages
// (enrich, client, ratelimit, cache) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the enricher.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer backing Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric exported by the enricher.
var Names = []string{
	"enrich_items_total",
	"enrich_fetches_in_flight",
	"enrich_runs_total",
	"enrich_run_duration_seconds",
	"enrich_client_requests_total",
	"enrich_client_request_duration_seconds",
	"enrich_client_errors_total",
	"enrich_client_retries_total",
	"enrich_client_retry_backoff_seconds",
	"enrich_client_retry_exhausted_total",
	"enrich_backoff_pauses_total",
	"enrich_backoff_wait_seconds",
	"enrich_backoff_store_errors_total",
	"enrich_cache_hits_total",
	"enrich_cache_misses_total",
	"enrich_cache_errors_total",
}

// Metrics Documentation
//
// Pipeline Metrics (pkg/enrich):
//   - enrich_items_total{outcome} (Counter): Processed IDs by outcome (success, failure, rate_limited, cancelled)
//   - enrich_fetches_in_flight (Gauge): Attribute fetches currently in flight, never above the worker count
//   - enrich_runs_total{status} (Counter): Runs by status (ok, source_error, cancelled, aborted)
//   - enrich_run_duration_seconds (Histogram): Run duration
//
// Request Metrics (pkg/client):
//   - enrich_client_requests_total{status} (Counter): Requests by HTTP status
//   - enrich_client_request_duration_seconds (Histogram): Request duration
//   - enrich_client_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, parse)
//
// Retry Metrics (pkg/client):
//   - enrich_client_retries_total{error_class} (Counter): Retry attempts by error class
//   - enrich_client_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - enrich_client_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Backoff Gate Metrics (pkg/ratelimit):
//   - enrich_backoff_pauses_total (Counter): Times the shared backoff window was extended
//   - enrich_backoff_wait_seconds (Histogram): Time workers spent waiting on the gate
//   - enrich_backoff_store_errors_total{operation} (Counter): Redis backoff store errors
//
// Cache Metrics (pkg/cache):
//   - enrich_cache_hits_total (Counter): Attribute cache hits
//   - enrich_cache_misses_total (Counter): Attribute cache misses
//   - enrich_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Per-item failure rate
//   rate(enrich_items_total{outcome="failure"}[5m]) / rate(enrich_items_total[5m])
//
//   # Cache Hit Rate
//   sum(rate(enrich_cache_hits_total[5m])) /
//   (sum(rate(enrich_cache_hits_total[5m])) + sum(rate(enrich_cache_misses_total[5m])))
//
//   # Time spent backing off
//   rate(enrich_backoff_wait_seconds_sum[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(enrich_client_request_duration_seconds_bucket[5m]))
