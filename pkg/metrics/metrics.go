// Package metrics provides centralized Prometheus metrics registry for the repricer.
// All metrics are defined in their respective packages (client, ratelimit,
// repricer, rates, runstore) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation for all available metrics and the
// HTTP handler that exposes them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer is the registry that Handler serves. Metrics register with the
// default registry via promauto in their respective packages.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - shopify_admin_requests_total{operation, status} (Counter): Requests by operation type (query, mutation) and HTTP status
//   - shopify_admin_request_duration_seconds{operation} (Histogram): Request duration by operation type
//   - shopify_admin_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, graphql)
//
// Retry Metrics (pkg/client):
//   - shopify_admin_retries_total{error_class} (Counter): Retry attempts by error class
//   - shopify_admin_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - shopify_admin_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Throttle Metrics (pkg/ratelimit):
//   - shopify_throttle_available_points (Gauge): Query cost points available at the last response
//   - shopify_throttle_waits_total (Counter): Requests delayed until the cost bucket refilled
//   - shopify_throttle_wait_seconds (Histogram): Time spent waiting for the cost bucket
//
// Run Metrics (pkg/repricer):
//   - repricer_runs_total{state} (Counter): Runs by terminal state (finished, aborted, configuration_error)
//   - repricer_items_total{result} (Counter): Items by result (updated, skipped, planned, failed)
//   - repricer_pages_total (Counter): Catalog pages processed
//   - repricer_run_duration_seconds (Histogram): Run duration
//   - repricer_active_runs (Gauge): Runs in progress
//
// Store Metrics (pkg/rates, pkg/runstore):
//   - rate_store_queries_total{operation, status} (Counter): Rate store reads and saves
//   - runstore_hits_total (Counter): Run summary lookups that found a run
//   - runstore_misses_total (Counter): Lookups of unknown or expired runs
//   - runstore_errors_total{operation} (Counter): Run store operation errors
//
// Example Prometheus Queries:
//
//   # Item failure ratio
//   sum(rate(repricer_items_total{result="failed"}[1h])) /
//   sum(rate(repricer_items_total{result=~"updated|failed"}[1h]))
//
//   # Aborted runs
//   increase(repricer_runs_total{state="aborted"}[1d]) > 0
//
//   # Cost bucket pressure
//   shopify_throttle_available_points < 200
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(shopify_admin_request_duration_seconds_bucket[5m]))
