// Package metrics provides the centralized Prometheus registry reference for
// the row engine. All collectors are defined in their owning packages
// (auth, client, scan) via promauto to keep them next to the code they
// observe; this package documents what is available.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the engine.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the engine's metrics for exposition handlers.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Token Metrics (pkg/auth):
//   - fdw_token_exchanges_total{outcome} (Counter): Credential exchanges by outcome
//     (success, decode_error, transport_error, or HTTP status)
//   - fdw_token_refreshes_total (Counter): Forced refreshes after 401/403
//   - fdw_token_cache_hits_total{layer} (Counter): Token cache hits (memory, redis)
//
// Request Metrics (pkg/client):
//   - fdw_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - fdw_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - fdw_errors_total{kind} (Counter): Errors by kind
//     (auth, transport, http_status, decode)
//
// Scan Metrics (pkg/scan):
//   - fdw_scans_total{endpoint} (Counter): Table scans opened
//   - fdw_pages_fetched_total{endpoint} (Counter): Pages fetched (catalog counts as one)
//   - fdw_rows_yielded_total{endpoint} (Counter): Rows yielded to the host
//
// Example Prometheus Queries:
//
//   # Token refresh rate (stale-token churn)
//   rate(fdw_token_refreshes_total[5m])
//
//   # Rows per page served
//   rate(fdw_rows_yielded_total[5m]) / rate(fdw_pages_fetched_total[5m])
//
//   # Request Error Rate
//   rate(fdw_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fdw_request_duration_seconds_bucket[5m]))
