// Package client provides the authenticated HTTP fetch layer of the row
// engine: it attaches bearer tokens, decodes JSON payloads, classifies
// failures, and drives the single forced token refresh on unauthorized
// responses.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/smowry40/sustainalytics-fdw/pkg/auth"
	"github.com/smowry40/sustainalytics-fdw/pkg/logging"
	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

// Prometheus metrics for fetch operations.
var (
	fdwRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fdw_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	fdwRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fdw_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	fdwErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fdw_errors_total",
		Help: "Total fetch errors by kind",
	}, []string{"kind"})
)

// maxErrorBodyBytes caps the response body excerpt carried in error messages.
const maxErrorBodyBytes = 256

// Config holds fetcher configuration.
type Config struct {
	// Tokens supplies bearer tokens and owns the API base URL.
	Tokens *auth.Manager

	// HTTPClient used for data requests (default: 30s timeout).
	HTTPClient *http.Client
}

// Fetcher issues authenticated GET requests against the API.
type Fetcher struct {
	tokens     *auth.Manager
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Tokens == nil {
		return nil, sustainalytics.NewConfigError("token manager is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Fetcher{
		tokens:     cfg.Tokens,
		httpClient: httpClient,
		logger:     logging.NewLogger("fetcher"),
	}, nil
}

// GetJSON fetches endpoint with the given query parameters and decodes the
// 2xx response body into v. A 401/403 triggers exactly one token refresh and
// request retry; a second unauthorized response surfaces an auth error.
// Transport errors are not retried here; that policy belongs to the caller.
func (f *Fetcher) GetJSON(ctx context.Context, endpoint string, query url.Values, v any) error {
	start := time.Now()
	defer func() {
		fdwRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	tok, err := f.tokens.Token(ctx)
	if err != nil {
		fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindAuth)).Inc()
		return err
	}

	body, status, err := f.do(ctx, endpoint, query, tok.Value)
	if err != nil {
		return err
	}

	if unauthorized(status) {
		f.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", status).
			Msg("Unauthorized response, refreshing token")

		fresh, err := f.tokens.Refresh(ctx, tok.Value)
		if err != nil {
			fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindAuth)).Inc()
			return err
		}

		body, status, err = f.do(ctx, endpoint, query, fresh.Value)
		if err != nil {
			return err
		}
		if unauthorized(status) {
			fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindAuth)).Inc()
			f.logger.Error().
				Str("endpoint", endpoint).
				Int("status", status).
				Msg("Token rejected after forced refresh")
			return &sustainalytics.Error{
				Kind: sustainalytics.ErrorKindAuth, Endpoint: endpoint,
				StatusCode: status, Message: "token rejected after refresh",
			}
		}
	}

	if status < 200 || status >= 300 {
		fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindHTTPStatus)).Inc()
		f.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", status).
			Msg("API request error")
		return &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindHTTPStatus, Endpoint: endpoint,
			StatusCode: status, Message: excerpt(body),
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindDecode)).Inc()
		f.logger.Error().
			Str("endpoint", endpoint).
			Err(err).
			Msg("Malformed response body")
		return &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindDecode, Endpoint: endpoint,
			Message: "invalid json body", Err: err,
		}
	}

	return nil
}

// do executes a single authenticated GET and returns the full body and
// status. Only transport-level failures are errors here; status handling is
// the caller's concern.
func (f *Fetcher) do(ctx context.Context, endpoint string, query url.Values, token string) ([]byte, int, error) {
	u := f.tokens.BaseURL() + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindTransport)).Inc()
		return nil, 0, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindTransport, Endpoint: endpoint,
			Message: "create request", Err: err,
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	f.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", query.Encode()).
		Msg("Executing API request")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindTransport)).Inc()
		fdwRequestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		f.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, 0, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindTransport, Endpoint: endpoint, Err: err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fdwErrorsTotal.WithLabelValues(string(sustainalytics.ErrorKindTransport)).Inc()
		return nil, 0, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindTransport, Endpoint: endpoint,
			Message: "read response body", Err: err,
		}
	}

	fdwRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return body, resp.StatusCode, nil
}

// unauthorized reports whether status is an implicit token-expiry signal.
// The API answers 403 as well as 401 for stale tokens.
func unauthorized(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// excerpt returns a bounded slice of the body for error context.
func excerpt(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return string(body)
}
