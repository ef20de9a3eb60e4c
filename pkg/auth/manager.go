// Package auth implements the bearer token manager for the Sustainalytics
// API. Tokens are obtained via a client-credentials exchange and cached in
// memory; an optional Redis backend shares one token across processes. The
// issuer provides no usable expiry contract, so expiry is signaled reactively
// by the fetch layer calling Refresh after a 401/403.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/smowry40/sustainalytics-fdw/pkg/logging"
	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

// Prometheus metrics for token management.
var (
	tokenExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fdw_token_exchanges_total",
		Help: "Total credential exchanges by outcome",
	}, []string{"outcome"})

	tokenRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fdw_token_refreshes_total",
		Help: "Total forced token refreshes triggered by unauthorized responses",
	})

	tokenCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fdw_token_cache_hits_total",
		Help: "Token cache hits by layer",
	}, []string{"layer"})
)

// redisKeyPrefix namespaces shared token cache entries per client id.
const redisKeyPrefix = "sustainalytics:token:"

// Token is a bearer token with the time it was obtained. The issuer reports
// expires_in but the engine never trusts it for in-memory reuse; it only
// bounds the shared cache TTL.
type Token struct {
	Value      string    `json:"value"`
	ObtainedAt time.Time `json:"obtained_at"`
}

// Config holds token manager configuration.
type Config struct {
	// BaseURL of the Sustainalytics API. Defaults to the production URL.
	BaseURL string

	// Client credentials supplied as server options.
	ClientID     string
	ClientSecret string

	// HTTPClient used for the token exchange (default: 30s timeout).
	HTTPClient *http.Client

	// Redis enables the shared token cache when non-nil.
	Redis *redis.Client
}

// Manager obtains and caches bearer tokens. A single mutex serializes
// exchanges so at most one refresh is in flight per manager instance.
type Manager struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	redis        *redis.Client
	logger       zerolog.Logger

	mu    sync.Mutex
	token *Token
}

// New creates a token manager. Missing credentials are a config error,
// reported before any network call is made.
func New(cfg Config) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, sustainalytics.NewConfigError("missing server option client_id")
	}
	if cfg.ClientSecret == "" {
		return nil, sustainalytics.NewConfigError("missing server option client_secret")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sustainalytics.DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Manager{
		baseURL:      baseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		redis:        cfg.Redis,
		logger:       logging.NewLogger("token-manager"),
	}, nil
}

// BaseURL returns the normalized API base URL (no trailing slash).
func (m *Manager) BaseURL() string {
	return m.baseURL
}

// Token returns a valid bearer token, exchanging credentials on first use.
func (m *Manager) Token(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != nil {
		tokenCacheHitsTotal.WithLabelValues("memory").Inc()
		return *m.token, nil
	}

	if tok := m.sharedGet(ctx); tok != nil {
		tokenCacheHitsTotal.WithLabelValues("redis").Inc()
		m.token = tok
		return *tok, nil
	}

	return m.exchangeLocked(ctx)
}

// Refresh discards the cached token and performs exactly one new exchange.
// stale is the token value the caller saw rejected; if another scan already
// replaced it, the current token is returned without a further exchange.
func (m *Manager) Refresh(ctx context.Context, stale string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != nil && m.token.Value != stale {
		m.logger.Debug().Msg("Token already refreshed by another scan")
		return *m.token, nil
	}

	m.token = nil
	m.sharedDelete(ctx)
	tokenRefreshesTotal.Inc()

	m.logger.Warn().Msg("Forcing token refresh after unauthorized response")
	return m.exchangeLocked(ctx)
}

// exchangeLocked performs the credential exchange. Callers must hold m.mu.
// Every failure mode of the token endpoint is an auth error: the caller gets
// no retry beyond the single forced refresh.
func (m *Manager) exchangeLocked(ctx context.Context) (Token, error) {
	endpoint := sustainalytics.PathToken

	form := url.Values{}
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindAuth, Endpoint: endpoint,
			Message: "create request", Err: err,
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		tokenExchangesTotal.WithLabelValues("transport_error").Inc()
		m.logger.Error().Err(err).Msg("Credential exchange failed")
		return Token{}, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindAuth, Endpoint: endpoint,
			Message: "credential exchange", Err: err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tokenExchangesTotal.WithLabelValues("transport_error").Inc()
		return Token{}, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindAuth, Endpoint: endpoint,
			Message: "read response", Err: err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tokenExchangesTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
		m.logger.Error().
			Int("status", resp.StatusCode).
			Msg("Credential exchange rejected")
		return Token{}, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindAuth, Endpoint: endpoint,
			StatusCode: resp.StatusCode, Message: "credential exchange rejected",
		}
	}

	var tr sustainalytics.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		tokenExchangesTotal.WithLabelValues("decode_error").Inc()
		return Token{}, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindAuth, Endpoint: endpoint,
			Message: "invalid token response", Err: err,
		}
	}
	if tr.AccessToken == "" {
		tokenExchangesTotal.WithLabelValues("decode_error").Inc()
		return Token{}, &sustainalytics.Error{
			Kind: sustainalytics.ErrorKindAuth, Endpoint: endpoint,
			Message: "token response missing access_token",
		}
	}

	tok := Token{Value: tr.AccessToken, ObtainedAt: time.Now()}
	m.token = &tok
	m.sharedSet(ctx, tok, tr.ExpiresIn)

	tokenExchangesTotal.WithLabelValues("success").Inc()
	m.logger.Info().
		Str("token_type", tr.TokenType).
		Int64("expires_in", tr.ExpiresIn).
		Msg("Token exchanged")

	return tok, nil
}

// redisKey returns the shared cache key for this manager's client id.
func (m *Manager) redisKey() string {
	return redisKeyPrefix + m.clientID
}

// sharedGet reads the shared token cache. Cache errors are non-fatal: the
// manager falls back to a fresh exchange.
func (m *Manager) sharedGet(ctx context.Context) *Token {
	if m.redis == nil {
		return nil
	}

	data, err := m.redis.Get(ctx, m.redisKey()).Bytes()
	if err != nil {
		if err != redis.Nil {
			m.logger.Warn().Err(err).Msg("Shared token cache get failed")
		}
		return nil
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil || tok.Value == "" {
		m.logger.Warn().Err(err).Msg("Discarding corrupt shared token cache entry")
		return nil
	}

	m.logger.Debug().Msg("Token loaded from shared cache")
	return &tok
}

// sharedSet stores the token in the shared cache, bounded by expires_in.
func (m *Manager) sharedSet(ctx context.Context, tok Token, expiresIn int64) {
	if m.redis == nil {
		return
	}

	ttl := time.Duration(expiresIn) * time.Second
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	if err := m.redis.Set(ctx, m.redisKey(), data, ttl).Err(); err != nil {
		m.logger.Warn().Err(err).Msg("Shared token cache set failed")
	}
}

// sharedDelete drops the shared cache entry so other processes stop reusing
// a rejected token.
func (m *Manager) sharedDelete(ctx context.Context) {
	if m.redis == nil {
		return
	}
	if err := m.redis.Del(ctx, m.redisKey()).Err(); err != nil {
		m.logger.Warn().Err(err).Msg("Shared token cache delete failed")
	}
}
