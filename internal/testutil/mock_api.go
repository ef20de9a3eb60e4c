// Package testutil provides a configurable mock Sustainalytics API server
// for tests: the token exchange, the paginated DataService feed, and the
// FieldMappingDefinitions catalog.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// PageRequest records one GET /v2/DataService call.
type PageRequest struct {
	ProductID       string
	Skip            int
	Take            int
	PackageIDs      string
	FieldClusterIDs string
	FieldIDs        string
}

// MockAPI is a configurable mock of the Sustainalytics API.
type MockAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc

	clientID     string
	clientSecret string
	tokenSeq     int
	currentToken string
	revoked      bool
	failAuth     bool
	forceUnauth  bool
	expiresIn    int64

	items   []json.RawMessage
	catalog string

	// Tracking
	tokenRequests     int
	dataRequests      []PageRequest
	dataRequestsTotal int
	catalogRequests   int
	lastRequestHeader http.Header
}

// NewMockAPI creates a mock API accepting the given client credentials.
func NewMockAPI(clientID, clientSecret string) *MockAPI {
	m := &MockAPI{
		handlers:     make(map[string]http.HandlerFunc),
		clientID:     clientID,
		clientSecret: clientSecret,
		expiresIn:    3600,
		catalog:      "[]",
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.route))
	return m
}

// URL returns the mock server URL, used as the base_url server option.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler overrides the response for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetItems configures the DataService feed. Each argument is one item's JSON
// object; pages are sliced from this list by Skip/Take.
func (m *MockAPI) SetItems(items ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = m.items[:0]
	for _, it := range items {
		m.items = append(m.items, json.RawMessage(it))
	}
}

// GenerateItems fills the feed with n well-formed items.
func (m *MockAPI) GenerateItems(n int) {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(
			`{"entityId":"E%d","entityName":"Entity %d","fields":{"score":%d}}`, i, i, i))
	}
	m.SetItems(items...)
}

// SetCatalog configures the FieldMappingDefinitions response body, a JSON
// array of products.
func (m *MockAPI) SetCatalog(jsonArray string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = jsonArray
}

// FailAuth makes the token endpoint answer 500 when enabled.
func (m *MockAPI) FailAuth(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAuth = fail
}

// RevokeToken invalidates the currently issued token. The next data request
// gets a 401; the next exchange issues a fresh token.
func (m *MockAPI) RevokeToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = true
}

// ForceUnauthorized makes data endpoints answer 401 regardless of the token,
// simulating credentials the API no longer accepts.
func (m *MockAPI) ForceUnauthorized(force bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceUnauth = force
}

// CurrentToken returns the most recently issued token value.
func (m *MockAPI) CurrentToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentToken
}

// TokenRequests returns the number of token exchanges performed.
func (m *MockAPI) TokenRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenRequests
}

// DataRequestsTotal returns the number of DataService requests received,
// including those rejected as unauthorized.
func (m *MockAPI) DataRequestsTotal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataRequestsTotal
}

// DataRequests returns the authorized DataService page requests in order.
func (m *MockAPI) DataRequests() []PageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PageRequest, len(m.dataRequests))
	copy(out, m.dataRequests)
	return out
}

// CatalogRequests returns the number of catalog fetches.
func (m *MockAPI) CatalogRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalogRequests
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequestHeader
}

func (m *MockAPI) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.lastRequestHeader = r.Header.Clone()
	handler, overridden := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if overridden {
		handler(w, r)
		return
	}

	switch r.URL.Path {
	case "/auth/token":
		m.handleToken(w, r)
	case "/v2/DataService":
		m.handleDataService(w, r)
	case "/v2/FieldMappingDefinitions":
		m.handleCatalog(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokenRequests++

	if m.failAuth {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"auth unavailable"}`)
		return
	}

	if err := r.ParseForm(); err != nil ||
		r.PostFormValue("client_id") != m.clientID ||
		r.PostFormValue("client_secret") != m.clientSecret {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
		return
	}

	m.tokenSeq++
	m.currentToken = fmt.Sprintf("token-%d", m.tokenSeq)
	m.revoked = false

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"expires_in":%d,"token_type":"Bearer"}`,
		m.currentToken, m.expiresIn)
}

// authorizedLocked checks the bearer header against the current token.
// Callers must hold m.mu.
func (m *MockAPI) authorizedLocked(r *http.Request) bool {
	if m.forceUnauth || m.revoked || m.currentToken == "" {
		return false
	}
	return r.Header.Get("Authorization") == "Bearer "+m.currentToken
}

func (m *MockAPI) handleDataService(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dataRequestsTotal++

	if !m.authorizedLocked(r) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_token"}`)
		return
	}

	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("Skip"))
	take, _ := strconv.Atoi(q.Get("Take"))

	m.dataRequests = append(m.dataRequests, PageRequest{
		ProductID:       q.Get("ProductId"),
		Skip:            skip,
		Take:            take,
		PackageIDs:      q.Get("PackageIds"),
		FieldClusterIDs: q.Get("FieldClusterIds"),
		FieldIDs:        q.Get("FieldIds"),
	})

	page := []json.RawMessage{}
	if skip < len(m.items) {
		end := skip + take
		if take <= 0 || end > len(m.items) {
			end = len(m.items)
		}
		page = m.items[skip:end]
	}

	body, _ := json.Marshal(page)
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (m *MockAPI) handleCatalog(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorizedLocked(r) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_token"}`)
		return
	}

	m.catalogRequests++
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, m.catalog)
}
