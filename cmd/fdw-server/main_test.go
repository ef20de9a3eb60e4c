package main

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smowry40/sustainalytics-fdw/internal/testutil"
	"github.com/smowry40/sustainalytics-fdw/pkg/auth"
	"github.com/smowry40/sustainalytics-fdw/pkg/client"
	"github.com/smowry40/sustainalytics-fdw/pkg/scan"
	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

func newFetcher(t *testing.T, mock *testutil.MockAPI) *client.Fetcher {
	t.Helper()

	tokens, err := auth.New(auth.Config{
		BaseURL:      mock.URL(),
		ClientID:     "id",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("auth.New() failed: %v", err)
	}

	f, err := client.New(client.Config{Tokens: tokens})
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}
	return f
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestTableHandler_StreamsNDJSON(t *testing.T) {
	mock := testutil.NewMockAPI("id", "secret")
	defer mock.Close()
	mock.GenerateItems(3)

	handler := tableHandler(newFetcher(t, mock), scan.EndpointDataServices)

	req := httptest.NewRequest("GET", "/tables/data_services?ProductId=42", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q, want application/x-ndjson", ct)
	}

	var lines []map[string]any
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var row map[string]any
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			t.Fatalf("Line is not JSON: %v", err)
		}
		lines = append(lines, row)
	}

	if len(lines) != 3 {
		t.Fatalf("Rows = %d, want 3", len(lines))
	}
	if lines[0]["entityId"] != "E0" {
		t.Errorf("First entityId = %v, want E0", lines[0]["entityId"])
	}
}

func TestTableHandler_MissingProductID(t *testing.T) {
	mock := testutil.NewMockAPI("id", "secret")
	defer mock.Close()

	handler := tableHandler(newFetcher(t, mock), scan.EndpointDataServices)

	req := httptest.NewRequest("GET", "/tables/data_services", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ProductId") {
		t.Errorf("Body %q should name the missing option", string(body))
	}
}

func TestTableHandler_Catalog(t *testing.T) {
	mock := testutil.NewMockAPI("id", "secret")
	defer mock.Close()
	mock.SetCatalog(`[
		{"productId": 1, "productName": "P", "packages": [
			{"packageId": 10, "packageName": "K", "clusters": [
				{"fieldClusterId": 100, "fieldClusterName": "C", "fieldDefinitions": [
					{"fieldId": 1000, "fieldName": "f"}
				]}
			]}
		]}
	]`)

	handler := tableHandler(newFetcher(t, mock), scan.EndpointFieldMappingDefinitions)

	req := httptest.NewRequest("GET", "/tables/field_mapping_definitions", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var row map[string]any
	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() {
		t.Fatal("Expected one row")
	}
	if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
		t.Fatalf("Row is not JSON: %v", err)
	}
	if row["field_name"] != "f" {
		t.Errorf("field_name = %v, want f", row["field_name"])
	}
	if row["product_id"] != "1" {
		t.Errorf("product_id = %v, want \"1\"", row["product_id"])
	}
}

func TestTableHandler_UpstreamFailure(t *testing.T) {
	mock := testutil.NewMockAPI("id", "secret")
	defer mock.Close()
	mock.SetHandler(sustainalytics.PathDataService, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	handler := tableHandler(newFetcher(t, mock), scan.EndpointDataServices)

	req := httptest.NewRequest("GET", "/tables/data_services?ProductId=42", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", w.Result().StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", sustainalytics.NewConfigError("bad option"), http.StatusBadRequest},
		{"schema", sustainalytics.NewSchemaError(sustainalytics.PathDataService, "missing id"), http.StatusBadGateway},
		{"http_status", &sustainalytics.Error{Kind: sustainalytics.ErrorKindHTTPStatus, StatusCode: 503}, http.StatusBadGateway},
		{"transport", &sustainalytics.Error{Kind: sustainalytics.ErrorKindTransport}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
