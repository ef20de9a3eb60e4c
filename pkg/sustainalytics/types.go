package sustainalytics

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultBaseURL is used when the server option base_url is absent.
const DefaultBaseURL = "https://api.sustainalytics.com"

// API endpoint paths.
const (
	PathToken                   = "/auth/token"
	PathDataService             = "/v2/DataService"
	PathFieldMappingDefinitions = "/v2/FieldMappingDefinitions"
)

// Take limits enforced on the DataService cursor.
const (
	DefaultTake = 10
	MaxTake     = 10
)

// TokenResponse is the body of a successful POST /auth/token exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope,omitempty"`
}

// DataServiceItem is one element of a GET /v2/DataService page.
// EntityID is kept raw because the API emits it as a string or a number
// depending on the product. Fields is passed through opaque.
type DataServiceItem struct {
	EntityID   json.RawMessage `json:"entityId"`
	EntityName *string         `json:"entityName"`
	Fields     json.RawMessage `json:"fields"`
}

// CatalogProduct is the root level of the FieldMappingDefinitions hierarchy.
// Identifying attributes are pointers (or raw) so that absence can be told
// apart from zero values during projection.
type CatalogProduct struct {
	ProductID   json.RawMessage  `json:"productId"`
	ProductName *string          `json:"productName"`
	Packages    []CatalogPackage `json:"packages"`
}

// CatalogPackage is the second level of the catalog hierarchy.
type CatalogPackage struct {
	PackageID   *int64           `json:"packageId"`
	PackageName *string          `json:"packageName"`
	Clusters    []CatalogCluster `json:"clusters"`
}

// CatalogCluster is the third level of the catalog hierarchy.
type CatalogCluster struct {
	FieldClusterID   *int64         `json:"fieldClusterId"`
	FieldClusterName *string        `json:"fieldClusterName"`
	FieldDefinitions []CatalogField `json:"fieldDefinitions"`
}

// CatalogField is a leaf field definition. Only FieldID and FieldName are
// required; the remaining attributes may be absent.
type CatalogField struct {
	FieldID        *int64  `json:"fieldId"`
	FieldName      *string `json:"fieldName"`
	Description    *string `json:"description"`
	FieldType      *string `json:"fieldType"`
	FieldLength    *string `json:"fieldLength"`
	PossibleValues *string `json:"possibleValues"`
	Grouping       *string `json:"grouping"`
}

// RawToText normalizes a raw JSON scalar to its text form: string values are
// unquoted, numbers keep their decimal representation. Returns "" for absent
// or null values.
func RawToText(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return strings.TrimSpace(string(raw))
}
