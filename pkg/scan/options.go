package scan

import (
	"strconv"
	"strings"

	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

// Endpoint selects which table a scan reads.
type Endpoint string

const (
	// EndpointDataServices is the paginated entity-scoring feed.
	EndpointDataServices Endpoint = "DataServices"

	// EndpointFieldMappingDefinitions is the schema catalog.
	EndpointFieldMappingDefinitions Endpoint = "FieldMappingDefinitions"
)

// Table option keys. The upstream query parameter casing is kept so the
// foreign table definition reads like the API documentation.
const (
	OptionEndpoint        = "endpoint"
	OptionProductID       = "ProductId"
	OptionPackageIDs      = "PackageIds"
	OptionFieldClusterIDs = "FieldClusterIds"
	OptionFieldIDs        = "FieldIds"
	OptionTake            = "Take"
)

// dataServiceOptions is the allowed option set for DataServices tables.
var dataServiceOptions = map[string]bool{
	OptionEndpoint:        true,
	OptionProductID:       true,
	OptionPackageIDs:      true,
	OptionFieldClusterIDs: true,
	OptionFieldIDs:        true,
	OptionTake:            true,
}

// Options is the validated scan context created when a table scan begins.
type Options struct {
	Endpoint        Endpoint
	ProductID       string
	PackageIDs      []string
	FieldClusterIDs []string
	FieldIDs        []string

	// Take is the page size, clamped to [1, MaxTake].
	Take int
}

// ParseOptions validates raw table options into a scan context. All
// validation happens here, before any network call.
func ParseOptions(raw map[string]string) (*Options, error) {
	endpoint, ok := raw[OptionEndpoint]
	if !ok || endpoint == "" {
		return nil, sustainalytics.NewConfigError("missing table option %s", OptionEndpoint)
	}

	switch Endpoint(endpoint) {
	case EndpointDataServices:
		for key := range raw {
			if !dataServiceOptions[key] {
				return nil, sustainalytics.NewConfigError("unsupported table option for DataServices: %s", key)
			}
		}

		productID, ok := raw[OptionProductID]
		if !ok || productID == "" {
			return nil, sustainalytics.NewConfigError("missing required table option %s", OptionProductID)
		}

		takeRaw, takeSet := raw[OptionTake]
		return &Options{
			Endpoint:        EndpointDataServices,
			ProductID:       productID,
			PackageIDs:      splitList(raw[OptionPackageIDs]),
			FieldClusterIDs: splitList(raw[OptionFieldClusterIDs]),
			FieldIDs:        splitList(raw[OptionFieldIDs]),
			Take:            normalizeTake(takeRaw, takeSet),
		}, nil

	case EndpointFieldMappingDefinitions:
		for key := range raw {
			if key != OptionEndpoint {
				return nil, sustainalytics.NewConfigError("unsupported table option for FieldMappingDefinitions: %s", key)
			}
		}
		return &Options{Endpoint: EndpointFieldMappingDefinitions}, nil

	default:
		return nil, sustainalytics.NewConfigError("unknown endpoint: %s", endpoint)
	}
}

// normalizeTake clamps the requested page size to [1, MaxTake]. Absent,
// non-numeric, and non-positive values all fall back to the default.
func normalizeTake(raw string, set bool) int {
	if !set {
		return sustainalytics.DefaultTake
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return sustainalytics.DefaultTake
	}
	if n > sustainalytics.MaxTake {
		return sustainalytics.MaxTake
	}
	return n
}

// splitList parses a comma-joined option value into its elements.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
