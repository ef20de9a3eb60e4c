package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

func TestParseOptions_TakeClamping(t *testing.T) {
	tests := []struct {
		name string
		take string
		set  bool
		want int
	}{
		{name: "absent defaults", want: 10},
		{name: "valid mid range", take: "5", set: true, want: 5},
		{name: "lower bound", take: "1", set: true, want: 1},
		{name: "upper bound", take: "10", set: true, want: 10},
		{name: "above cap clamps", take: "11", set: true, want: 10},
		{name: "far above cap clamps", take: "5000", set: true, want: 10},
		{name: "zero defaults", take: "0", set: true, want: 10},
		{name: "negative defaults", take: "-3", set: true, want: 10},
		{name: "non numeric defaults", take: "lots", set: true, want: 10},
		{name: "empty string defaults", take: "", set: true, want: 10},
		{name: "whitespace tolerated", take: " 7 ", set: true, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]string{
				OptionEndpoint:  string(EndpointDataServices),
				OptionProductID: "42",
			}
			if tt.set {
				raw[OptionTake] = tt.take
			}

			opts, err := ParseOptions(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.Take)
		})
	}
}

func TestParseOptions_MissingEndpoint(t *testing.T) {
	_, err := ParseOptions(map[string]string{OptionProductID: "42"})
	require.Error(t, err)
	assert.Equal(t, sustainalytics.ErrorKindConfig, sustainalytics.KindOf(err))
}

func TestParseOptions_UnknownEndpoint(t *testing.T) {
	_, err := ParseOptions(map[string]string{OptionEndpoint: "Scores"})
	require.Error(t, err)
	assert.Equal(t, sustainalytics.ErrorKindConfig, sustainalytics.KindOf(err))
	assert.Contains(t, err.Error(), "unknown endpoint")
}

func TestParseOptions_DataServicesRequiresProductID(t *testing.T) {
	_, err := ParseOptions(map[string]string{OptionEndpoint: string(EndpointDataServices)})
	require.Error(t, err)
	assert.Equal(t, sustainalytics.ErrorKindConfig, sustainalytics.KindOf(err))
	assert.Contains(t, err.Error(), OptionProductID)
}

func TestParseOptions_RejectsUnknownDataServicesOption(t *testing.T) {
	_, err := ParseOptions(map[string]string{
		OptionEndpoint:  string(EndpointDataServices),
		OptionProductID: "42",
		"OrderBy":       "entityName",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OrderBy")
}

func TestParseOptions_RejectsOptionsOnCatalogTable(t *testing.T) {
	_, err := ParseOptions(map[string]string{
		OptionEndpoint:  string(EndpointFieldMappingDefinitions),
		OptionProductID: "42",
	})
	require.Error(t, err)
	assert.Equal(t, sustainalytics.ErrorKindConfig, sustainalytics.KindOf(err))
}

func TestParseOptions_SplitsFilterLists(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		OptionEndpoint:        string(EndpointDataServices),
		OptionProductID:       "42",
		OptionPackageIDs:      "1, 2,3",
		OptionFieldClusterIDs: "9",
		OptionFieldIDs:        " ",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, opts.PackageIDs)
	assert.Equal(t, []string{"9"}, opts.FieldClusterIDs)
	assert.Nil(t, opts.FieldIDs)
}

func TestParseOptions_CatalogEndpoint(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		OptionEndpoint: string(EndpointFieldMappingDefinitions),
	})
	require.NoError(t, err)
	assert.Equal(t, EndpointFieldMappingDefinitions, opts.Endpoint)
}
