// Package project converts raw API payloads into fixed-shape rows. Two
// strategies share one row contract: a flat per-item projection for the
// DataServices feed and an eager flattener for the FieldMappingDefinitions
// hierarchy.
package project

import (
	"encoding/json"

	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

// Row is one output row of a table scan. The host resolves each of its
// registered columns through Cell; a nil value is an SQL NULL.
type Row interface {
	// Cell returns the value for a registered column name. Unknown columns
	// are a config error.
	Cell(column string) (any, error)
}

// ParentRef is one entry of a leaf field's ancestor trail, ordered root to
// immediate parent.
type ParentRef struct {
	Level string `json:"level"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

// Ancestor levels emitted in parentage trails.
const (
	LevelProduct      = "product"
	LevelPackage      = "package"
	LevelFieldCluster = "field_cluster"
)

// DataServiceRow is one row of the DataServices table. Fields is the item's
// scoring payload, passed through verbatim.
type DataServiceRow struct {
	EntityID   string          `json:"entityId"`
	EntityName string          `json:"entityName"`
	Fields     json.RawMessage `json:"fields"`
}

// Cell implements Row.
func (r *DataServiceRow) Cell(column string) (any, error) {
	switch column {
	case "entityId":
		return r.EntityID, nil
	case "entityName":
		return r.EntityName, nil
	case "fields":
		if r.Fields == nil {
			return nil, nil
		}
		return r.Fields, nil
	default:
		return nil, sustainalytics.NewConfigError("unsupported column for DataServices: %s", column)
	}
}

// FieldMappingRow is one row of the FieldMappingDefinitions table: a leaf
// field definition together with its synthesized ancestor columns.
type FieldMappingRow struct {
	ProductID        string      `json:"product_id"`
	ProductName      string      `json:"product_name"`
	PackageID        int64       `json:"package_id"`
	PackageName      string      `json:"package_name"`
	FieldClusterID   int64       `json:"field_cluster_id"`
	FieldClusterName string      `json:"field_cluster_name"`
	FieldID          int64       `json:"field_id"`
	FieldName        string      `json:"field_name"`
	Description      *string     `json:"description"`
	FieldType        *string     `json:"field_type"`
	FieldLength      *string     `json:"field_length"`
	PossibleValues   *string     `json:"possible_values"`
	Grouping         *string     `json:"grouping"`
	Parentage        []ParentRef `json:"parentage"`
}

// Cell implements Row.
func (r *FieldMappingRow) Cell(column string) (any, error) {
	switch column {
	case "product_id":
		return r.ProductID, nil
	case "product_name":
		return r.ProductName, nil
	case "package_id":
		return r.PackageID, nil
	case "package_name":
		return r.PackageName, nil
	case "field_cluster_id":
		return r.FieldClusterID, nil
	case "field_cluster_name":
		return r.FieldClusterName, nil
	case "field_id":
		return r.FieldID, nil
	case "field_name":
		return r.FieldName, nil
	case "description":
		return optional(r.Description), nil
	case "field_type":
		return optional(r.FieldType), nil
	case "field_length":
		return optional(r.FieldLength), nil
	case "possible_values":
		return optional(r.PossibleValues), nil
	case "grouping":
		return optional(r.Grouping), nil
	case "parentage":
		return r.Parentage, nil
	default:
		return nil, sustainalytics.NewConfigError("unsupported column for FieldMappingDefinitions: %s", column)
	}
}

// optional maps an absent attribute to an explicit NULL.
func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
