package project

import (
	"strconv"

	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

// FlattenCatalog walks the four-level FieldMappingDefinitions hierarchy in
// document order and emits one row per leaf field. The traversal is
// depth-first, so output order is deterministic for a given input. Each row
// carries the full ancestor trail from product down to the field's cluster.
//
// A missing id or name at any level fails the whole flattening; missing
// optional leaf attributes become explicit NULLs.
func FlattenCatalog(products []sustainalytics.CatalogProduct) ([]*FieldMappingRow, error) {
	endpoint := sustainalytics.PathFieldMappingDefinitions

	var rows []*FieldMappingRow
	for pi, prod := range products {
		productID := sustainalytics.RawToText(prod.ProductID)
		if productID == "" {
			return nil, sustainalytics.NewSchemaError(endpoint, "product %d missing productId", pi)
		}
		if prod.ProductName == nil {
			return nil, sustainalytics.NewSchemaError(endpoint, "product %s missing productName", productID)
		}

		for _, pkg := range prod.Packages {
			if pkg.PackageID == nil {
				return nil, sustainalytics.NewSchemaError(endpoint, "product %s: package missing packageId", productID)
			}
			if pkg.PackageName == nil {
				return nil, sustainalytics.NewSchemaError(endpoint, "package %d missing packageName", *pkg.PackageID)
			}

			for _, cl := range pkg.Clusters {
				if cl.FieldClusterID == nil {
					return nil, sustainalytics.NewSchemaError(endpoint, "package %d: cluster missing fieldClusterId", *pkg.PackageID)
				}
				if cl.FieldClusterName == nil {
					return nil, sustainalytics.NewSchemaError(endpoint, "cluster %d missing fieldClusterName", *cl.FieldClusterID)
				}

				parentage := []ParentRef{
					{Level: LevelProduct, ID: productID, Name: *prod.ProductName},
					{Level: LevelPackage, ID: strconv.FormatInt(*pkg.PackageID, 10), Name: *pkg.PackageName},
					{Level: LevelFieldCluster, ID: strconv.FormatInt(*cl.FieldClusterID, 10), Name: *cl.FieldClusterName},
				}

				for _, def := range cl.FieldDefinitions {
					if def.FieldID == nil {
						return nil, sustainalytics.NewSchemaError(endpoint, "cluster %d: field missing fieldId", *cl.FieldClusterID)
					}
					if def.FieldName == nil {
						return nil, sustainalytics.NewSchemaError(endpoint, "field %d missing fieldName", *def.FieldID)
					}

					rows = append(rows, &FieldMappingRow{
						ProductID:        productID,
						ProductName:      *prod.ProductName,
						PackageID:        *pkg.PackageID,
						PackageName:      *pkg.PackageName,
						FieldClusterID:   *cl.FieldClusterID,
						FieldClusterName: *cl.FieldClusterName,
						FieldID:          *def.FieldID,
						FieldName:        *def.FieldName,
						Description:      def.Description,
						FieldType:        def.FieldType,
						FieldLength:      def.FieldLength,
						PossibleValues:   def.PossibleValues,
						Grouping:         def.Grouping,
						Parentage:        parentage,
					})
				}
			}
		}
	}

	return rows, nil
}
