package project

import (
	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

// DataService projects one DataServices item into a row. The item's fields
// payload is not interpreted; entityId and entityName are required and their
// absence fails the whole projection, never a partial row.
func DataService(item sustainalytics.DataServiceItem) (*DataServiceRow, error) {
	entityID := sustainalytics.RawToText(item.EntityID)
	if entityID == "" {
		return nil, sustainalytics.NewSchemaError(
			sustainalytics.PathDataService, "item missing entityId")
	}
	if item.EntityName == nil {
		return nil, sustainalytics.NewSchemaError(
			sustainalytics.PathDataService, "item %s missing entityName", entityID)
	}

	return &DataServiceRow{
		EntityID:   entityID,
		EntityName: *item.EntityName,
		Fields:     item.Fields,
	}, nil
}
