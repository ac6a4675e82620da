package transport

import (
	"field_inventory_backend/internal/schema/domain"

	"github.com/google/uuid"
)

// AttributeDefinitionResponse represents one schema field in API responses.
type AttributeDefinitionResponse struct {
	Field    string   `json:"field"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Order    int      `json:"order"`
}

// SchemaResponse is the ordered attribute list of a feature type.
type SchemaResponse struct {
	FeatureTypeID uuid.UUID                     `json:"featureTypeId"`
	Fields        []AttributeDefinitionResponse `json:"fields"`
}

// FeatureTypeResponse is a feature type offered to a project.
type FeatureTypeResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
}

// FeatureTypeListResponse wraps the feature types assigned to a project.
type FeatureTypeListResponse struct {
	Items []FeatureTypeResponse `json:"items"`
}

// ToSchemaResponse converts a resolved schema.
func ToSchemaResponse(s domain.Schema) SchemaResponse {
	fields := make([]AttributeDefinitionResponse, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, AttributeDefinitionResponse{
			Field:    f.Field,
			Kind:     string(f.Kind),
			Required: f.Required,
			Options:  f.Options,
			Order:    f.Order,
		})
	}
	return SchemaResponse{FeatureTypeID: s.FeatureTypeID, Fields: fields}
}
