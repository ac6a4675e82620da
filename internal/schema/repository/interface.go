package repository

import (
	"context"

	"field_inventory_backend/internal/schema/domain"

	"github.com/google/uuid"
)

// Repository reads feature types and their attribute definitions.
type Repository interface {
	// FetchSchema returns the raw attribute definitions of a feature type.
	// An unknown feature type yields an empty slice.
	FetchSchema(ctx context.Context, featureTypeID uuid.UUID) ([]domain.AttributeDefinition, error)
	FetchAssignedFeatureTypes(ctx context.Context, projectID uuid.UUID) ([]domain.FeatureType, error)
	GetFeatureType(ctx context.Context, featureTypeID uuid.UUID) (domain.FeatureType, error)
}
