package service

import (
	"context"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/internal/schema/repository"
	"field_inventory_backend/internal/schema/transport"
	"field_inventory_backend/platform/logger"

	"github.com/google/uuid"
)

// Service resolves attribute schemas for feature types.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new schema service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Resolve returns the ordered schema of a feature type. An unknown feature
// type resolves to an empty schema rather than an error.
func (s *Service) Resolve(ctx context.Context, featureTypeID uuid.UUID) (domain.Schema, error) {
	defs, err := s.repo.FetchSchema(ctx, featureTypeID)
	if err != nil {
		return domain.Schema{}, err
	}
	schema := domain.NewSchema(featureTypeID, defs)
	s.log.Debug("schema resolved", "featureTypeId", featureTypeID, "fields", len(schema.Fields))
	return schema, nil
}

// FeatureType returns a single feature type.
func (s *Service) FeatureType(ctx context.Context, featureTypeID uuid.UUID) (domain.FeatureType, error) {
	return s.repo.GetFeatureType(ctx, featureTypeID)
}

// AssignedFeatureTypes lists the feature types a project may place.
func (s *Service) AssignedFeatureTypes(ctx context.Context, projectID uuid.UUID) ([]domain.FeatureType, error) {
	return s.repo.FetchAssignedFeatureTypes(ctx, projectID)
}

// GetSchema resolves a schema for API responses.
func (s *Service) GetSchema(ctx context.Context, featureTypeID uuid.UUID) (transport.SchemaResponse, error) {
	schema, err := s.Resolve(ctx, featureTypeID)
	if err != nil {
		return transport.SchemaResponse{}, err
	}
	return transport.ToSchemaResponse(schema), nil
}

// ListAssigned lists a project's feature types for API responses.
func (s *Service) ListAssigned(ctx context.Context, projectID uuid.UUID) (transport.FeatureTypeListResponse, error) {
	types, err := s.repo.FetchAssignedFeatureTypes(ctx, projectID)
	if err != nil {
		return transport.FeatureTypeListResponse{}, err
	}
	items := make([]transport.FeatureTypeResponse, 0, len(types))
	for _, ft := range types {
		items = append(items, transport.FeatureTypeResponse{ID: ft.ID, Name: ft.Name, Code: ft.Code})
	}
	return transport.FeatureTypeListResponse{Items: items}, nil
}
