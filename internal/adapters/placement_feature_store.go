// Package adapters contains adapters that bridge different bounded contexts.
// These adapters implement interfaces defined by consuming domains while
// wrapping services from providing domains.
package adapters

import (
	"context"

	"field_inventory_backend/internal/features/repository"
	featureservice "field_inventory_backend/internal/features/service"
	"field_inventory_backend/internal/placement/session"

	"github.com/google/uuid"
)

// FeatureService is the part of the features service the map session uses.
type FeatureService interface {
	Get(ctx context.Context, id uuid.UUID) (repository.Feature, error)
	Save(ctx context.Context, in featureservice.SaveInput) (featureservice.SaveResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlacementFeatureStore adapts the features service to the placement
// session's FeatureStore, so the map never depends on feature storage types.
type PlacementFeatureStore struct {
	features FeatureService
}

// NewPlacementFeatureStore wraps the features service.
func NewPlacementFeatureStore(features FeatureService) *PlacementFeatureStore {
	return &PlacementFeatureStore{features: features}
}

func (a *PlacementFeatureStore) Feature(ctx context.Context, id uuid.UUID) (session.FeatureSnapshot, error) {
	f, err := a.features.Get(ctx, id)
	if err != nil {
		return session.FeatureSnapshot{}, err
	}
	return session.FeatureSnapshot{
		ID:            f.ID,
		ProjectID:     f.ProjectID,
		FeatureTypeID: f.FeatureTypeID,
		TechnicalID:   f.TechnicalID,
		Estado:        f.Estado,
		Position:      session.Position{Latitude: f.Latitude, Longitude: f.Longitude},
		Attributes:    f.Attributes,
	}, nil
}

func (a *PlacementFeatureStore) Save(ctx context.Context, req session.SaveRequest) (session.SaveResult, error) {
	res, err := a.features.Save(ctx, featureservice.SaveInput{
		ExistingID:    req.ExistingID,
		ProjectID:     req.ProjectID,
		FeatureTypeID: req.FeatureTypeID,
		Latitude:      req.Position.Latitude,
		Longitude:     req.Position.Longitude,
		Estado:        req.Estado,
		Attributes:    req.Attributes,
		UserID:        req.UserID,
	})
	if err != nil {
		return session.SaveResult{}, err
	}
	return session.SaveResult{ID: res.ID, TechnicalID: res.TechnicalID, Created: res.Created}, nil
}

func (a *PlacementFeatureStore) Delete(ctx context.Context, id uuid.UUID) error {
	return a.features.Delete(ctx, id)
}

var _ session.FeatureStore = (*PlacementFeatureStore)(nil)
