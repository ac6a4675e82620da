package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Feature is a stored field asset.
type Feature struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	FeatureTypeID uuid.UUID
	TechnicalID   string
	Latitude      float64
	Longitude     float64
	Estado        string
	Attributes    map[string]any
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Photo is the metadata of a stored feature photo.
type Photo struct {
	ID          uuid.UUID
	FeatureID   uuid.UUID
	ObjectKey   string
	FileName    string
	ContentType string
	SizeBytes   int64
	TakenAt     *time.Time
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time
}

// Point is the map-layer projection of a feature.
type Point struct {
	ID            uuid.UUID
	FeatureTypeID uuid.UUID
	TechnicalID   string
	Latitude      float64
	Longitude     float64
	Estado        string
}

// CreateParams holds the values of a new feature.
type CreateParams struct {
	ProjectID     uuid.UUID
	FeatureTypeID uuid.UUID
	Latitude      float64
	Longitude     float64
	Estado        string
	Attributes    map[string]any
	// TechnicalIDKey, when set, names the attribute that receives the
	// allocated technical id.
	TechnicalIDKey string
	CreatedBy      uuid.UUID
}

// UpdateParams holds the editable values of an existing feature.
type UpdateParams struct {
	ID         uuid.UUID
	Latitude   float64
	Longitude  float64
	Estado     string
	Attributes map[string]any
}

// CreatePhotoParams holds the metadata recorded after an upload.
type CreatePhotoParams struct {
	FeatureID   uuid.UUID
	ObjectKey   string
	FileName    string
	ContentType string
	SizeBytes   int64
	TakenAt     *time.Time
	Latitude    *float64
	Longitude   *float64
}

// Repository defines feature persistence.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Feature, error)
	Create(ctx context.Context, params CreateParams) (Feature, error)
	Update(ctx context.Context, params UpdateParams) (Feature, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListPoints(ctx context.Context, projectID uuid.UUID) ([]Point, error)

	ListPhotos(ctx context.Context, featureID uuid.UUID) ([]Photo, error)
	CreatePhoto(ctx context.Context, params CreatePhotoParams) (Photo, error)
}
