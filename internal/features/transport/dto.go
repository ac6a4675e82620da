package transport

import (
	"time"

	"github.com/google/uuid"
)

// SaveFeatureRequest creates or updates a feature. Attributes are keyed by
// field name or uppercased attribute key.
type SaveFeatureRequest struct {
	ProjectID     uuid.UUID      `json:"projectId" validate:"required"`
	FeatureTypeID uuid.UUID      `json:"featureTypeId" validate:"required"`
	Latitude      *float64       `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude     *float64       `json:"longitude" validate:"required,min=-180,max=180"`
	Estado        string         `json:"estado" validate:"omitempty,estado"`
	Attributes    map[string]any `json:"attributes"`
}

// SaveFeatureResponse reports the outcome of a save.
type SaveFeatureResponse struct {
	ID          uuid.UUID `json:"id"`
	TechnicalID string    `json:"technicalId"`
	Created     bool      `json:"created"`
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PhotoResponse describes a stored photo.
type PhotoResponse struct {
	ID          uuid.UUID    `json:"id"`
	FileKey     string       `json:"fileKey"`
	FileName    string       `json:"fileName"`
	ContentType string       `json:"contentType"`
	SizeBytes   int64        `json:"sizeBytes"`
	TakenAt     *time.Time   `json:"takenAt,omitempty"`
	Position    *Coordinates `json:"position,omitempty"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// FeatureResponse is the detail view of a feature.
type FeatureResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.UUID       `json:"projectId"`
	FeatureTypeID uuid.UUID       `json:"featureTypeId"`
	TechnicalID   string          `json:"technicalId"`
	Coordinates   Coordinates     `json:"coordinates"`
	Estado        string          `json:"estado"`
	Attributes    map[string]any  `json:"attributes"`
	Photos        []PhotoResponse `json:"photos"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// PointResponse is one entry of the map point layer.
type PointResponse struct {
	ID            uuid.UUID `json:"id"`
	FeatureTypeID uuid.UUID `json:"featureTypeId"`
	TechnicalID   string    `json:"technicalId"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Estado        string    `json:"estado"`
}

// PointListResponse is the map point layer of a project.
type PointListResponse struct {
	Points []PointResponse `json:"points"`
	Total  int             `json:"total"`
}
