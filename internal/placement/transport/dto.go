package transport

import (
	"field_inventory_backend/internal/placement/session"

	"github.com/google/uuid"
)

// OpenSessionRequest starts or resumes the caller's map session.
type OpenSessionRequest struct {
	ProjectID uuid.UUID `json:"projectId" validate:"required"`
}

// PositionRequest is a map coordinate.
type PositionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

// ToPosition converts a validated request.
func (p PositionRequest) ToPosition() session.Position {
	return session.Position{Latitude: *p.Latitude, Longitude: *p.Longitude}
}

// SelectTypeRequest picks a feature type and the current map center.
type SelectTypeRequest struct {
	FeatureTypeID uuid.UUID       `json:"featureTypeId" validate:"required"`
	Center        PositionRequest `json:"center"`
}

// ChangeFieldRequest sets one attribute of the open form.
type ChangeFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

// OutcomeResponse reports a completed save or delete.
type OutcomeResponse struct {
	Applied     bool      `json:"applied"`
	Stale       bool      `json:"stale"`
	ID          uuid.UUID `json:"id"`
	TechnicalID string    `json:"technicalId,omitempty"`
	Created     bool      `json:"created"`
}

// SessionResponse is the session view, plus the outcome of a save or delete.
type SessionResponse struct {
	session.View
	Outcome *OutcomeResponse `json:"outcome,omitempty"`
}

// ToOutcome converts a session outcome.
func ToOutcome(o session.SaveOutcome) *OutcomeResponse {
	return &OutcomeResponse{
		Applied:     o.Applied,
		Stale:       o.Stale,
		ID:          o.ID,
		TechnicalID: o.TechnicalID,
		Created:     o.Created,
	}
}
