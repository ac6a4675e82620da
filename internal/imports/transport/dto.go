package transport

import (
	"time"

	"field_inventory_backend/internal/imports/ingest"

	"github.com/google/uuid"
)

// PreviewLimit caps the normalized rows echoed back after an upload.
const PreviewLimit = 20

// SessionResponse reports the state of an import session.
type SessionResponse struct {
	ID            string                   `json:"id"`
	ProjectID     uuid.UUID                `json:"projectId"`
	FeatureTypeID uuid.UUID                `json:"featureTypeId"`
	FileName      string                   `json:"fileName"`
	Status        string                   `json:"status"`
	Errors        []ingest.ValidationError `json:"errors"`
	RowCount      int                      `json:"rowCount"`
	CanSubmit     bool                     `json:"canSubmit"`
	Preview       []ingest.ImportRow       `json:"preview"`
	Outcome       *ingest.BatchOutcome     `json:"outcome,omitempty"`
	Failure       string                   `json:"failure,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
	ExpiresAt     time.Time                `json:"expiresAt"`
}
