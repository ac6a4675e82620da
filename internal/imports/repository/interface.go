package repository

import (
	"context"
	"time"

	"field_inventory_backend/internal/imports/ingest"

	"github.com/google/uuid"
)

// Status is the lifecycle step of an import session.
type Status string

const (
	StatusValidated  Status = "validated"
	StatusQueued     Status = "queued"
	StatusSubmitting Status = "submitting"
	StatusCommitted  Status = "committed"
	StatusFailed     Status = "failed"
)

// Session is an uploaded file's validation result held until it is submitted or expires.
type Session struct {
	ID            string                   `json:"id"`
	ProjectID     uuid.UUID                `json:"projectId"`
	FeatureTypeID uuid.UUID                `json:"featureTypeId"`
	CreatorID     uuid.UUID                `json:"creatorId"`
	FileName      string                   `json:"fileName"`
	Status        Status                   `json:"status"`
	Errors        []ingest.ValidationError `json:"errors"`
	Rows          []ingest.ImportRow       `json:"rows"`
	RowCount      int                      `json:"rowCount"`
	Outcome       *ingest.BatchOutcome     `json:"outcome,omitempty"`
	Failure       string                   `json:"failure,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
	ExpiresAt     time.Time                `json:"expiresAt"`
}

// GateState returns the submission gate's view of the session.
func (s *Session) GateState() ingest.State {
	return ingest.State{Errors: s.Errors, Rows: s.Rows}
}

// SessionStore persists import sessions with a time to live.
type SessionStore interface {
	Save(ctx context.Context, session *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
}

// Locker grants short-lived exclusive leases on a key.
type Locker interface {
	// Acquire returns a token when the lease was granted, or ok=false when it is held elsewhere.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the lease only if token still owns it.
	Release(ctx context.Context, key, token string) error
}

// Compile-time check that Repo implements the batch writer used by the gate.
var _ ingest.BatchWriter = (*Repo)(nil)
