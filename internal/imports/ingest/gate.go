package ingest

import (
	"context"
	"sync"

	"field_inventory_backend/platform/apperr"

	"github.com/google/uuid"
)

// BatchRequest is one atomic write of imported rows.
type BatchRequest struct {
	ProjectID     uuid.UUID
	FeatureTypeID uuid.UUID
	CreatorID     uuid.UUID
	Rows          []ImportRow
}

// BatchOutcome describes a committed batch.
type BatchOutcome struct {
	Inserted         int    `json:"inserted"`
	FirstTechnicalID string `json:"firstTechnicalId,omitempty"`
	LastTechnicalID  string `json:"lastTechnicalId,omitempty"`
}

// BatchWriter commits all rows or none.
type BatchWriter interface {
	WriteBatch(ctx context.Context, req BatchRequest) (BatchOutcome, error)
}

// State is what the gate needs to decide whether a batch may be submitted.
type State struct {
	Errors []ValidationError
	Rows   []ImportRow
}

// CanSubmit reports whether state holds rows and no errors.
func CanSubmit(state State) bool {
	return len(state.Errors) == 0 && len(state.Rows) > 0
}

type batchKey struct {
	project     uuid.UUID
	featureType uuid.UUID
}

// Gate serializes submissions per project and feature type within the process.
type Gate struct {
	writer   BatchWriter
	mu       sync.Mutex
	inflight map[batchKey]struct{}
}

// NewGate creates a gate that writes through writer.
func NewGate(writer BatchWriter) *Gate {
	return &Gate{writer: writer, inflight: make(map[batchKey]struct{})}
}

// Submit hands the rows to the writer as one unit. It refuses when the state
// cannot be submitted or when another submission for the same project and
// feature type is still running. Writer errors are returned unchanged and the
// caller's rows are never modified.
func (g *Gate) Submit(ctx context.Context, state State, projectID, featureTypeID, creatorID uuid.UUID) (BatchOutcome, error) {
	if !CanSubmit(state) {
		if len(state.Errors) > 0 {
			return BatchOutcome{}, apperr.Validation("import has errors and cannot be submitted").WithDetails(state.Errors)
		}
		return BatchOutcome{}, apperr.Validation("import has no rows to submit")
	}

	key := batchKey{project: projectID, featureType: featureTypeID}
	if !g.acquire(key) {
		return BatchOutcome{}, apperr.Conflict("a submission for this project and feature type is already in progress")
	}
	defer g.release(key)

	rows := make([]ImportRow, len(state.Rows))
	copy(rows, state.Rows)

	return g.writer.WriteBatch(ctx, BatchRequest{
		ProjectID:     projectID,
		FeatureTypeID: featureTypeID,
		CreatorID:     creatorID,
		Rows:          rows,
	})
}

func (g *Gate) acquire(key batchKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

func (g *Gate) release(key batchKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
}
