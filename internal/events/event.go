// Package events names the inventory events that travel on the platform bus:
// a committed import batch and a saved or deleted feature. Every one of them
// belongs to a project, which is what open map sessions listen for.
package events

import (
	"field_inventory_backend/platform/events"
	"field_inventory_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus returns the bus the API and the scheduler publish on.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

const (
	ImportBatchCommittedName = "imports.batch.committed"
	FeatureSavedName         = "features.saved"
	FeatureDeletedName       = "features.deleted"
)

// ProjectNames lists every event that changes a project's point layer.
var ProjectNames = []string{ImportBatchCommittedName, FeatureSavedName, FeatureDeletedName}

// ProjectEvent is an event about the features of one project.
type ProjectEvent interface {
	Event
	Project() uuid.UUID
}

// ImportBatchCommitted is published after the rows of one import session were
// inserted, whether inline or by the scheduler worker.
type ImportBatchCommitted struct {
	BaseEvent
	SessionID     string    `json:"sessionId"`
	ProjectID     uuid.UUID `json:"projectId"`
	FeatureTypeID uuid.UUID `json:"featureTypeId"`
	Inserted      int       `json:"inserted"`
}

func (e ImportBatchCommitted) EventName() string  { return ImportBatchCommittedName }
func (e ImportBatchCommitted) Project() uuid.UUID { return e.ProjectID }

// FeatureSaved is published when a feature is created or updated, from the
// REST endpoints or a map session.
type FeatureSaved struct {
	BaseEvent
	FeatureID     uuid.UUID `json:"featureId"`
	ProjectID     uuid.UUID `json:"projectId"`
	FeatureTypeID uuid.UUID `json:"featureTypeId"`
	Created       bool      `json:"created"`
}

func (e FeatureSaved) EventName() string  { return FeatureSavedName }
func (e FeatureSaved) Project() uuid.UUID { return e.ProjectID }

// FeatureDeleted is published after a feature and its photo rows are gone.
type FeatureDeleted struct {
	BaseEvent
	FeatureID uuid.UUID `json:"featureId"`
	ProjectID uuid.UUID `json:"projectId"`
}

func (e FeatureDeleted) EventName() string  { return FeatureDeletedName }
func (e FeatureDeleted) Project() uuid.UUID { return e.ProjectID }

var (
	_ ProjectEvent = ImportBatchCommitted{}
	_ ProjectEvent = FeatureSaved{}
	_ ProjectEvent = FeatureDeleted{}
)
