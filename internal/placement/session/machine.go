package session

import (
	"context"
	"errors"
	"sync"

	"field_inventory_backend/internal/forms"
	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"
	"field_inventory_backend/platform/metrics"

	"github.com/google/uuid"
)

// ErrOtherProject is returned when opening a feature of another project.
var ErrOtherProject = errors.New("feature belongs to another project")

// Catalog provides the feature types and schemas offered on the map.
type Catalog interface {
	AssignedFeatureTypes(ctx context.Context, projectID uuid.UUID) ([]domain.FeatureType, error)
	Resolve(ctx context.Context, featureTypeID uuid.UUID) (domain.Schema, error)
}

// FeatureSnapshot is what the map needs to open an existing feature.
type FeatureSnapshot struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	FeatureTypeID uuid.UUID
	TechnicalID   string
	Estado        string
	Position      Position
	Attributes    map[string]any
}

// SaveRequest is a create (ExistingID nil) or update of a feature.
type SaveRequest struct {
	ExistingID    *uuid.UUID
	ProjectID     uuid.UUID
	FeatureTypeID uuid.UUID
	Position      Position
	Estado        string
	Attributes    map[string]any
	UserID        uuid.UUID
}

// SaveResult identifies the saved feature.
type SaveResult struct {
	ID          uuid.UUID
	TechnicalID string
	Created     bool
}

// FeatureStore persists features.
type FeatureStore interface {
	Feature(ctx context.Context, id uuid.UUID) (FeatureSnapshot, error)
	Save(ctx context.Context, req SaveRequest) (SaveResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SaveOutcome reports how a save or delete completed. Stale is set when the
// editing session was closed before the store answered; nothing was applied
// to the session in that case.
type SaveOutcome struct {
	Applied     bool
	Stale       bool
	ID          uuid.UUID
	TechnicalID string
	Created     bool
}

type editSession struct {
	token       uuid.UUID
	featureID   *uuid.UUID
	technicalID string
	typeID      uuid.UUID
	estado      string
	position    Position
	schema      domain.Schema
	initial     map[string]any
	form        *forms.Form
	formErrors  map[string]string
	pending     bool
	lastError   string
}

// Machine is one user's placement session on one project's map. All methods
// are safe for concurrent use; store calls run without holding the lock so
// that cancel and close stay responsive while a save is in flight.
type Machine struct {
	mu            sync.Mutex
	userID        uuid.UUID
	projectID     uuid.UUID
	catalog       Catalog
	store         FeatureStore
	surface       Surface
	state         State
	gen           uint64
	offered       []domain.FeatureType
	selected      *domain.FeatureType
	marker        Marker
	edit          *editSession
	pendingSaves  int
	pointsVersion int64
}

// NewMachine creates an idle session.
func NewMachine(userID, projectID uuid.UUID, catalog Catalog, store FeatureStore, surface Surface) *Machine {
	return &Machine{
		userID:    userID,
		projectID: projectID,
		catalog:   catalog,
		store:     store,
		surface:   surface,
		state:     Idle,
	}
}

// ProjectID returns the project whose map this session belongs to.
func (m *Machine) ProjectID() uuid.UUID { return m.projectID }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Add opens the feature type panel.
func (m *Machine) Add(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Idle {
		err := m.reject(ActionAdd)
		m.mu.Unlock()
		return err
	}
	if m.pendingSaves > 0 {
		m.mu.Unlock()
		record(ActionAdd, "pending")
		return ErrSavePending
	}
	gen := m.gen
	m.mu.Unlock()

	types, err := m.catalog.AssignedFeatureTypes(ctx, m.projectID)
	if err != nil {
		record(ActionAdd, "failed")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrSuperseded
	}
	m.offered = types
	m.selected = nil
	m.transition(SelectingType)
	record(ActionAdd, "ok")
	return nil
}

// SelectType places the single marker for featureTypeID at center, replacing
// any marker placed by an earlier selection.
func (m *Machine) SelectType(featureTypeID uuid.UUID, center Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != SelectingType && m.state != ConfirmingPosition {
		return m.reject(ActionSelect)
	}

	var chosen *domain.FeatureType
	for i := range m.offered {
		if m.offered[i].ID == featureTypeID {
			chosen = &m.offered[i]
			break
		}
	}
	if chosen == nil {
		record(ActionSelect, "rejected")
		return ErrUnknownType
	}

	m.removeMarker()
	m.marker = m.surface.AddMarker(center)
	m.selected = chosen
	m.transition(ConfirmingPosition)
	record(ActionSelect, "ok")
	return nil
}

// MoveMarker drags the marker. The state does not change.
func (m *Machine) MoveMarker(to Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ConfirmingPosition || m.marker == nil {
		return m.reject(ActionMove)
	}
	m.marker.MoveTo(to)
	return nil
}

// Confirm captures the marker position, removes the marker and opens the
// attribute form for a new feature.
func (m *Machine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	if m.state != ConfirmingPosition || m.marker == nil || m.selected == nil {
		err := m.reject(ActionConfirm)
		m.mu.Unlock()
		return err
	}
	gen := m.gen
	typeID := m.selected.ID
	m.mu.Unlock()

	schema, err := m.catalog.Resolve(ctx, typeID)
	if err != nil {
		record(ActionConfirm, "failed")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.marker == nil {
		return ErrSuperseded
	}
	pos := m.marker.Position()
	m.removeMarker()
	m.edit = newEditSession(nil, "", typeID, "", pos, schema, nil, forms.Editable)
	m.transition(Editing)
	record(ActionConfirm, "ok")
	return nil
}

// Open shows an existing feature read-only.
func (m *Machine) Open(ctx context.Context, featureID uuid.UUID) error {
	m.mu.Lock()
	if m.state != Idle {
		err := m.reject(ActionOpen)
		m.mu.Unlock()
		return err
	}
	gen := m.gen
	m.mu.Unlock()

	snap, err := m.store.Feature(ctx, featureID)
	if err != nil {
		record(ActionOpen, "failed")
		return err
	}
	if snap.ProjectID != m.projectID {
		record(ActionOpen, "rejected")
		return ErrOtherProject
	}
	schema, err := m.catalog.Resolve(ctx, snap.FeatureTypeID)
	if err != nil {
		record(ActionOpen, "failed")
		return err
	}

	initial := make(map[string]any, len(snap.Attributes)+1)
	for k, v := range snap.Attributes {
		initial[k] = v
	}
	if def, ok := schema.Lookup(domain.TechnicalIDField); ok {
		if _, present := initial[def.AttributeKey()]; !present {
			initial[def.AttributeKey()] = snap.TechnicalID
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrSuperseded
	}
	id := snap.ID
	m.edit = newEditSession(&id, snap.TechnicalID, snap.FeatureTypeID, snap.Estado, snap.Position, schema, initial, forms.ReadOnly)
	m.transition(Editing)
	record(ActionOpen, "ok")
	return nil
}

// Edit unlocks the open form for modification without refetching it.
func (m *Machine) Edit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Editing {
		return m.reject(ActionEdit)
	}
	m.edit.form.SetMode(forms.Editable)
	record(ActionEdit, "ok")
	return nil
}

// Change sets one attribute. In read-only mode it does nothing.
func (m *Machine) Change(field string, raw any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Editing {
		return m.reject(ActionChange)
	}
	if err := m.edit.form.Change(field, raw); err != nil {
		return err
	}
	if m.edit.formErrors != nil {
		m.edit.formErrors = m.edit.form.Validate()
	}
	return nil
}

// Cancel backs out of the current step. Editing an existing feature reverts
// the edits and returns to read mode; every other state returns to Idle.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case Idle:
		return m.reject(ActionCancel)
	case Editing:
		if m.edit.featureID != nil && m.edit.form.Mode() == forms.Editable {
			m.edit.revert()
			record(ActionCancel, "ok")
			return nil
		}
	}
	m.reset()
	record(ActionCancel, "ok")
	return nil
}

// Close ends whatever is open and returns to Idle. Closing an idle session is a no-op.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Idle && m.marker == nil {
		return
	}
	m.reset()
	record(ActionClose, "ok")
}

// Save validates the form and hands it to the store. On success the session
// returns to Idle and the point layer version advances. If the session was
// closed while the store was working, the result is discarded.
func (m *Machine) Save(ctx context.Context) (SaveOutcome, error) {
	m.mu.Lock()
	if m.state != Editing || m.edit.form.Mode() != forms.Editable {
		err := m.reject(ActionSave)
		m.mu.Unlock()
		return SaveOutcome{}, err
	}
	if m.edit.pending {
		m.mu.Unlock()
		return SaveOutcome{}, ErrSavePending
	}
	if errs := m.edit.form.Validate(); len(errs) > 0 {
		m.edit.formErrors = errs
		m.mu.Unlock()
		record(ActionSave, "invalid")
		return SaveOutcome{}, &FormError{Fields: errs}
	}

	edit := m.edit
	req := SaveRequest{
		ExistingID:    edit.featureID,
		ProjectID:     m.projectID,
		FeatureTypeID: edit.typeID,
		Position:      edit.position,
		Estado:        edit.estado,
		Attributes:    edit.form.Payload(),
		UserID:        m.userID,
	}
	token := edit.token
	edit.pending = true
	edit.formErrors = nil
	m.pendingSaves++
	m.mu.Unlock()

	res, err := m.store.Save(context.WithoutCancel(ctx), req)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingSaves--
	if m.edit == nil || m.edit.token != token {
		if m.edit == edit {
			edit.pending = false
		}
		record(ActionSave, "stale")
		return SaveOutcome{Stale: true, ID: res.ID, TechnicalID: res.TechnicalID, Created: res.Created}, nil
	}
	m.edit.pending = false
	if err != nil {
		m.edit.lastError = message(err)
		record(ActionSave, "failed")
		return SaveOutcome{}, err
	}

	m.reset()
	m.pointsVersion++
	record(ActionSave, "ok")
	return SaveOutcome{Applied: true, ID: res.ID, TechnicalID: res.TechnicalID, Created: res.Created}, nil
}

// Delete removes the open feature. Like Save, a completion arriving after the
// session was closed is discarded.
func (m *Machine) Delete(ctx context.Context) (SaveOutcome, error) {
	m.mu.Lock()
	if m.state != Editing || m.edit.featureID == nil {
		err := m.reject(ActionDelete)
		m.mu.Unlock()
		return SaveOutcome{}, err
	}
	if m.edit.pending {
		m.mu.Unlock()
		return SaveOutcome{}, ErrSavePending
	}
	edit := m.edit
	id := *edit.featureID
	token := edit.token
	edit.pending = true
	m.mu.Unlock()

	err := m.store.Delete(context.WithoutCancel(ctx), id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edit == nil || m.edit.token != token {
		if m.edit == edit {
			edit.pending = false
		}
		record(ActionDelete, "stale")
		return SaveOutcome{Stale: true, ID: id}, nil
	}
	m.edit.pending = false
	if err != nil {
		m.edit.lastError = message(err)
		record(ActionDelete, "failed")
		return SaveOutcome{}, err
	}

	m.reset()
	m.pointsVersion++
	record(ActionDelete, "ok")
	return SaveOutcome{Applied: true, ID: id}, nil
}

// BumpPoints marks the point layer stale, e.g. after another user's import.
func (m *Machine) BumpPoints() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointsVersion++
}

// reset returns to Idle, removing the marker and invalidating the editing token.
func (m *Machine) reset() {
	m.removeMarker()
	m.offered = nil
	m.selected = nil
	m.edit = nil
	m.transition(Idle)
}

func (m *Machine) removeMarker() {
	if m.marker != nil {
		m.marker.Remove()
		m.marker = nil
	}
}

func (m *Machine) transition(to State) {
	m.state = to
	m.gen++
}

func (m *Machine) reject(a Action) error {
	record(a, "rejected")
	return &InvalidActionError{Action: a, State: m.state}
}

func newEditSession(featureID *uuid.UUID, technicalID string, typeID uuid.UUID, estado string, pos Position, schema domain.Schema, initial map[string]any, mode forms.Mode) *editSession {
	return &editSession{
		token:       uuid.New(),
		featureID:   featureID,
		technicalID: technicalID,
		typeID:      typeID,
		estado:      estado,
		position:    pos,
		schema:      schema,
		initial:     initial,
		form:        forms.Render(schema, initial, mode),
	}
}

// revert discards edits and returns to read mode. The token changes so an
// in-flight save of the discarded edits cannot close the panel. pending is
// left set until that save completes so a second save cannot start beside it.
func (e *editSession) revert() {
	e.token = uuid.New()
	e.form = forms.Render(e.schema, e.initial, forms.ReadOnly)
	e.formErrors = nil
	e.lastError = ""
}

func record(a Action, result string) {
	metrics.PlacementTransitionsTotal.WithLabelValues(string(a), result).Inc()
}

func message(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
