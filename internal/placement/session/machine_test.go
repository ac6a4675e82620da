package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"

	"github.com/google/uuid"
)

var (
	poleType = domain.FeatureType{ID: uuid.New(), Name: "Poste", Code: "POS"}
	boxType  = domain.FeatureType{ID: uuid.New(), Name: "Caja", Code: "CAJ"}
)

type fakeCatalog struct{}

func (fakeCatalog) AssignedFeatureTypes(context.Context, uuid.UUID) ([]domain.FeatureType, error) {
	return []domain.FeatureType{poleType, boxType}, nil
}

func (fakeCatalog) Resolve(_ context.Context, id uuid.UUID) (domain.Schema, error) {
	return domain.NewSchema(id, []domain.AttributeDefinition{
		{Field: "material", Kind: domain.KindSelect, Required: true, Options: []string{"Concreto", "Madera"}, Order: 1},
		{Field: "energizado", Kind: domain.KindBoolean, Order: 2},
	}), nil
}

type fakeStore struct {
	mu       sync.Mutex
	features map[uuid.UUID]FeatureSnapshot
	saved    []SaveRequest
	deleted  []uuid.UUID
	saveErr  error
	started  chan struct{}
	release  chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{features: map[uuid.UUID]FeatureSnapshot{}}
}

func (f *fakeStore) Feature(_ context.Context, id uuid.UUID) (FeatureSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.features[id]
	if !ok {
		return FeatureSnapshot{}, apperr.NotFound("feature not found")
	}
	return snap, nil
}

func (f *fakeStore) Save(_ context.Context, req SaveRequest) (SaveResult, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return SaveResult{}, f.saveErr
	}
	f.saved = append(f.saved, req)
	return SaveResult{ID: uuid.New(), TechnicalID: "POS-000001", Created: req.ExistingID == nil}, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestMachine() (*Machine, *fakeStore, *MemorySurface, uuid.UUID) {
	store := newFakeStore()
	surface := NewMemorySurface()
	projectID := uuid.New()
	return NewMachine(uuid.New(), projectID, fakeCatalog{}, store, surface), store, surface, projectID
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCancelWhilePositioningLeavesNothingBehind(t *testing.T) {
	m, store, surface, _ := newTestMachine()
	ctx := context.Background()

	mustNoErr(t, m.Add(ctx))
	mustNoErr(t, m.SelectType(poleType.ID, Position{Latitude: 4.6, Longitude: -74.08}))
	mustNoErr(t, m.MoveMarker(Position{Latitude: 4.61, Longitude: -74.07}))
	mustNoErr(t, m.Cancel())

	if m.State() != Idle {
		t.Fatalf("expected idle, got %s", m.State())
	}
	if surface.Live() != 0 {
		t.Fatalf("expected marker removed, %d live", surface.Live())
	}
	if len(store.saved) != 0 {
		t.Fatal("expected no feature created")
	}
}

func TestIdleOnlyAcceptsAddAndOpen(t *testing.T) {
	m, store, _, projectID := newTestMachine()
	ctx := context.Background()

	rejected := map[string]func() error{
		"select":  func() error { return m.SelectType(poleType.ID, Position{}) },
		"move":    func() error { return m.MoveMarker(Position{}) },
		"confirm": func() error { return m.Confirm(ctx) },
		"cancel":  m.Cancel,
		"edit":    m.Edit,
		"change":  func() error { return m.Change("material", "Madera") },
		"save":    func() error { _, err := m.Save(ctx); return err },
		"delete":  func() error { _, err := m.Delete(ctx); return err },
	}
	for name, action := range rejected {
		err := action()
		if !errors.Is(err, ErrInvalidAction) {
			t.Fatalf("%s: expected ErrInvalidAction, got %v", name, err)
		}
		var invalid *InvalidActionError
		if !errors.As(err, &invalid) || invalid.State != Idle {
			t.Fatalf("%s: expected error reporting idle state, got %v", name, err)
		}
		if m.State() != Idle {
			t.Fatalf("%s: state changed to %s", name, m.State())
		}
	}

	mustNoErr(t, m.Add(ctx))
	if m.State() != SelectingType {
		t.Fatalf("expected selecting_type, got %s", m.State())
	}
	mustNoErr(t, m.Cancel())

	id := uuid.New()
	store.features[id] = FeatureSnapshot{ID: id, ProjectID: projectID, FeatureTypeID: poleType.ID, TechnicalID: "POS-000007"}
	mustNoErr(t, m.Open(ctx, id))
	if m.State() != Editing {
		t.Fatalf("expected editing, got %s", m.State())
	}
}

func TestSelectingAnotherTypeReplacesMarker(t *testing.T) {
	m, _, surface, _ := newTestMachine()
	mustNoErr(t, m.Add(context.Background()))
	mustNoErr(t, m.SelectType(poleType.ID, Position{Latitude: 1, Longitude: 1}))
	mustNoErr(t, m.SelectType(boxType.ID, Position{Latitude: 2, Longitude: 2}))

	if surface.Live() != 1 || surface.Placed() != 2 {
		t.Fatalf("expected exactly one live marker of two placed, got %d/%d", surface.Live(), surface.Placed())
	}
	v := m.View()
	if v.SelectedType == nil || v.SelectedType.ID != boxType.ID {
		t.Fatalf("expected box selected, got %+v", v.SelectedType)
	}
	if err := m.SelectType(uuid.New(), Position{}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestCreateFlow(t *testing.T) {
	m, store, surface, projectID := newTestMachine()
	ctx := context.Background()

	mustNoErr(t, m.Add(ctx))
	mustNoErr(t, m.SelectType(poleType.ID, Position{Latitude: 4.6, Longitude: -74.08}))
	mustNoErr(t, m.MoveMarker(Position{Latitude: 4.65, Longitude: -74.05}))
	mustNoErr(t, m.Confirm(ctx))

	if surface.Live() != 0 {
		t.Fatal("expected marker removed on confirm")
	}
	v := m.View()
	if v.Editing == nil || v.Editing.Mode != "edit" || v.Editing.FeatureID != nil {
		t.Fatalf("expected new feature in edit mode, got %+v", v.Editing)
	}
	if v.Editing.Position != (Position{Latitude: 4.65, Longitude: -74.05}) {
		t.Fatalf("expected dragged position, got %+v", v.Editing.Position)
	}

	var formErr *FormError
	if _, err := m.Save(ctx); !errors.As(err, &formErr) || formErr.Fields["material"] == "" {
		t.Fatalf("expected form error on material, got %v", err)
	}
	if m.View().Editing.Errors["material"] == "" {
		t.Fatal("expected errors kept on the view")
	}

	mustNoErr(t, m.Change("material", "concreto"))
	if len(m.View().Editing.Errors) != 0 {
		t.Fatalf("expected errors cleared, got %v", m.View().Editing.Errors)
	}

	out, err := m.Save(ctx)
	mustNoErr(t, err)
	if !out.Applied || !out.Created {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if m.State() != Idle || m.View().PointsVersion != 1 {
		t.Fatalf("expected idle with refreshed points, got %s v%d", m.State(), m.View().PointsVersion)
	}
	req := store.saved[0]
	if req.ProjectID != projectID || req.FeatureTypeID != poleType.ID || req.Attributes["MATERIAL"] != "Concreto" {
		t.Fatalf("unexpected save request %+v", req)
	}
}

func TestLateSaveCompletionIsDiscarded(t *testing.T) {
	m, store, _, _ := newTestMachine()
	ctx := context.Background()
	store.started = make(chan struct{})
	store.release = make(chan struct{})

	mustNoErr(t, m.Add(ctx))
	mustNoErr(t, m.SelectType(poleType.ID, Position{}))
	mustNoErr(t, m.Confirm(ctx))
	mustNoErr(t, m.Change("material", "Madera"))

	type result struct {
		out SaveOutcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.Save(ctx)
		done <- result{out, err}
	}()
	<-store.started

	m.Close()
	if m.State() != Idle {
		t.Fatalf("expected idle after close, got %s", m.State())
	}
	if m.View().AddEnabled {
		t.Fatal("expected add disabled while save pending")
	}
	if err := m.Add(ctx); !errors.Is(err, ErrSavePending) {
		t.Fatalf("expected ErrSavePending, got %v", err)
	}

	close(store.release)
	var res result
	select {
	case res = <-done:
	case <-time.After(time.Second):
		t.Fatal("save did not complete")
	}
	if res.err != nil || !res.out.Stale || res.out.Applied {
		t.Fatalf("expected stale outcome, got %+v / %v", res.out, res.err)
	}
	if m.State() != Idle || m.View().Editing != nil || m.View().PointsVersion != 0 {
		t.Fatalf("expected late completion to change nothing, got %+v", m.View())
	}
	mustNoErr(t, m.Add(ctx))
}

func TestSaveFailureKeepsFormForRetry(t *testing.T) {
	m, store, _, _ := newTestMachine()
	ctx := context.Background()
	store.saveErr = apperr.Conflict("duplicate key value violates unique constraint")

	mustNoErr(t, m.Add(ctx))
	mustNoErr(t, m.SelectType(poleType.ID, Position{}))
	mustNoErr(t, m.Confirm(ctx))
	mustNoErr(t, m.Change("material", "Madera"))

	if _, err := m.Save(ctx); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	v := m.View()
	if v.State != "editing" || v.Editing.LastError != "duplicate key value violates unique constraint" || v.Editing.Pending {
		t.Fatalf("expected editing with verbatim error, got %+v", v.Editing)
	}

	store.saveErr = nil
	out, err := m.Save(ctx)
	mustNoErr(t, err)
	if !out.Applied {
		t.Fatal("expected retry to apply")
	}
}

func TestOpenEditCancelRevertsToReadMode(t *testing.T) {
	m, store, _, projectID := newTestMachine()
	ctx := context.Background()
	id := uuid.New()
	store.features[id] = FeatureSnapshot{
		ID: id, ProjectID: projectID, FeatureTypeID: poleType.ID, TechnicalID: "POS-000003",
		Estado: "ACTIVO", Attributes: map[string]any{"MATERIAL": "CONCRETO"},
	}

	mustNoErr(t, m.Open(ctx, id))
	mustNoErr(t, m.Change("material", "Madera"))
	if got := controlValue(m.View(), "material"); got != "Concreto" {
		t.Fatalf("expected read-only change ignored, got %v", got)
	}

	mustNoErr(t, m.Edit())
	mustNoErr(t, m.Change("material", "Madera"))
	if got := controlValue(m.View(), "material"); got != "Madera" {
		t.Fatalf("expected change applied, got %v", got)
	}

	mustNoErr(t, m.Cancel())
	v := m.View()
	if v.State != "editing" || v.Editing.Mode != "read" {
		t.Fatalf("expected read mode after cancel, got %s/%s", v.State, v.Editing.Mode)
	}
	if got := controlValue(v, "material"); got != "Concreto" {
		t.Fatalf("expected edits reverted, got %v", got)
	}

	mustNoErr(t, m.Cancel())
	if m.State() != Idle {
		t.Fatalf("expected idle, got %s", m.State())
	}
}

func TestRevertDuringSaveKeepsSecondSaveOut(t *testing.T) {
	m, store, _, projectID := newTestMachine()
	ctx := context.Background()
	id := uuid.New()
	store.features[id] = FeatureSnapshot{
		ID: id, ProjectID: projectID, FeatureTypeID: poleType.ID, TechnicalID: "POS-000003",
		Estado: "ACTIVO", Attributes: map[string]any{"MATERIAL": "CONCRETO"},
	}
	store.started = make(chan struct{})
	store.release = make(chan struct{})

	mustNoErr(t, m.Open(ctx, id))
	mustNoErr(t, m.Edit())
	mustNoErr(t, m.Change("material", "Madera"))

	type result struct {
		out SaveOutcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.Save(ctx)
		done <- result{out, err}
	}()
	<-store.started

	mustNoErr(t, m.Cancel())
	mustNoErr(t, m.Edit())
	if _, err := m.Save(ctx); !errors.Is(err, ErrSavePending) {
		t.Fatalf("expected ErrSavePending while the reverted save runs, got %v", err)
	}
	if _, err := m.Delete(ctx); !errors.Is(err, ErrSavePending) {
		t.Fatalf("expected ErrSavePending for delete, got %v", err)
	}

	close(store.release)
	var res result
	select {
	case res = <-done:
	case <-time.After(time.Second):
		t.Fatal("save did not complete")
	}
	if res.err != nil || !res.out.Stale {
		t.Fatalf("expected stale outcome, got %+v / %v", res.out, res.err)
	}
	v := m.View()
	if v.State != "editing" || v.Editing.Pending {
		t.Fatalf("expected editing with no pending save, got %+v", v.Editing)
	}

	store.started = nil
	out, err := m.Save(ctx)
	mustNoErr(t, err)
	if !out.Applied {
		t.Fatalf("expected save to apply once the first completed, got %+v", out)
	}
	if len(store.saved) != 2 {
		t.Fatalf("expected two sequential store saves, got %d", len(store.saved))
	}
}

func TestOpenRejectsOtherProject(t *testing.T) {
	m, store, _, _ := newTestMachine()
	id := uuid.New()
	store.features[id] = FeatureSnapshot{ID: id, ProjectID: uuid.New(), FeatureTypeID: poleType.ID}

	if err := m.Open(context.Background(), id); !errors.Is(err, ErrOtherProject) {
		t.Fatalf("expected ErrOtherProject, got %v", err)
	}
	if m.State() != Idle {
		t.Fatalf("expected idle, got %s", m.State())
	}
}

func TestDeleteExistingFeature(t *testing.T) {
	m, store, _, projectID := newTestMachine()
	ctx := context.Background()
	id := uuid.New()
	store.features[id] = FeatureSnapshot{ID: id, ProjectID: projectID, FeatureTypeID: poleType.ID}

	mustNoErr(t, m.Open(ctx, id))
	out, err := m.Delete(ctx)
	mustNoErr(t, err)
	if !out.Applied || len(store.deleted) != 1 || store.deleted[0] != id {
		t.Fatalf("expected delete of %s, got %+v / %v", id, out, store.deleted)
	}
	if m.State() != Idle || m.View().PointsVersion != 1 {
		t.Fatalf("expected idle with refreshed points, got %+v", m.View())
	}

	mustNoErr(t, m.Add(ctx))
	mustNoErr(t, m.SelectType(poleType.ID, Position{}))
	mustNoErr(t, m.Confirm(ctx))
	if _, err := m.Delete(ctx); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected delete of unsaved feature rejected, got %v", err)
	}
}

func TestCloseRemovesMarker(t *testing.T) {
	m, _, surface, _ := newTestMachine()
	mustNoErr(t, m.Add(context.Background()))
	mustNoErr(t, m.SelectType(poleType.ID, Position{}))

	m.Close()
	m.Close()
	if surface.Live() != 0 || m.State() != Idle {
		t.Fatalf("expected idle without markers, got %s with %d", m.State(), surface.Live())
	}
}

func controlValue(v View, field string) any {
	for _, c := range v.Editing.Controls {
		if c.Field == field {
			return c.Value
		}
	}
	return nil
}
