package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"field_inventory_backend/internal/events"
	"field_inventory_backend/internal/imports/ingest"
	"field_inventory_backend/internal/imports/repository"
	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"
	"field_inventory_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeSchemas struct {
	schema domain.Schema
}

func (f *fakeSchemas) Resolve(context.Context, uuid.UUID) (domain.Schema, error) {
	return f.schema, nil
}

func (f *fakeSchemas) FeatureType(_ context.Context, id uuid.UUID) (domain.FeatureType, error) {
	return domain.FeatureType{ID: id, Name: "Poste", Code: "POS"}, nil
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []ingest.BatchRequest
	err   error
}

func (w *fakeWriter) WriteBatch(_ context.Context, req ingest.BatchRequest) (ingest.BatchOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, req)
	if w.err != nil {
		return ingest.BatchOutcome{}, w.err
	}
	return ingest.BatchOutcome{Inserted: len(req.Rows), FirstTechnicalID: "POS-000001"}, nil
}

type fakeEnqueuer struct {
	sessionID string
	token     string
}

func (e *fakeEnqueuer) EnqueueImportSubmit(_ context.Context, sessionID, lockToken string) error {
	e.sessionID = sessionID
	e.token = lockToken
	return nil
}

type capturingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *capturingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *capturingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *capturingBus) Subscribe(string, events.Handler) {}

type fixture struct {
	svc      *Service
	store    *repository.RedisStore
	schemas  *fakeSchemas
	writer   *fakeWriter
	enqueuer *fakeEnqueuer
	bus      *capturingBus
	user     uuid.UUID
	project  uuid.UUID
	typeID   uuid.UUID
}

func newFixture(t *testing.T, threshold int) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		store: repository.NewRedisStore(client),
		schemas: &fakeSchemas{schema: domain.NewSchema(uuid.Nil, []domain.AttributeDefinition{
			{Field: "material", Kind: domain.KindSelect, Required: true, Options: []string{"Concreto", "Madera"}, Order: 1},
			{Field: "altura", Kind: domain.KindNumber, Order: 2},
		})},
		writer:   &fakeWriter{},
		enqueuer: &fakeEnqueuer{},
		bus:      &capturingBus{},
		user:     uuid.New(),
		project:  uuid.New(),
		typeID:   uuid.New(),
	}
	f.svc = New(f.schemas, f.store, f.store, f.writer, f.enqueuer, f.bus, Settings{
		AsyncThreshold: threshold,
		SessionTTL:     time.Hour,
		LockTTL:        time.Minute,
	}, logger.Nop())
	return f
}

const validFile = "latitude,longitude,estado,material,altura\n" +
	"4.612345,-74.082345,PENDIENTE | ACTIVO,one of: Concreto | Madera,whole number\n" +
	"4.71,-74.07,,Madera,9\n" +
	"4.72,-74.08,activo,concreto,null\n"

func (f *fixture) upload(t *testing.T, file string) string {
	t.Helper()
	resp, err := f.svc.Upload(context.Background(), f.user, f.project, f.typeID, "C:\\tmp\\postes.csv", []byte(file))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp.ID
}

func TestUploadValidFile(t *testing.T) {
	f := newFixture(t, 0)

	resp, err := f.svc.Upload(context.Background(), f.user, f.project, f.typeID, "C:\\tmp\\postes.csv", []byte(validFile))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !resp.CanSubmit || resp.RowCount != 2 || len(resp.Errors) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.FileName != "postes.csv" {
		t.Fatalf("expected base file name, got %q", resp.FileName)
	}
	if resp.Preview[0].Estado != ingest.DefaultEstado || resp.Preview[1].Estado != "ACTIVO" {
		t.Fatalf("unexpected estados: %+v", resp.Preview)
	}
}

func TestUploadWithRowErrorBlocksSubmit(t *testing.T) {
	f := newFixture(t, 0)
	id := f.upload(t, "latitude,longitude,material,altura\nabc,-74.0,Madera,1\n")

	resp, _ := f.svc.Get(context.Background(), f.user, id)
	if resp.CanSubmit || len(resp.Errors) != 1 || resp.Errors[0].Line != 3 {
		t.Fatalf("expected one error at line 3 and submit disabled, got %+v", resp)
	}

	_, err := f.svc.Submit(context.Background(), f.user, id)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.writer.calls) != 0 {
		t.Fatal("writer must not be called")
	}
}

func TestUploadReportsValueErrorsBeforeSubmit(t *testing.T) {
	f := newFixture(t, 0)
	id := f.upload(t, "latitude,longitude,material,altura\n4.7,-74.0,Plastico,1\n")

	resp, _ := f.svc.Get(context.Background(), f.user, id)
	if resp.CanSubmit || len(resp.Errors) == 0 {
		t.Fatalf("expected value error to block submit, got %+v", resp)
	}
}

func TestSubmitInlineCommits(t *testing.T) {
	f := newFixture(t, 0)
	id := f.upload(t, validFile)

	resp, err := f.svc.Submit(context.Background(), f.user, id)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != string(repository.StatusCommitted) || resp.Outcome == nil || resp.Outcome.Inserted != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(f.writer.calls) != 1 || f.writer.calls[0].CreatorID != f.user {
		t.Fatalf("expected one write by the uploader, got %+v", f.writer.calls)
	}
	if len(f.bus.published) != 1 || f.bus.published[0].EventName() != events.ImportBatchCommittedName {
		t.Fatalf("expected committed event, got %+v", f.bus.published)
	}

	if _, err := f.svc.Submit(context.Background(), f.user, id); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected resubmission to conflict, got %v", err)
	}

	key := repository.SubmitLockKey(f.project, f.typeID)
	if _, ok, _ := f.store.Acquire(context.Background(), key, time.Second); !ok {
		t.Fatal("expected lock released after submission")
	}
}

func TestSubmitFailureKeepsRowsForRetry(t *testing.T) {
	f := newFixture(t, 0)
	id := f.upload(t, validFile)
	f.writer.err = apperr.Conflict(`duplicate key value violates unique constraint "features_technical_id_key"`)

	if _, err := f.svc.Submit(context.Background(), f.user, id); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict from writer, got %v", err)
	}

	resp, _ := f.svc.Get(context.Background(), f.user, id)
	if resp.Status != string(repository.StatusFailed) {
		t.Fatalf("expected failed status, got %s", resp.Status)
	}
	if resp.Failure != `duplicate key value violates unique constraint "features_technical_id_key"` {
		t.Fatalf("expected verbatim failure, got %q", resp.Failure)
	}
	if resp.RowCount != 2 || !resp.CanSubmit {
		t.Fatalf("expected rows kept for retry, got %+v", resp)
	}

	f.writer.err = nil
	if _, err := f.svc.Submit(context.Background(), f.user, id); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestSubmitRefusedWhileLockHeld(t *testing.T) {
	f := newFixture(t, 0)
	id := f.upload(t, validFile)

	key := repository.SubmitLockKey(f.project, f.typeID)
	if _, ok, _ := f.store.Acquire(context.Background(), key, time.Minute); !ok {
		t.Fatal("setup: acquire")
	}

	if _, err := f.svc.Submit(context.Background(), f.user, id); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.writer.calls) != 0 {
		t.Fatal("writer must not be called while locked")
	}
}

func TestSubmitLargeBatchIsQueued(t *testing.T) {
	f := newFixture(t, 1)
	id := f.upload(t, validFile)

	resp, err := f.svc.Submit(context.Background(), f.user, id)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != string(repository.StatusQueued) || f.enqueuer.sessionID != id {
		t.Fatalf("expected queued session, got %+v", resp)
	}
	if len(f.writer.calls) != 0 {
		t.Fatal("queued submission must not write inline")
	}

	if err := f.svc.ProcessQueued(context.Background(), id, f.enqueuer.token); err != nil {
		t.Fatalf("process queued: %v", err)
	}
	done, _ := f.svc.Get(context.Background(), f.user, id)
	if done.Status != string(repository.StatusCommitted) {
		t.Fatalf("expected committed after processing, got %s", done.Status)
	}
}

func TestSessionOwnedByUploader(t *testing.T) {
	f := newFixture(t, 0)
	id := f.upload(t, validFile)

	if _, err := f.svc.Get(context.Background(), uuid.New(), id); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSchemaChangeRejectedAtSubmit(t *testing.T) {
	f := newFixture(t, 0)
	id := f.upload(t, validFile)

	f.schemas.schema = domain.NewSchema(uuid.Nil, []domain.AttributeDefinition{
		{Field: "material", Kind: domain.KindSelect, Required: true, Options: []string{"Concreto"}, Order: 1},
		{Field: "altura", Kind: domain.KindNumber, Order: 2},
	})

	_, err := f.svc.Submit(context.Background(), f.user, id)
	if !apperr.Is(err, apperr.KindUnprocessable) {
		t.Fatalf("expected server-side rejection, got %v", err)
	}
	if len(f.writer.calls) != 0 {
		t.Fatal("storage must not be reached")
	}
}

func TestUnknownSessionIsGone(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.Get(context.Background(), f.user, "missing")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindGone {
		t.Fatalf("expected gone, got %v", err)
	}
}

func TestTemplateFileName(t *testing.T) {
	f := newFixture(t, 0)
	data, name, err := f.svc.Template(context.Background(), f.typeID)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if name != "pos_template.csv" || len(data) == 0 {
		t.Fatalf("unexpected template %q (%d bytes)", name, len(data))
	}
}
