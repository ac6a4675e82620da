package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"field_inventory_backend/internal/adapters/storage"
	"field_inventory_backend/internal/events"
	"field_inventory_backend/internal/features/repository"
	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"
	"field_inventory_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu       sync.Mutex
	features map[uuid.UUID]repository.Feature
	photos   map[uuid.UUID][]repository.Photo
	seq      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{features: map[uuid.UUID]repository.Feature{}, photos: map[uuid.UUID][]repository.Photo{}}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Feature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feat, ok := f.features[id]
	if !ok {
		return repository.Feature{}, apperr.NotFound("feature not found")
	}
	return feat, nil
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateParams) (repository.Feature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	techID := domain.FormatTechnicalID("POS", f.seq)
	attrs := make(map[string]any, len(p.Attributes)+1)
	for k, v := range p.Attributes {
		attrs[k] = v
	}
	if p.TechnicalIDKey != "" {
		attrs[p.TechnicalIDKey] = techID
	}
	feat := repository.Feature{
		ID:            uuid.New(),
		ProjectID:     p.ProjectID,
		FeatureTypeID: p.FeatureTypeID,
		TechnicalID:   techID,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Estado:        p.Estado,
		Attributes:    attrs,
		CreatedBy:     p.CreatedBy,
	}
	f.features[feat.ID] = feat
	return feat, nil
}

func (f *fakeRepo) Update(_ context.Context, p repository.UpdateParams) (repository.Feature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feat, ok := f.features[p.ID]
	if !ok {
		return repository.Feature{}, apperr.NotFound("feature not found")
	}
	feat.Latitude, feat.Longitude, feat.Estado, feat.Attributes = p.Latitude, p.Longitude, p.Estado, p.Attributes
	f.features[p.ID] = feat
	return feat, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.features[id]; !ok {
		return apperr.NotFound("feature not found")
	}
	delete(f.features, id)
	delete(f.photos, id)
	return nil
}

func (f *fakeRepo) ListPoints(_ context.Context, projectID uuid.UUID) ([]repository.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Point
	for _, feat := range f.features {
		if feat.ProjectID == projectID {
			out = append(out, repository.Point{ID: feat.ID, TechnicalID: feat.TechnicalID})
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPhotos(_ context.Context, featureID uuid.UUID) ([]repository.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.Photo(nil), f.photos[featureID]...), nil
}

func (f *fakeRepo) CreatePhoto(_ context.Context, p repository.CreatePhotoParams) (repository.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	photo := repository.Photo{
		ID:          uuid.New(),
		FeatureID:   p.FeatureID,
		ObjectKey:   p.ObjectKey,
		FileName:    p.FileName,
		ContentType: p.ContentType,
		SizeBytes:   p.SizeBytes,
		TakenAt:     p.TakenAt,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
	}
	f.photos[p.FeatureID] = append(f.photos[p.FeatureID], photo)
	return photo, nil
}

type fakeSchemas struct {
	schema domain.Schema
}

func (f fakeSchemas) Resolve(context.Context, uuid.UUID) (domain.Schema, error) {
	return f.schema, nil
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	presigns int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (f *fakeStorage) EnsureBucketExists(context.Context, string) error { return nil }

func (f *fakeStorage) UploadFile(_ context.Context, _, folder, fileName, _ string, r io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := storage.ObjectKey(folder, fileName)
	f.mu.Lock()
	f.uploaded[key] = data
	f.mu.Unlock()
	return key, nil
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, _, key string) (*storage.PresignedURL, error) {
	f.mu.Lock()
	f.presigns++
	f.mu.Unlock()
	return &storage.PresignedURL{URL: "https://files.example/" + key, FileKey: key, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, _, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) ValidateContentType(ct string) error {
	if ct != "image/jpeg" && ct != "image/png" {
		return errors.New("content type not allowed")
	}
	return nil
}

func (f *fakeStorage) ValidateFileSize(n int64) error {
	if n <= 0 || n > 1<<20 {
		return errors.New("bad size")
	}
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func poleSchema() domain.Schema {
	return domain.NewSchema(uuid.New(), []domain.AttributeDefinition{
		{Field: "id_tecnico", Kind: domain.KindText, Required: true, Order: 0},
		{Field: "material", Kind: domain.KindSelect, Required: true, Options: []string{"Concreto", "Madera"}, Order: 1},
		{Field: "altura", Kind: domain.KindDecimal, Order: 2},
	})
}

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	storage *fakeStorage
	bus     *recordingBus
	schema  domain.Schema
}

func newFixture() fixture {
	repo := newFakeRepo()
	store := newFakeStorage()
	bus := &recordingBus{}
	schema := poleSchema()
	return fixture{
		svc:     New(repo, fakeSchemas{schema: schema}, store, "photos", bus, logger.Nop()),
		repo:    repo,
		storage: store,
		bus:     bus,
		schema:  schema,
	}
}

func TestSaveCreatesFeature(t *testing.T) {
	fx := newFixture()
	projectID := uuid.New()

	res, err := fx.svc.Save(context.Background(), SaveInput{
		ProjectID:     projectID,
		FeatureTypeID: fx.schema.FeatureTypeID,
		Latitude:      4.6,
		Longitude:     -74.08,
		Attributes:    map[string]any{"id_tecnico": "manual", "material": "madera", "altura": "9,5"},
		UserID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created || res.TechnicalID != "POS-000001" {
		t.Fatalf("unexpected result %+v", res)
	}

	stored := fx.repo.features[res.ID]
	if stored.Estado != "PENDIENTE" {
		t.Fatalf("expected default estado, got %s", stored.Estado)
	}
	if stored.Attributes["MATERIAL"] != "Madera" || stored.Attributes["ALTURA"] != 9.5 {
		t.Fatalf("unexpected attributes %v", stored.Attributes)
	}
	if stored.Attributes["ID_TECNICO"] != "POS-000001" {
		t.Fatalf("expected allocated technical id in attributes, got %v", stored.Attributes["ID_TECNICO"])
	}
	if len(fx.bus.events) != 1 || fx.bus.events[0].EventName() != events.FeatureSavedName {
		t.Fatalf("expected one features.saved event, got %v", fx.bus.events)
	}
}

func TestSaveRejectsMissingRequiredAttribute(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Save(context.Background(), SaveInput{
		ProjectID:     uuid.New(),
		FeatureTypeID: fx.schema.FeatureTypeID,
		Latitude:      4.6,
		Longitude:     -74.08,
		Attributes:    map[string]any{"id_tecnico": "x"},
	})
	if !apperr.Is(err, apperr.KindUnprocessable) {
		t.Fatalf("expected unprocessable, got %v", err)
	}
	var appErr *apperr.Error
	errors.As(err, &appErr)
	details, ok := appErr.Details.(map[string]string)
	if !ok || details["material"] == "" || len(details) != 1 {
		t.Fatalf("expected only a material detail, got %#v", appErr.Details)
	}
	if len(fx.repo.features) != 0 {
		t.Fatal("expected nothing stored")
	}
}

func TestSaveCreateWithoutTechnicalIDAttribute(t *testing.T) {
	fx := newFixture()

	for i, attrs := range []map[string]any{
		{"MATERIAL": "Concreto"},
		{"MATERIAL": "Concreto", "ID_TECNICO": nil},
		{"MATERIAL": "Concreto", "ID_TÉCNICO": "POS-999999"},
	} {
		res, err := fx.svc.Save(context.Background(), SaveInput{
			ProjectID:     uuid.New(),
			FeatureTypeID: fx.schema.FeatureTypeID,
			Latitude:      4.6,
			Longitude:     -74.08,
			Attributes:    attrs,
		})
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		stored := fx.repo.features[res.ID]
		if stored.Attributes["ID_TECNICO"] != res.TechnicalID {
			t.Fatalf("case %d: expected ID_TECNICO %s, got %v", i, res.TechnicalID, stored.Attributes)
		}
		if _, ok := stored.Attributes["ID_TÉCNICO"]; ok {
			t.Fatalf("case %d: accented key should not be stored, got %v", i, stored.Attributes)
		}
	}
}

func TestSaveRejectsTechnicalIDWhenSchemaLacksIt(t *testing.T) {
	repo := newFakeRepo()
	schema := domain.NewSchema(uuid.New(), []domain.AttributeDefinition{
		{Field: "material", Kind: domain.KindText, Order: 1},
	})
	svc := New(repo, fakeSchemas{schema: schema}, nil, "", nil, logger.Nop())

	_, err := svc.Save(context.Background(), SaveInput{
		ProjectID:     uuid.New(),
		FeatureTypeID: schema.FeatureTypeID,
		Attributes:    map[string]any{"material": "x", "ID_TECNICO": "POS-000001"},
	})
	if !apperr.Is(err, apperr.KindUnprocessable) {
		t.Fatalf("expected unprocessable, got %v", err)
	}
}

func TestSaveRejectsUnknownAndReservedAttributes(t *testing.T) {
	fx := newFixture()

	for _, key := range []string{"voltaje", "LATITUDE"} {
		_, err := fx.svc.Save(context.Background(), SaveInput{
			ProjectID:     uuid.New(),
			FeatureTypeID: fx.schema.FeatureTypeID,
			Latitude:      1,
			Longitude:     1,
			Attributes:    map[string]any{"id_tecnico": "x", "material": "Madera", key: "1"},
		})
		if !apperr.Is(err, apperr.KindUnprocessable) {
			t.Fatalf("%s: expected unprocessable, got %v", key, err)
		}
	}
}

func TestSaveRejectsUnknownEstadoAndBadCoordinates(t *testing.T) {
	fx := newFixture()
	base := SaveInput{
		ProjectID:     uuid.New(),
		FeatureTypeID: fx.schema.FeatureTypeID,
		Attributes:    map[string]any{"id_tecnico": "x", "material": "Madera"},
	}

	in := base
	in.Estado = "ROTO"
	if _, err := fx.svc.Save(context.Background(), in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for estado, got %v", err)
	}

	in = base
	in.Latitude = 91
	if _, err := fx.svc.Save(context.Background(), in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for latitude, got %v", err)
	}
}

func TestSaveUpdateSeedsTechnicalIDAndKeepsType(t *testing.T) {
	fx := newFixture()
	projectID := uuid.New()
	existing, _ := fx.repo.Create(context.Background(), repository.CreateParams{
		ProjectID:     projectID,
		FeatureTypeID: fx.schema.FeatureTypeID,
		Estado:        "ACTIVO",
		Attributes:    map[string]any{"MATERIAL": "CONCRETO"},
	})

	res, err := fx.svc.Save(context.Background(), SaveInput{
		ExistingID:    &existing.ID,
		ProjectID:     projectID,
		FeatureTypeID: fx.schema.FeatureTypeID,
		Latitude:      4.7,
		Longitude:     -74.1,
		Estado:        "en_reparacion",
		Attributes:    map[string]any{"MATERIAL": "CONCRETO", "ID_TECNICO": "POS-999999"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created || res.ID != existing.ID {
		t.Fatalf("expected update of %s, got %+v", existing.ID, res)
	}
	stored := fx.repo.features[existing.ID]
	if stored.Attributes["ID_TECNICO"] != existing.TechnicalID {
		t.Fatalf("expected technical id seeded, got %v", stored.Attributes["ID_TECNICO"])
	}
	if stored.Estado != "EN_REPARACION" {
		t.Fatalf("expected folded estado, got %s", stored.Estado)
	}

	_, err = fx.svc.Save(context.Background(), SaveInput{
		ExistingID:    &existing.ID,
		ProjectID:     projectID,
		FeatureTypeID: uuid.New(),
		Attributes:    map[string]any{"MATERIAL": "CONCRETO"},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error when changing type, got %v", err)
	}
}

func TestDetailPresignsEveryPhoto(t *testing.T) {
	fx := newFixture()
	feat, _ := fx.repo.Create(context.Background(), repository.CreateParams{ProjectID: uuid.New(), FeatureTypeID: fx.schema.FeatureTypeID})
	for i := 0; i < 12; i++ {
		_, _ = fx.repo.CreatePhoto(context.Background(), repository.CreatePhotoParams{FeatureID: feat.ID, ObjectKey: uuid.NewString()})
	}

	resp, err := fx.svc.Detail(context.Background(), feat.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Photos) != 12 || fx.storage.presigns != 12 {
		t.Fatalf("expected 12 presigned photos, got %d photos / %d presigns", len(resp.Photos), fx.storage.presigns)
	}
	for _, p := range resp.Photos {
		if p.DownloadURL != "https://files.example/"+p.FileKey {
			t.Fatalf("unexpected url %s for %s", p.DownloadURL, p.FileKey)
		}
	}
}

func TestDeleteRemovesPhotosAndPublishes(t *testing.T) {
	fx := newFixture()
	feat, _ := fx.repo.Create(context.Background(), repository.CreateParams{ProjectID: uuid.New(), FeatureTypeID: fx.schema.FeatureTypeID})
	_, _ = fx.repo.CreatePhoto(context.Background(), repository.CreatePhotoParams{FeatureID: feat.ID, ObjectKey: "a.jpg"})

	if err := fx.svc.Delete(context.Background(), feat.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.storage.deleted) != 1 || fx.storage.deleted[0] != "a.jpg" {
		t.Fatalf("expected photo object deleted, got %v", fx.storage.deleted)
	}
	if len(fx.bus.events) != 1 || fx.bus.events[0].EventName() != events.FeatureDeletedName {
		t.Fatalf("expected features.deleted event, got %v", fx.bus.events)
	}
	if err := fx.svc.Delete(context.Background(), feat.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestUploadPhotoWithoutExif(t *testing.T) {
	fx := newFixture()
	feat, _ := fx.repo.Create(context.Background(), repository.CreateParams{ProjectID: uuid.New(), FeatureTypeID: fx.schema.FeatureTypeID})

	resp, err := fx.svc.UploadPhoto(context.Background(), PhotoUpload{
		FeatureID:   feat.ID,
		FileName:    "poste.png",
		ContentType: "image/png",
		Data:        []byte("\x89PNG\r\n\x1a\nnot really an image"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TakenAt != nil || resp.Position != nil {
		t.Fatalf("expected no exif metadata, got %+v", resp)
	}
	if len(fx.storage.uploaded) != 1 {
		t.Fatalf("expected one stored object, got %d", len(fx.storage.uploaded))
	}

	_, err = fx.svc.UploadPhoto(context.Background(), PhotoUpload{FeatureID: feat.ID, FileName: "x.gif", ContentType: "image/gif", Data: []byte("GIF89a")})
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request for gif, got %v", err)
	}
}

func TestUploadPhotoWithoutStorage(t *testing.T) {
	svc := New(newFakeRepo(), fakeSchemas{}, nil, "", nil, logger.Nop())
	_, err := svc.UploadPhoto(context.Background(), PhotoUpload{FeatureID: uuid.New(), ContentType: "image/png", Data: []byte{1}})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestLabelEncodesTechnicalID(t *testing.T) {
	fx := newFixture()
	feat, _ := fx.repo.Create(context.Background(), repository.CreateParams{ProjectID: uuid.New(), FeatureTypeID: fx.schema.FeatureTypeID})

	png, techID, err := fx.svc.Label(context.Background(), feat.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if techID != feat.TechnicalID {
		t.Fatalf("expected %s, got %s", feat.TechnicalID, techID)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("expected PNG output")
	}
}
