// Package service implements feature detail, save, delete and photo operations.
package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"field_inventory_backend/internal/adapters/storage"
	"field_inventory_backend/internal/events"
	"field_inventory_backend/internal/features/repository"
	"field_inventory_backend/internal/features/transport"
	"field_inventory_backend/internal/forms"
	"field_inventory_backend/internal/imports/ingest"
	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"
	"field_inventory_backend/platform/logger"
	"field_inventory_backend/platform/metrics"
	"field_inventory_backend/platform/textnorm"
	"field_inventory_backend/platform/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// presignConcurrency bounds parallel presign calls for one detail request.
const presignConcurrency = 8

// SchemaResolver provides feature type schemas.
type SchemaResolver interface {
	Resolve(ctx context.Context, featureTypeID uuid.UUID) (domain.Schema, error)
}

// SaveInput carries a create (ExistingID nil) or update request.
type SaveInput struct {
	ExistingID    *uuid.UUID
	ProjectID     uuid.UUID
	FeatureTypeID uuid.UUID
	Latitude      float64
	Longitude     float64
	Estado        string
	Attributes    map[string]any
	UserID        uuid.UUID
}

// SaveResult is the outcome of a successful save.
type SaveResult struct {
	ID          uuid.UUID
	TechnicalID string
	Created     bool
}

// Service implements feature business logic.
type Service struct {
	repo    repository.Repository
	schemas SchemaResolver
	photos  storage.StorageService
	bucket  string
	bus     events.Bus
	log     *logger.Logger
}

// New creates the feature service. photos may be nil when object storage is not configured.
func New(repo repository.Repository, schemas SchemaResolver, photos storage.StorageService, bucket string, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, schemas: schemas, photos: photos, bucket: bucket, bus: bus, log: log}
}

// Get returns the stored feature.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Feature, error) {
	return s.repo.GetByID(ctx, id)
}

// Detail returns the feature with its photos and their download links.
func (s *Service) Detail(ctx context.Context, id uuid.UUID) (transport.FeatureResponse, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.FeatureResponse{}, err
	}
	photos, err := s.repo.ListPhotos(ctx, id)
	if err != nil {
		return transport.FeatureResponse{}, err
	}

	resp := toFeatureResponse(f)
	resp.Photos = make([]transport.PhotoResponse, len(photos))
	for i, p := range photos {
		resp.Photos[i] = toPhotoResponse(p)
	}
	if s.photos == nil || len(photos) == 0 {
		return resp, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(presignConcurrency)
	for i := range photos {
		g.Go(func() error {
			presigned, err := s.photos.GenerateDownloadURL(gctx, s.bucket, photos[i].ObjectKey)
			if err != nil {
				return fmt.Errorf("presign photo %s: %w", photos[i].ID, err)
			}
			resp.Photos[i].DownloadURL = presigned.URL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return transport.FeatureResponse{}, err
	}
	return resp, nil
}

// Save validates attributes against the feature type schema and creates or
// updates the feature.
func (s *Service) Save(ctx context.Context, in SaveInput) (SaveResult, error) {
	if err := checkCoordinates(in.Latitude, in.Longitude); err != nil {
		return SaveResult{}, err
	}
	estado := ingest.DefaultEstado
	if strings.TrimSpace(in.Estado) != "" {
		estado = textnorm.Fold(in.Estado)
	}
	if !validator.IsFeatureStatus(estado) {
		return SaveResult{}, apperr.Validation(fmt.Sprintf("estado %q is not a known status", in.Estado))
	}

	var existing *repository.Feature
	if in.ExistingID != nil {
		f, err := s.repo.GetByID(ctx, *in.ExistingID)
		if err != nil {
			return SaveResult{}, err
		}
		if f.ProjectID != in.ProjectID {
			return SaveResult{}, apperr.Validation("feature belongs to another project")
		}
		if f.FeatureTypeID != in.FeatureTypeID {
			return SaveResult{}, apperr.Validation("feature type cannot be changed")
		}
		existing = &f
	}

	schema, err := s.schemas.Resolve(ctx, in.FeatureTypeID)
	if err != nil {
		return SaveResult{}, err
	}
	payload, techKey, err := buildPayload(schema, in.Attributes, existing)
	if err != nil {
		return SaveResult{}, err
	}

	var saved repository.Feature
	if existing == nil {
		saved, err = s.repo.Create(ctx, repository.CreateParams{
			ProjectID:      in.ProjectID,
			FeatureTypeID:  in.FeatureTypeID,
			Latitude:       in.Latitude,
			Longitude:      in.Longitude,
			Estado:         estado,
			Attributes:     payload,
			TechnicalIDKey: techKey,
			CreatedBy:      in.UserID,
		})
	} else {
		saved, err = s.repo.Update(ctx, repository.UpdateParams{
			ID:         existing.ID,
			Latitude:   in.Latitude,
			Longitude:  in.Longitude,
			Estado:     estado,
			Attributes: payload,
		})
	}
	if err != nil {
		return SaveResult{}, err
	}

	created := existing == nil
	op := "update"
	if created {
		op = "create"
	}
	metrics.FeaturesSavedTotal.WithLabelValues(op).Inc()
	s.log.Info("feature saved",
		"featureId", saved.ID,
		"technicalId", saved.TechnicalID,
		"projectId", saved.ProjectID,
		"op", op,
	)

	if s.bus != nil {
		s.bus.Publish(ctx, events.FeatureSaved{
			BaseEvent:     events.NewBaseEvent(),
			FeatureID:     saved.ID,
			ProjectID:     saved.ProjectID,
			FeatureTypeID: saved.FeatureTypeID,
			Created:       created,
		})
	}

	return SaveResult{ID: saved.ID, TechnicalID: saved.TechnicalID, Created: created}, nil
}

// Delete removes the feature and, best effort, its stored photos.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	photos, err := s.repo.ListPhotos(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.photos != nil {
		for _, p := range photos {
			if err := s.photos.DeleteObject(ctx, s.bucket, p.ObjectKey); err != nil {
				s.log.Warn("failed to delete photo object", "featureId", id, "objectKey", p.ObjectKey, "error", err)
			}
		}
	}

	metrics.FeaturesDeletedTotal.Inc()
	s.log.Info("feature deleted", "featureId", id, "technicalId", f.TechnicalID, "projectId", f.ProjectID)

	if s.bus != nil {
		s.bus.Publish(ctx, events.FeatureDeleted{
			BaseEvent: events.NewBaseEvent(),
			FeatureID: id,
			ProjectID: f.ProjectID,
		})
	}
	return nil
}

// ListPoints returns the map point layer of a project.
func (s *Service) ListPoints(ctx context.Context, projectID uuid.UUID) (transport.PointListResponse, error) {
	points, err := s.repo.ListPoints(ctx, projectID)
	if err != nil {
		return transport.PointListResponse{}, err
	}
	resp := transport.PointListResponse{Points: make([]transport.PointResponse, len(points)), Total: len(points)}
	for i, p := range points {
		resp.Points[i] = transport.PointResponse{
			ID:            p.ID,
			FeatureTypeID: p.FeatureTypeID,
			TechnicalID:   p.TechnicalID,
			Latitude:      p.Latitude,
			Longitude:     p.Longitude,
			Estado:        p.Estado,
		}
	}
	return resp, nil
}

// buildPayload validates attributes with the form engine and returns the
// values to store. Keys outside the schema are rejected. When the schema
// defines the technical id field, incoming values for it are dropped. An
// update stores the existing id. A create returns the attribute key so the
// repository can fill it once the id is allocated.
func buildPayload(schema domain.Schema, attrs map[string]any, existing *repository.Feature) (map[string]any, string, error) {
	techDef, hasTechField := schema.Lookup(domain.TechnicalIDField)

	details := make(map[string]string)
	initial := make(map[string]any, len(attrs)+1)
	for key, v := range attrs {
		if hasTechField && domain.IsTechnicalID(key) {
			continue
		}
		if ingest.IsReserved(key) {
			details[key] = key + " is a reserved column and cannot be an attribute"
			continue
		}
		if _, ok := schema.Lookup(key); !ok {
			details[key] = key + " is not defined for this feature type"
			continue
		}
		initial[key] = v
	}
	if len(details) > 0 {
		return nil, "", apperr.Unprocessable("attribute validation failed").WithDetails(details)
	}

	if hasTechField && existing != nil {
		initial[techDef.Field] = existing.TechnicalID
	}

	form := forms.Render(schema, initial, forms.Editable)
	errs := form.Validate()
	if hasTechField && existing == nil {
		delete(errs, techDef.Field)
	}
	if len(errs) > 0 {
		return nil, "", apperr.Unprocessable("attribute validation failed").WithDetails(errs)
	}

	payload := form.Payload()
	if hasTechField && existing == nil {
		delete(payload, techDef.AttributeKey())
		return payload, techDef.AttributeKey(), nil
	}
	return payload, "", nil
}

func checkCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return apperr.Validation("latitude must be between -90 and 90")
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return apperr.Validation("longitude must be between -180 and 180")
	}
	return nil
}

func toFeatureResponse(f repository.Feature) transport.FeatureResponse {
	attrs := f.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return transport.FeatureResponse{
		ID:            f.ID,
		ProjectID:     f.ProjectID,
		FeatureTypeID: f.FeatureTypeID,
		TechnicalID:   f.TechnicalID,
		Coordinates:   transport.Coordinates{Latitude: f.Latitude, Longitude: f.Longitude},
		Estado:        f.Estado,
		Attributes:    attrs,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func toPhotoResponse(p repository.Photo) transport.PhotoResponse {
	resp := transport.PhotoResponse{
		ID:          p.ID,
		FileKey:     p.ObjectKey,
		FileName:    p.FileName,
		ContentType: p.ContentType,
		SizeBytes:   p.SizeBytes,
		TakenAt:     p.TakenAt,
		CreatedAt:   p.CreatedAt,
	}
	if p.Latitude != nil && p.Longitude != nil {
		resp.Position = &transport.Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	return resp
}
