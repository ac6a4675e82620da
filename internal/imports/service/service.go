package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"field_inventory_backend/internal/events"
	"field_inventory_backend/internal/imports/ingest"
	"field_inventory_backend/internal/imports/repository"
	"field_inventory_backend/internal/imports/transport"
	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"
	"field_inventory_backend/platform/logger"
	"field_inventory_backend/platform/metrics"

	"github.com/google/uuid"
)

// SchemaResolver provides feature type schemas.
type SchemaResolver interface {
	Resolve(ctx context.Context, featureTypeID uuid.UUID) (domain.Schema, error)
	FeatureType(ctx context.Context, featureTypeID uuid.UUID) (domain.FeatureType, error)
}

// SubmitEnqueuer hands large submissions to the background worker.
type SubmitEnqueuer interface {
	EnqueueImportSubmit(ctx context.Context, sessionID, lockToken string) error
}

// Settings are the import limits taken from configuration.
type Settings struct {
	AsyncThreshold int
	SessionTTL     time.Duration
	LockTTL        time.Duration
}

// Service runs the upload, validation and submission flow of batch imports.
type Service struct {
	schemas  SchemaResolver
	sessions repository.SessionStore
	locks    repository.Locker
	gate     *ingest.Gate
	enqueuer SubmitEnqueuer
	bus      events.Bus
	settings Settings
	log      *logger.Logger
	now      func() time.Time
}

// New creates the import service. enqueuer may be nil, in which case every
// submission runs inline.
func New(
	schemas SchemaResolver,
	sessions repository.SessionStore,
	locks repository.Locker,
	writer ingest.BatchWriter,
	enqueuer SubmitEnqueuer,
	bus events.Bus,
	settings Settings,
	log *logger.Logger,
) *Service {
	return &Service{
		schemas:  schemas,
		sessions: sessions,
		locks:    locks,
		gate:     ingest.NewGate(&validatingWriter{schemas: schemas, next: writer}),
		enqueuer: enqueuer,
		bus:      bus,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Upload validates a file against the feature type's schema and stores the
// result as a new session.
func (s *Service) Upload(ctx context.Context, creatorID, projectID, featureTypeID uuid.UUID, fileName string, contents []byte) (transport.SessionResponse, error) {
	schema, err := s.schemas.Resolve(ctx, featureTypeID)
	if err != nil {
		return transport.SessionResponse{}, err
	}

	result := ingest.Validate(contents, schema)
	rows := []ingest.ImportRow{}
	errs := result.Errors
	if result.Valid() {
		rows, err = ingest.NormalizeAll(result.Rows, schema)
		if err != nil {
			return transport.SessionResponse{}, fmt.Errorf("normalize import: %w", err)
		}
		if revalidation := ingest.Revalidate(rows, schema); len(revalidation) > 0 {
			errs = revalidation
			rows = []ingest.ImportRow{}
		}
	}

	now := s.now()
	session := &repository.Session{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		FeatureTypeID: featureTypeID,
		CreatorID:     creatorID,
		FileName:      path.Base(strings.ReplaceAll(fileName, "\\", "/")),
		Status:        repository.StatusValidated,
		Errors:        errs,
		Rows:          rows,
		RowCount:      len(rows),
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(s.settings.SessionTTL),
	}
	if err := s.sessions.Save(ctx, session, s.settings.SessionTTL); err != nil {
		return transport.SessionResponse{}, err
	}

	outcome := "valid"
	if len(errs) > 0 {
		outcome = "invalid"
	}
	metrics.ImportsValidatedTotal.WithLabelValues(outcome).Inc()
	s.log.ImportEvent("validated", session.ID, len(rows), len(errs))

	return toResponse(session), nil
}

// Get returns a session owned by the caller.
func (s *Service) Get(ctx context.Context, callerID uuid.UUID, sessionID string) (transport.SessionResponse, error) {
	session, err := s.ownedSession(ctx, callerID, sessionID)
	if err != nil {
		return transport.SessionResponse{}, err
	}
	return toResponse(session), nil
}

// Submit writes the session's rows as one batch. Batches above the async
// threshold are queued for the worker; smaller ones are written before returning.
// A failed write keeps the rows so the caller can retry.
func (s *Service) Submit(ctx context.Context, callerID uuid.UUID, sessionID string) (transport.SessionResponse, error) {
	session, err := s.ownedSession(ctx, callerID, sessionID)
	if err != nil {
		return transport.SessionResponse{}, err
	}

	switch session.Status {
	case repository.StatusValidated, repository.StatusFailed:
	case repository.StatusCommitted:
		return transport.SessionResponse{}, apperr.Conflict("import was already committed")
	default:
		return transport.SessionResponse{}, apperr.Conflict("import submission is already in progress")
	}
	if !ingest.CanSubmit(session.GateState()) {
		if len(session.Errors) > 0 {
			return transport.SessionResponse{}, apperr.Validation("import has errors and cannot be submitted").WithDetails(session.Errors)
		}
		return transport.SessionResponse{}, apperr.Validation("import has no rows to submit")
	}

	lockKey := repository.SubmitLockKey(session.ProjectID, session.FeatureTypeID)
	token, ok, err := s.locks.Acquire(ctx, lockKey, s.settings.LockTTL)
	if err != nil {
		return transport.SessionResponse{}, err
	}
	if !ok {
		return transport.SessionResponse{}, apperr.Conflict("another import for this project and feature type is being submitted")
	}

	if s.enqueuer != nil && s.settings.AsyncThreshold > 0 && session.RowCount > s.settings.AsyncThreshold {
		return s.enqueue(ctx, session, lockKey, token)
	}

	if err := s.process(ctx, session, lockKey, token, "inline"); err != nil {
		return transport.SessionResponse{}, err
	}
	return toResponse(session), nil
}

// ProcessQueued runs a submission previously queued by Submit.
func (s *Service) ProcessQueued(ctx context.Context, sessionID, lockToken string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != repository.StatusQueued {
		s.log.Warn("skipping import not in queued state", "sessionId", sessionID, "status", session.Status)
		return nil
	}
	lockKey := repository.SubmitLockKey(session.ProjectID, session.FeatureTypeID)
	return s.process(ctx, session, lockKey, lockToken, "async")
}

func (s *Service) enqueue(ctx context.Context, session *repository.Session, lockKey, token string) (transport.SessionResponse, error) {
	session.Status = repository.StatusQueued
	session.Failure = ""
	if err := s.save(ctx, session); err != nil {
		s.releaseLock(lockKey, token)
		return transport.SessionResponse{}, err
	}

	if err := s.enqueuer.EnqueueImportSubmit(ctx, session.ID, token); err != nil {
		s.releaseLock(lockKey, token)
		session.Status = repository.StatusFailed
		session.Failure = "could not queue import for submission"
		_ = s.save(ctx, session)
		metrics.ImportSubmissionsTotal.WithLabelValues("async", "enqueue_failed").Inc()
		return transport.SessionResponse{}, fmt.Errorf("enqueue import submit: %w", err)
	}

	s.log.ImportEvent("queued", session.ID, session.RowCount, 0)
	return toResponse(session), nil
}

func (s *Service) process(ctx context.Context, session *repository.Session, lockKey, token, mode string) error {
	defer s.releaseLock(lockKey, token)

	session.Status = repository.StatusSubmitting
	session.Failure = ""
	if err := s.save(ctx, session); err != nil {
		return err
	}

	outcome, err := s.gate.Submit(ctx, session.GateState(), session.ProjectID, session.FeatureTypeID, session.CreatorID)
	if err != nil {
		session.Status = repository.StatusFailed
		session.Failure = failureMessage(err)
		if saveErr := s.save(ctx, session); saveErr != nil {
			s.log.Error("failed to record import failure", "sessionId", session.ID, "error", saveErr)
		}
		metrics.ImportSubmissionsTotal.WithLabelValues(mode, "failed").Inc()
		s.log.ImportEvent("failed", session.ID, session.RowCount, 1)
		return err
	}

	session.Status = repository.StatusCommitted
	session.Outcome = &outcome
	session.Rows = []ingest.ImportRow{}
	if err := s.save(ctx, session); err != nil {
		s.log.Error("failed to record committed import", "sessionId", session.ID, "error", err)
	}

	metrics.ImportSubmissionsTotal.WithLabelValues(mode, "committed").Inc()
	metrics.ImportRowsCommittedTotal.Add(float64(outcome.Inserted))
	s.log.ImportEvent("committed", session.ID, outcome.Inserted, 0)

	if s.bus != nil {
		s.bus.Publish(ctx, events.ImportBatchCommitted{
			BaseEvent:     events.NewBaseEvent(),
			SessionID:     session.ID,
			ProjectID:     session.ProjectID,
			FeatureTypeID: session.FeatureTypeID,
			Inserted:      outcome.Inserted,
		})
	}
	return nil
}

// Template returns the CSV template of a feature type and a suggested file name.
func (s *Service) Template(ctx context.Context, featureTypeID uuid.UUID) ([]byte, string, error) {
	ft, err := s.schemas.FeatureType(ctx, featureTypeID)
	if err != nil {
		return nil, "", err
	}
	schema, err := s.schemas.Resolve(ctx, featureTypeID)
	if err != nil {
		return nil, "", err
	}
	data, err := ingest.Template(schema)
	if err != nil {
		return nil, "", fmt.Errorf("render import template: %w", err)
	}
	name := strings.ToLower(strings.TrimSpace(ft.Code))
	if name == "" {
		name = "features"
	}
	return data, name + "_template.csv", nil
}

func (s *Service) ownedSession(ctx context.Context, callerID uuid.UUID, sessionID string) (*repository.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CreatorID != callerID {
		return nil, apperr.Forbidden("import session belongs to another user")
	}
	return session, nil
}

func (s *Service) save(ctx context.Context, session *repository.Session) error {
	session.UpdatedAt = s.now()
	ttl := session.ExpiresAt.Sub(session.UpdatedAt)
	if ttl <= 0 {
		ttl = s.settings.SessionTTL
		session.ExpiresAt = session.UpdatedAt.Add(ttl)
	}
	return s.sessions.Save(ctx, session, ttl)
}

func (s *Service) releaseLock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locks.Release(ctx, key, token); err != nil {
		s.log.Error("failed to release import lock", "key", key, "error", err)
	}
}

// failureMessage is what the user sees for a failed submission. Domain errors
// keep their message verbatim; anything else is reported generically.
func failureMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "import could not be written"
}

func toResponse(session *repository.Session) transport.SessionResponse {
	preview := session.Rows
	if len(preview) > transport.PreviewLimit {
		preview = preview[:transport.PreviewLimit]
	}
	if preview == nil {
		preview = []ingest.ImportRow{}
	}
	errs := session.Errors
	if errs == nil {
		errs = []ingest.ValidationError{}
	}
	return transport.SessionResponse{
		ID:            session.ID,
		ProjectID:     session.ProjectID,
		FeatureTypeID: session.FeatureTypeID,
		FileName:      session.FileName,
		Status:        string(session.Status),
		Errors:        errs,
		RowCount:      session.RowCount,
		CanSubmit:     ingest.CanSubmit(session.GateState()) && (session.Status == repository.StatusValidated || session.Status == repository.StatusFailed),
		Preview:       preview,
		Outcome:       session.Outcome,
		Failure:       session.Failure,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
		ExpiresAt:     session.ExpiresAt,
	}
}
