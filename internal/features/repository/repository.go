package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const featureNotFoundMsg = "feature not found"

const featureSelect = `
	SELECT id, project_id, feature_type_id, technical_id, latitude, longitude,
		estado, attributes, created_by, created_at, updated_at
	FROM features`

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new features repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository
var _ Repository = (*Repo)(nil)

func scanFeature(row pgx.Row) (Feature, error) {
	var f Feature
	var attrs []byte
	err := row.Scan(&f.ID, &f.ProjectID, &f.FeatureTypeID, &f.TechnicalID, &f.Latitude, &f.Longitude,
		&f.Estado, &attrs, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return Feature{}, err
	}
	f.Attributes = map[string]any{}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &f.Attributes); err != nil {
			return Feature{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return f, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Feature, error) {
	f, err := scanFeature(r.pool.QueryRow(ctx, featureSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, apperr.NotFound(featureNotFoundMsg)
	}
	if err != nil {
		return Feature{}, fmt.Errorf("get feature: %w", err)
	}
	return f, nil
}

// Create inserts a feature, taking its technical id from the feature type
// counter in the same transaction.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Feature, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Feature{}, fmt.Errorf("begin create feature: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var assigned bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_feature_types
			WHERE project_id = $1 AND feature_type_id = $2
		)`, params.ProjectID, params.FeatureTypeID).Scan(&assigned)
	if err != nil {
		return Feature{}, fmt.Errorf("check feature type assignment: %w", err)
	}
	if !assigned {
		return Feature{}, apperr.Validation("feature type is not assigned to this project")
	}

	var code string
	var seq int64
	err = tx.QueryRow(ctx, `
		UPDATE feature_types
		SET next_sequence = next_sequence + 1
		WHERE id = $1
		RETURNING code, next_sequence`, params.FeatureTypeID).Scan(&code, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, apperr.NotFound("feature type not found")
	}
	if err != nil {
		return Feature{}, fmt.Errorf("reserve technical id: %w", err)
	}
	technicalID := domain.FormatTechnicalID(code, seq)

	attrs, err := json.Marshal(withTechnicalID(params.Attributes, params.TechnicalIDKey, technicalID))
	if err != nil {
		return Feature{}, fmt.Errorf("marshal attributes: %w", err)
	}

	f, err := scanFeature(tx.QueryRow(ctx, `
		INSERT INTO features (id, project_id, feature_type_id, technical_id, latitude, longitude, estado, attributes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, project_id, feature_type_id, technical_id, latitude, longitude,
			estado, attributes, created_by, created_at, updated_at`,
		uuid.New(), params.ProjectID, params.FeatureTypeID, technicalID,
		params.Latitude, params.Longitude, params.Estado, attrs, params.CreatedBy))
	if err != nil {
		return Feature{}, mapWriteError("insert feature", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Feature{}, mapWriteError("commit feature", err)
	}
	return f, nil
}

func (r *Repo) Update(ctx context.Context, params UpdateParams) (Feature, error) {
	attrs, err := json.Marshal(params.Attributes)
	if err != nil {
		return Feature{}, fmt.Errorf("marshal attributes: %w", err)
	}

	f, err := scanFeature(r.pool.QueryRow(ctx, `
		UPDATE features
		SET latitude = $2, longitude = $3, estado = $4, attributes = $5, updated_at = now()
		WHERE id = $1
		RETURNING id, project_id, feature_type_id, technical_id, latitude, longitude,
			estado, attributes, created_by, created_at, updated_at`,
		params.ID, params.Latitude, params.Longitude, params.Estado, attrs))
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, apperr.NotFound(featureNotFoundMsg)
	}
	if err != nil {
		return Feature{}, mapWriteError("update feature", err)
	}
	return f, nil
}

// Delete removes a feature; its photo rows go with it.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM features WHERE id = $1`, id)
	if err != nil {
		return mapWriteError("delete feature", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(featureNotFoundMsg)
	}
	return nil
}

func (r *Repo) ListPoints(ctx context.Context, projectID uuid.UUID) ([]Point, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, feature_type_id, technical_id, latitude, longitude, estado
		FROM features
		WHERE project_id = $1
		ORDER BY created_at, technical_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	points := make([]Point, 0)
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.FeatureTypeID, &p.TechnicalID, &p.Latitude, &p.Longitude, &p.Estado); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}
	return points, nil
}

func (r *Repo) ListPhotos(ctx context.Context, featureID uuid.UUID) ([]Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, feature_id, object_key, file_name, content_type, size_bytes,
			taken_at, latitude, longitude, created_at
		FROM feature_photos
		WHERE feature_id = $1
		ORDER BY created_at`, featureID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := make([]Photo, 0)
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.FeatureID, &p.ObjectKey, &p.FileName, &p.ContentType, &p.SizeBytes,
			&p.TakenAt, &p.Latitude, &p.Longitude, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

func (r *Repo) CreatePhoto(ctx context.Context, params CreatePhotoParams) (Photo, error) {
	var p Photo
	err := r.pool.QueryRow(ctx, `
		INSERT INTO feature_photos (id, feature_id, object_key, file_name, content_type, size_bytes, taken_at, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, feature_id, object_key, file_name, content_type, size_bytes,
			taken_at, latitude, longitude, created_at`,
		uuid.New(), params.FeatureID, params.ObjectKey, params.FileName, params.ContentType, params.SizeBytes,
		params.TakenAt, params.Latitude, params.Longitude,
	).Scan(&p.ID, &p.FeatureID, &p.ObjectKey, &p.FileName, &p.ContentType, &p.SizeBytes,
		&p.TakenAt, &p.Latitude, &p.Longitude, &p.CreatedAt)
	if err != nil {
		return Photo{}, mapWriteError("insert photo", err)
	}
	return p, nil
}

// withTechnicalID returns attrs with key set to id. attrs is not modified.
func withTechnicalID(attrs map[string]any, key, id string) map[string]any {
	if key == "" {
		return attrs
	}
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out[key] = id
	return out
}

// mapWriteError turns integrity violations into conflicts carrying the
// database message unchanged.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation:
			return apperr.Wrap(apperr.KindConflict, pgErr.Message, err).WithOp(op)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
