package repository

import (
	"context"
	"errors"
	"fmt"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const featureTypeNotFoundMessage = "feature type not found"

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new schema repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// FetchSchema retrieves the attribute definitions of a feature type.
func (r *Repo) FetchSchema(ctx context.Context, featureTypeID uuid.UUID) ([]domain.AttributeDefinition, error) {
	query := `
		SELECT field, kind, required, options, sort_order
		FROM attribute_definitions
		WHERE feature_type_id = $1
		ORDER BY sort_order ASC, lower(field) ASC`

	rows, err := r.pool.Query(ctx, query, featureTypeID)
	if err != nil {
		return nil, fmt.Errorf("fetch schema: %w", err)
	}
	defer rows.Close()

	defs := make([]domain.AttributeDefinition, 0)
	for rows.Next() {
		var def domain.AttributeDefinition
		var kind string
		if err := rows.Scan(&def.Field, &kind, &def.Required, &def.Options, &def.Order); err != nil {
			return nil, fmt.Errorf("scan attribute definition: %w", err)
		}
		def.Kind = domain.Kind(kind)
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attribute definitions: %w", err)
	}

	return defs, nil
}

// FetchAssignedFeatureTypes lists the feature types enabled for a project.
func (r *Repo) FetchAssignedFeatureTypes(ctx context.Context, projectID uuid.UUID) ([]domain.FeatureType, error) {
	query := `
		SELECT ft.id, ft.name, ft.code
		FROM project_feature_types pft
		JOIN feature_types ft ON ft.id = pft.feature_type_id
		WHERE pft.project_id = $1
		ORDER BY ft.name ASC`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch assigned feature types: %w", err)
	}
	defer rows.Close()

	types := make([]domain.FeatureType, 0)
	for rows.Next() {
		var ft domain.FeatureType
		if err := rows.Scan(&ft.ID, &ft.Name, &ft.Code); err != nil {
			return nil, fmt.Errorf("scan feature type: %w", err)
		}
		types = append(types, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature types: %w", err)
	}

	return types, nil
}

// GetFeatureType retrieves one feature type by ID.
func (r *Repo) GetFeatureType(ctx context.Context, featureTypeID uuid.UUID) (domain.FeatureType, error) {
	query := `SELECT id, name, code FROM feature_types WHERE id = $1`

	var ft domain.FeatureType
	err := r.pool.QueryRow(ctx, query, featureTypeID).Scan(&ft.ID, &ft.Name, &ft.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FeatureType{}, apperr.NotFound(featureTypeNotFoundMessage)
		}
		return domain.FeatureType{}, fmt.Errorf("get feature type: %w", err)
	}
	return ft, nil
}
