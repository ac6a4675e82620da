package exports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FeatureRow is one stored feature in export order.
type FeatureRow struct {
	TechnicalID string
	Latitude    float64
	Longitude   float64
	Estado      string
	Attributes  map[string]any
}

// Filter narrows an export.
type Filter struct {
	ProjectID     uuid.UUID
	FeatureTypeID uuid.UUID
	Estado        string
	Limit         int
}

// Repository provides data access for export operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFeatures returns the features of one type in one project, oldest first.
func (r *Repository) ListFeatures(ctx context.Context, f Filter) ([]FeatureRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT technical_id, latitude, longitude, estado, attributes
		FROM features
		WHERE project_id = $1
		  AND feature_type_id = $2
		  AND ($3 = '' OR estado = $3)
		ORDER BY created_at, technical_id
		LIMIT $4`,
		f.ProjectID, f.FeatureTypeID, f.Estado, f.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list features for export: %w", err)
	}
	defer rows.Close()

	out := make([]FeatureRow, 0)
	for rows.Next() {
		var row FeatureRow
		var raw []byte
		if err := rows.Scan(&row.TechnicalID, &row.Latitude, &row.Longitude, &row.Estado, &raw); err != nil {
			return nil, fmt.Errorf("scan feature for export: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &row.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes of %s: %w", row.TechnicalID, err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list features for export: %w", err)
	}
	return out, nil
}
