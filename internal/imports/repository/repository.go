package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"field_inventory_backend/internal/imports/ingest"
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

var featureColumns = []string{
	"id", "project_id", "feature_type_id", "technical_id",
	"latitude", "longitude", "estado", "attributes", "created_by",
}

// Repo writes imported batches to PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new imports repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// WriteBatch inserts every row in one transaction. Technical identifiers are
// reserved from the feature type's counter inside the same transaction, so a
// failed batch consumes none of them.
func (r *Repo) WriteBatch(ctx context.Context, req ingest.BatchRequest) (ingest.BatchOutcome, error) {
	if len(req.Rows) == 0 {
		return ingest.BatchOutcome{}, apperr.Validation("batch has no rows")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ingest.BatchOutcome{}, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var assigned bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_feature_types
			WHERE project_id = $1 AND feature_type_id = $2
		)`, req.ProjectID, req.FeatureTypeID).Scan(&assigned)
	if err != nil {
		return ingest.BatchOutcome{}, fmt.Errorf("check feature type assignment: %w", err)
	}
	if !assigned {
		return ingest.BatchOutcome{}, apperr.Validation("feature type is not assigned to this project")
	}

	code, first, err := reserveSequence(ctx, tx, req.FeatureTypeID, len(req.Rows))
	if err != nil {
		return ingest.BatchOutcome{}, err
	}

	source := make([][]any, 0, len(req.Rows))
	techIDs := make([]string, 0, len(req.Rows))
	for i, row := range req.Rows {
		attrs, err := json.Marshal(row.Attributes)
		if err != nil {
			return ingest.BatchOutcome{}, fmt.Errorf("marshal attributes for line %d: %w", row.Line, err)
		}
		techID := domain.FormatTechnicalID(code, first+int64(i))
		techIDs = append(techIDs, techID)
		source = append(source, []any{
			uuid.New(), req.ProjectID, req.FeatureTypeID, techID,
			row.Latitude, row.Longitude, row.Estado, attrs, req.CreatorID,
		})
	}

	inserted, err := tx.CopyFrom(ctx, pgx.Identifier{"features"}, featureColumns, pgx.CopyFromRows(source))
	if err != nil {
		return ingest.BatchOutcome{}, mapWriteError("copy features", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ingest.BatchOutcome{}, mapWriteError("commit batch", err)
	}

	return ingest.BatchOutcome{
		Inserted:         int(inserted),
		FirstTechnicalID: techIDs[0],
		LastTechnicalID:  techIDs[len(techIDs)-1],
	}, nil
}

// reserveSequence advances the feature type counter by n and returns the first reserved value.
func reserveSequence(ctx context.Context, tx pgx.Tx, featureTypeID uuid.UUID, n int) (string, int64, error) {
	var code string
	var last int64
	err := tx.QueryRow(ctx, `
		UPDATE feature_types
		SET next_sequence = next_sequence + $2
		WHERE id = $1
		RETURNING code, next_sequence`, featureTypeID, n).Scan(&code, &last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, apperr.NotFound("feature type not found")
		}
		return "", 0, fmt.Errorf("reserve technical ids: %w", err)
	}
	return code, last - int64(n) + 1, nil
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
