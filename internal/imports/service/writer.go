package service

import (
	"context"

	"field_inventory_backend/internal/imports/ingest"
	"field_inventory_backend/platform/apperr"
)

// validatingWriter re-checks every row against the current schema before the
// batch reaches storage. The schema may have changed since the upload was validated.
type validatingWriter struct {
	schemas SchemaResolver
	next    ingest.BatchWriter
}

func (w *validatingWriter) WriteBatch(ctx context.Context, req ingest.BatchRequest) (ingest.BatchOutcome, error) {
	schema, err := w.schemas.Resolve(ctx, req.FeatureTypeID)
	if err != nil {
		return ingest.BatchOutcome{}, err
	}
	if errs := ingest.Revalidate(req.Rows, schema); len(errs) > 0 {
		return ingest.BatchOutcome{}, apperr.Unprocessable("batch rejected by server-side validation").WithDetails(errs)
	}
	return w.next.WriteBatch(ctx, req)
}
