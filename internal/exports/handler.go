package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"field_inventory_backend/internal/imports/ingest"
	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/httpkit"
	"field_inventory_backend/platform/textnorm"
	"field_inventory_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultLimit = 5000
	maxLimit     = 100000

	columnTechnicalID = "id_tecnico"
)

// SchemaResolver provides the schema and code of a feature type.
type SchemaResolver interface {
	Resolve(ctx context.Context, featureTypeID uuid.UUID) (domain.Schema, error)
	FeatureType(ctx context.Context, featureTypeID uuid.UUID) (domain.FeatureType, error)
}

// FeatureLister reads stored features for export.
type FeatureLister interface {
	ListFeatures(ctx context.Context, f Filter) ([]FeatureRow, error)
}

// Handler handles feature export requests.
type Handler struct {
	features FeatureLister
	schemas  SchemaResolver
}

// NewHandler creates a new export handler.
func NewHandler(features FeatureLister, schemas SchemaResolver) *Handler {
	return &Handler{features: features, schemas: schemas}
}

// ExportFeaturesCSV writes the features of one type in the import template
// layout, preceded by their technical identifiers. The file can be edited
// and uploaded again; the id_tecnico column is ignored on import.
// GET /api/v1/projects/:projectId/feature-types/:typeId/export.csv
func (h *Handler) ExportFeaturesCSV(c *gin.Context) {
	projectID, ok := httpkit.UUIDParam(c, "projectId", "invalid project ID")
	if !ok {
		return
	}
	typeID, ok := httpkit.UUIDParam(c, "typeId", "invalid feature type ID")
	if !ok {
		return
	}

	estado := textnorm.Fold(c.Query("estado"))
	if estado != "" && !validator.IsFeatureStatus(estado) {
		httpkit.Error(c, http.StatusBadRequest, "invalid estado", nil)
		return
	}

	ctx := c.Request.Context()
	featureType, err := h.schemas.FeatureType(ctx, typeID)
	if httpkit.HandleError(c, err) {
		return
	}
	schema, err := h.schemas.Resolve(ctx, typeID)
	if httpkit.HandleError(c, err) {
		return
	}

	rows, err := h.features.ListFeatures(ctx, Filter{
		ProjectID:     projectID,
		FeatureTypeID: typeID,
		Estado:        estado,
		Limit:         parseLimit(c, defaultLimit, maxLimit),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-features.csv", strings.ToLower(featureType.Code)))

	writer := csv.NewWriter(c.Writer)
	if err := writeFeatures(writer, schema, rows); err != nil {
		_ = c.Error(err)
	}
}

// ---- Helpers ----

func exportColumns(schema domain.Schema) []string {
	return append([]string{columnTechnicalID}, ingest.TemplateColumns(schema)...)
}

func writeFeatures(writer *csv.Writer, schema domain.Schema, rows []FeatureRow) error {
	columns := exportColumns(schema)
	if err := writer.Write(columns); err != nil {
		return err
	}

	// attribute columns follow id_tecnico, latitude, longitude, estado
	defs := make([]domain.AttributeDefinition, 0, len(columns)-4)
	for _, name := range columns[4:] {
		def, _ := schema.Lookup(name)
		defs = append(defs, def)
	}

	for _, row := range rows {
		record := []string{
			row.TechnicalID,
			strconv.FormatFloat(row.Latitude, 'f', -1, 64),
			strconv.FormatFloat(row.Longitude, 'f', -1, 64),
			row.Estado,
		}
		for _, def := range defs {
			record = append(record, cellValue(row.Attributes[def.AttributeKey()]))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// cellValue renders a stored attribute the way the import reads it back.
func cellValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		if typed {
			return "SI"
		}
		return "NO"
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, cellValue(item))
		}
		return strings.Join(parts, ";")
	case []string:
		return strings.Join(typed, ";")
	default:
		return fmt.Sprint(typed)
	}
}

func parseLimit(c *gin.Context, fallback int, max int) int {
	limit := fallback
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if limit > max {
		return max
	}
	if limit < 1 {
		return fallback
	}
	return limit
}
