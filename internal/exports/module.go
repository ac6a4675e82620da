// Package exports provides CSV downloads of stored features in the same
// layout the batch import accepts.
package exports

import (
	apphttp "field_inventory_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the exports bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the exports module.
func NewModule(pool *pgxpool.Pool, schemas SchemaResolver) *Module {
	return &Module{
		handler: NewHandler(NewRepository(pool), schemas),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// RegisterRoutes mounts export routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/projects/:projectId/feature-types/:typeId/export.csv", m.handler.ExportFeaturesCSV)
}

var _ apphttp.Module = (*Module)(nil)
