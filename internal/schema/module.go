// Package schema provides the schema dictionary bounded context module.
// It resolves the organization-defined attribute schema of each feature type.
package schema

import (
	apphttp "field_inventory_backend/internal/http"
	"field_inventory_backend/internal/schema/handler"
	"field_inventory_backend/internal/schema/repository"
	"field_inventory_backend/internal/schema/service"
	"field_inventory_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the schema bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the schema module with all its dependencies.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), log)
	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "schema"
}

// Service returns the service layer for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts schema routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/feature-types/:typeId/schema", m.handler.GetSchema)
	ctx.Protected.GET("/projects/:projectId/feature-types", m.handler.ListAssigned)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
