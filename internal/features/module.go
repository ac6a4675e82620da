// Package features provides the feature bounded context module: detail,
// save, delete, the map point layer, photos and QR labels.
package features

import (
	"field_inventory_backend/internal/adapters/storage"
	"field_inventory_backend/internal/events"
	"field_inventory_backend/internal/features/handler"
	"field_inventory_backend/internal/features/repository"
	"field_inventory_backend/internal/features/service"
	apphttp "field_inventory_backend/internal/http"
	"field_inventory_backend/platform/logger"
	"field_inventory_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the features bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// Settings are the storage settings of the module.
type Settings struct {
	PhotoBucket   string
	MaxPhotoBytes int64
}

// NewModule creates and initializes the features module. photos may be nil,
// in which case photo uploads are rejected.
func NewModule(
	pool *pgxpool.Pool,
	schemas service.SchemaResolver,
	photos storage.StorageService,
	bus events.Bus,
	settings Settings,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	svc := service.New(repository.New(pool), schemas, photos, settings.PhotoBucket, bus, log)
	return &Module{
		handler: handler.New(svc, val, settings.MaxPhotoBytes),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "features"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts feature routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/projects/:projectId/points", m.handler.ListPoints)
	ctx.Protected.POST("/features", m.handler.Create)
	ctx.Protected.GET("/features/:id", m.handler.Get)
	ctx.Protected.PUT("/features/:id", m.handler.Update)
	ctx.Protected.DELETE("/features/:id", m.handler.Delete)
	ctx.Protected.POST("/features/:id/photos", m.handler.UploadPhoto)
	ctx.Protected.GET("/features/:id/label.png", m.handler.Label)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
