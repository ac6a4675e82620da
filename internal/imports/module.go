// Package imports provides the batch import bounded context module.
// Uploaded spreadsheets are validated into Redis-held sessions and committed
// as one atomic batch, inline or through the background worker.
package imports

import (
	"context"

	"field_inventory_backend/internal/events"
	apphttp "field_inventory_backend/internal/http"
	"field_inventory_backend/internal/imports/handler"
	"field_inventory_backend/internal/imports/repository"
	"field_inventory_backend/internal/imports/service"
	"field_inventory_backend/platform/config"
	"field_inventory_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the imports bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the imports module with all its dependencies.
// enqueuer may be nil when no worker is configured.
func NewModule(
	pool *pgxpool.Pool,
	rdb redis.UniversalClient,
	schemas service.SchemaResolver,
	enqueuer service.SubmitEnqueuer,
	bus events.Bus,
	cfg config.ImportConfig,
	log *logger.Logger,
) *Module {
	store := repository.NewRedisStore(rdb)
	svc := service.New(schemas, store, store, repository.New(pool), enqueuer, bus, service.Settings{
		AsyncThreshold: cfg.GetImportAsyncThreshold(),
		SessionTTL:     cfg.GetImportSessionTTL(),
		LockTTL:        cfg.GetImportSubmitLockTTL(),
	}, log)

	return &Module{
		handler: handler.New(svc, cfg.GetImportMaxUploadBytes()),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "imports"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// ProcessQueuedImport lets the background worker run a queued submission.
func (m *Module) ProcessQueuedImport(ctx context.Context, sessionID, lockToken string) error {
	return m.service.ProcessQueued(ctx, sessionID, lockToken)
}

// RegisterRoutes mounts import routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/projects/:projectId/feature-types/:typeId/imports", m.handler.Upload)
	ctx.Protected.GET("/feature-types/:typeId/import-template", m.handler.Template)
	ctx.Protected.GET("/imports/:sessionId", m.handler.Get)
	ctx.Protected.POST("/imports/:sessionId/submit", m.handler.Submit)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
