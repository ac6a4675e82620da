// Package placement provides the map placement module: one server-held
// session per user that drives adding, positioning and editing features.
package placement

import (
	"field_inventory_backend/internal/events"
	apphttp "field_inventory_backend/internal/http"
	"field_inventory_backend/internal/placement/handler"
	"field_inventory_backend/internal/placement/session"
	"field_inventory_backend/platform/config"
	"field_inventory_backend/platform/logger"
	"field_inventory_backend/platform/validator"
)

// Module is the placement module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	sessions *session.Manager
}

// NewModule creates the placement module. Close must be called on shutdown.
func NewModule(catalog session.Catalog, store session.FeatureStore, cfg config.PlacementConfig, val *validator.Validator, log *logger.Logger) *Module {
	sessions := session.NewManager(catalog, store, cfg.GetPlacementIdleTTL(), log)
	return &Module{
		handler:  handler.New(sessions, val),
		sessions: sessions,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "placement"
}

// RegisterHandlers subscribes sessions to feature change events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	m.sessions.RegisterHandlers(bus)
}

// Close unmounts every session and stops the idle sweeper.
func (m *Module) Close() {
	m.sessions.Close()
}

// RegisterRoutes mounts placement routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/map/session")
	g.POST("", m.handler.Open)
	g.GET("", m.handler.Get)
	g.DELETE("", m.handler.Unmount)
	g.POST("/add", m.handler.Add)
	g.POST("/type", m.handler.SelectType)
	g.PUT("/marker", m.handler.MoveMarker)
	g.POST("/confirm", m.handler.Confirm)
	g.POST("/cancel", m.handler.Cancel)
	g.POST("/close", m.handler.Close)
	g.POST("/features/:featureId/open", m.handler.OpenFeature)
	g.POST("/edit", m.handler.Edit)
	g.PATCH("/attributes", m.handler.Change)
	g.POST("/save", m.handler.Save)
	g.POST("/delete", m.handler.Delete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
