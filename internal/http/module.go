// Package http holds what the router and the inventory modules (schema,
// imports, features, exports, placement) share to mount their endpoints.
package http

import (
	"field_inventory_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module is one inventory area with its own routes. The router calls
// RegisterRoutes once per module at startup, in the order the modules are
// listed in App.
type Module interface {
	// Name appears in the startup log line for the module.
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what a module may mount routes on.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is the unauthenticated /api/v1 group. No module mounts on it today.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind AuthMiddleware; feature edits and map
	// sessions read the caller's user id from it.
	Protected *gin.RouterGroup
	Config    config.JWTConfig
	// AuthMiddleware validates the bearer token for groups a module builds itself.
	AuthMiddleware gin.HandlerFunc
}
