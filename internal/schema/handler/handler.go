package handler

import (
	"field_inventory_backend/internal/schema/service"
	"field_inventory_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for feature type schemas.
type Handler struct {
	svc *service.Service
}

const (
	msgInvalidTypeID    = "invalid feature type ID"
	msgInvalidProjectID = "invalid project ID"
)

// New creates a new schema handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// GetSchema returns the ordered attribute schema of a feature type.
// GET /api/v1/feature-types/:typeId/schema
func (h *Handler) GetSchema(c *gin.Context) {
	typeID, ok := httpkit.UUIDParam(c, "typeId", msgInvalidTypeID)
	if !ok {
		return
	}
	if httpkit.MustGetIdentity(c) == nil {
		return
	}

	result, err := h.svc.GetSchema(c.Request.Context(), typeID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListAssigned returns the feature types assigned to a project.
// GET /api/v1/projects/:projectId/feature-types
func (h *Handler) ListAssigned(c *gin.Context) {
	projectID, ok := httpkit.UUIDParam(c, "projectId", msgInvalidProjectID)
	if !ok {
		return
	}
	if httpkit.MustGetIdentity(c) == nil {
		return
	}

	result, err := h.svc.ListAssigned(c.Request.Context(), projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
