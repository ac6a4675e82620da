package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"field_inventory_backend/internal/imports/service"
	"field_inventory_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for batch imports.
type Handler struct {
	svc            *service.Service
	maxUploadBytes int64
}

const (
	msgInvalidProjectID = "invalid project ID"
	msgInvalidTypeID    = "invalid feature type ID"
	msgMissingFile      = "file is required"
	msgUnsupportedFile  = "only .csv files can be imported"
)

// New creates a new imports handler.
func New(svc *service.Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Upload validates an uploaded CSV and opens an import session.
// POST /api/v1/projects/:projectId/feature-types/:typeId/imports
func (h *Handler) Upload(c *gin.Context) {
	projectID, ok := httpkit.UUIDParam(c, "projectId", msgInvalidProjectID)
	if !ok {
		return
	}
	typeID, ok := httpkit.UUIDParam(c, "typeId", msgInvalidTypeID)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpkit.Error(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, msgMissingFile, nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		httpkit.Error(c, http.StatusBadRequest, msgUnsupportedFile, nil)
		return
	}
	if fh.Size > h.maxUploadBytes {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgMissingFile, nil)
		return
	}
	defer f.Close()

	contents, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "could not read file", nil)
		return
	}
	if int64(len(contents)) > h.maxUploadBytes {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), nil)
		return
	}

	result, err := h.svc.Upload(c.Request.Context(), identity.UserID(), projectID, typeID, fh.Filename, contents)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Get returns an import session.
// GET /api/v1/imports/:sessionId
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), identity.UserID(), c.Param("sessionId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Submit writes or queues an import session's rows.
// POST /api/v1/imports/:sessionId/submit
func (h *Handler) Submit(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Submit(c.Request.Context(), identity.UserID(), c.Param("sessionId"))
	if httpkit.HandleError(c, err) {
		return
	}
	status := http.StatusOK
	if result.Status == "queued" {
		status = http.StatusAccepted
	}
	httpkit.JSON(c, status, result)
}

// Template downloads the CSV template of a feature type.
// GET /api/v1/feature-types/:typeId/import-template
func (h *Handler) Template(c *gin.Context) {
	typeID, ok := httpkit.UUIDParam(c, "typeId", msgInvalidTypeID)
	if !ok {
		return
	}
	if httpkit.MustGetIdentity(c) == nil {
		return
	}

	data, name, err := h.svc.Template(c.Request.Context(), typeID)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadBytes)
}
