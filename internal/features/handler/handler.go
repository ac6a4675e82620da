package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"field_inventory_backend/internal/features/service"
	"field_inventory_backend/internal/features/transport"
	"field_inventory_backend/platform/httpkit"
	"field_inventory_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for features.
type Handler struct {
	svc           *service.Service
	val           *validator.Validator
	maxPhotoBytes int64
}

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgInvalidFeatureID  = "invalid feature ID"
	msgInvalidProjectID  = "invalid project ID"
	msgMissingPhoto      = "photo is required"
	msgPhotoTooLarge     = "photo exceeds the maximum size"
	photoMultipartBuffer = 1 << 20
)

// New creates a new features handler.
func New(svc *service.Service, val *validator.Validator, maxPhotoBytes int64) *Handler {
	return &Handler{svc: svc, val: val, maxPhotoBytes: maxPhotoBytes}
}

// Get returns a feature with its photos.
// GET /api/v1/features/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := httpkit.UUIDParam(c, "id", msgInvalidFeatureID)
	if !ok {
		return
	}

	resp, err := h.svc.Detail(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Create saves a new feature.
// POST /api/v1/features
func (h *Handler) Create(c *gin.Context) {
	h.save(c, nil)
}

// Update saves an existing feature.
// PUT /api/v1/features/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := httpkit.UUIDParam(c, "id", msgInvalidFeatureID)
	if !ok {
		return
	}
	h.save(c, &id)
}

func (h *Handler) save(c *gin.Context, existingID *uuid.UUID) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.SaveFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	res, err := h.svc.Save(c.Request.Context(), service.SaveInput{
		ExistingID:    existingID,
		ProjectID:     req.ProjectID,
		FeatureTypeID: req.FeatureTypeID,
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		Estado:        req.Estado,
		Attributes:    req.Attributes,
		UserID:        identity.UserID(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.SaveFeatureResponse{ID: res.ID, TechnicalID: res.TechnicalID, Created: res.Created})
}

// Delete removes a feature.
// DELETE /api/v1/features/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := httpkit.UUIDParam(c, "id", msgInvalidFeatureID)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPoints returns the map point layer of a project.
// GET /api/v1/projects/:projectId/points
func (h *Handler) ListPoints(c *gin.Context) {
	projectID, ok := httpkit.UUIDParam(c, "projectId", msgInvalidProjectID)
	if !ok {
		return
	}
	resp, err := h.svc.ListPoints(c.Request.Context(), projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// UploadPhoto stores a photo for a feature.
// POST /api/v1/features/:id/photos
func (h *Handler) UploadPhoto(c *gin.Context) {
	id, ok := httpkit.UUIDParam(c, "id", msgInvalidFeatureID)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPhotoBytes+photoMultipartBuffer)
	fh, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpkit.Error(c, http.StatusRequestEntityTooLarge, msgPhotoTooLarge, nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, msgMissingPhoto, nil)
		return
	}
	if fh.Size > h.maxPhotoBytes {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, msgPhotoTooLarge, nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgMissingPhoto, nil)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxPhotoBytes+1))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgMissingPhoto, nil)
		return
	}

	resp, err := h.svc.UploadPhoto(c.Request.Context(), service.PhotoUpload{
		FeatureID:   id,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

// Label returns a printable QR code of the technical id.
// GET /api/v1/features/:id/label.png
func (h *Handler) Label(c *gin.Context) {
	id, ok := httpkit.UUIDParam(c, "id", msgInvalidFeatureID)
	if !ok {
		return
	}
	png, techID, err := h.svc.Label(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", techID+".png"))
	c.Data(http.StatusOK, "image/png", png)
}
