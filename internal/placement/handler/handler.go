package handler

import (
	"errors"
	"net/http"

	"field_inventory_backend/internal/forms"
	"field_inventory_backend/internal/placement/session"
	"field_inventory_backend/internal/placement/transport"
	"field_inventory_backend/platform/apperr"
	"field_inventory_backend/platform/httpkit"
	"field_inventory_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler drives map placement sessions over HTTP.
type Handler struct {
	sessions *session.Manager
	val      *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidFeatureID = "invalid feature ID"
	msgNoSession        = "no open map session"
)

// New creates a new placement handler.
func New(sessions *session.Manager, val *validator.Validator) *Handler {
	return &Handler{sessions: sessions, val: val}
}

// Open starts or resumes the caller's session on a project map.
// POST /api/v1/map/session
func (h *Handler) Open(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.OpenSessionRequest
	if !h.bind(c, &req) {
		return
	}
	m := h.sessions.Open(identity.UserID(), req.ProjectID)
	httpkit.OK(c, transport.SessionResponse{View: m.View()})
}

// Get returns the caller's session.
// GET /api/v1/map/session
func (h *Handler) Get(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	httpkit.OK(c, transport.SessionResponse{View: m.View()})
}

// Unmount closes and discards the caller's session.
// DELETE /api/v1/map/session
func (h *Handler) Unmount(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	h.sessions.Unmount(identity.UserID())
	c.Status(http.StatusNoContent)
}

// Add opens the feature type panel.
// POST /api/v1/map/session/add
func (h *Handler) Add(c *gin.Context) {
	h.run(c, func(m *session.Machine) error { return m.Add(c.Request.Context()) })
}

// SelectType places the marker for a feature type.
// POST /api/v1/map/session/type
func (h *Handler) SelectType(c *gin.Context) {
	var req transport.SelectTypeRequest
	if !h.bind(c, &req) {
		return
	}
	h.run(c, func(m *session.Machine) error {
		return m.SelectType(req.FeatureTypeID, req.Center.ToPosition())
	})
}

// MoveMarker records a marker drag.
// PUT /api/v1/map/session/marker
func (h *Handler) MoveMarker(c *gin.Context) {
	var req transport.PositionRequest
	if !h.bind(c, &req) {
		return
	}
	h.run(c, func(m *session.Machine) error { return m.MoveMarker(req.ToPosition()) })
}

// Confirm accepts the marker position and opens the form.
// POST /api/v1/map/session/confirm
func (h *Handler) Confirm(c *gin.Context) {
	h.run(c, func(m *session.Machine) error { return m.Confirm(c.Request.Context()) })
}

// Cancel backs out of the current step.
// POST /api/v1/map/session/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.run(c, func(m *session.Machine) error { return m.Cancel() })
}

// Close returns the session to idle.
// POST /api/v1/map/session/close
func (h *Handler) Close(c *gin.Context) {
	h.run(c, func(m *session.Machine) error {
		m.Close()
		return nil
	})
}

// OpenFeature opens a clicked map point.
// POST /api/v1/map/session/features/:featureId/open
func (h *Handler) OpenFeature(c *gin.Context) {
	id, ok := httpkit.UUIDParam(c, "featureId", msgInvalidFeatureID)
	if !ok {
		return
	}
	h.run(c, func(m *session.Machine) error { return m.Open(c.Request.Context(), id) })
}

// Edit unlocks the open form.
// POST /api/v1/map/session/edit
func (h *Handler) Edit(c *gin.Context) {
	h.run(c, func(m *session.Machine) error { return m.Edit() })
}

// Change sets one attribute.
// PATCH /api/v1/map/session/attributes
func (h *Handler) Change(c *gin.Context) {
	var req transport.ChangeFieldRequest
	if !h.bind(c, &req) {
		return
	}
	h.run(c, func(m *session.Machine) error { return m.Change(req.Field, req.Value) })
}

// Save submits the open form.
// POST /api/v1/map/session/save
func (h *Handler) Save(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	out, err := m.Save(c.Request.Context())
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{View: m.View(), Outcome: transport.ToOutcome(out)})
}

// Delete removes the open feature.
// POST /api/v1/map/session/delete
func (h *Handler) Delete(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	out, err := m.Delete(c.Request.Context())
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{View: m.View(), Outcome: transport.ToOutcome(out)})
}

func (h *Handler) run(c *gin.Context, action func(m *session.Machine) error) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, mapError(action(m))) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{View: m.View()})
}

func (h *Handler) machine(c *gin.Context) (*session.Machine, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil, false
	}
	m, ok := h.sessions.Get(identity.UserID())
	if !ok {
		httpkit.Error(c, http.StatusNotFound, msgNoSession, nil)
		return nil, false
	}
	return m, true
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

// mapError turns session errors into application errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var formErr *session.FormError
	switch {
	case errors.As(err, &formErr):
		return apperr.Unprocessable("attribute validation failed").WithDetails(formErr.Fields)
	case errors.Is(err, session.ErrInvalidAction),
		errors.Is(err, session.ErrSavePending),
		errors.Is(err, session.ErrSuperseded):
		return apperr.Conflict(err.Error())
	case errors.Is(err, session.ErrUnknownType),
		errors.Is(err, session.ErrOtherProject),
		errors.Is(err, forms.ErrUnknownField),
		errors.Is(err, forms.ErrInvalidValue):
		return apperr.Validation(err.Error())
	}
	return err
}
