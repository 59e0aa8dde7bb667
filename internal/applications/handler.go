package applications

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/middleware"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/response"
)

// Handler handles application HTTP endpoints under /api/applications.
type Handler struct {
	repo   *Repository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewHandler creates an applications handler.
func NewHandler(repo *Repository, rec audit.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, audit: rec, logger: logger}
}

// ApplicationRequest is the body for POST and PATCH.
type ApplicationRequest struct {
	DeviceID    *string `json:"deviceId"`
	Description *string `json:"appDescription"`
}

// List handles GET /api/applications?userId=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), strings.TrimSpace(c.Query("userId")))
	if err != nil {
		response.Internal(c, "failed to load applications")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/applications/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	app, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, app)
}

// Create handles POST /api/applications. The application is owned by the session user.
func (h *Handler) Create(c *gin.Context) {
	var body ApplicationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	app := &models.Application{UserID: middleware.UserID(c)}
	if body.DeviceID != nil {
		app.DeviceID = strings.TrimSpace(*body.DeviceID)
	}
	if body.Description != nil {
		app.Description = strings.TrimSpace(*body.Description)
	}
	if err := h.repo.Create(c.Request.Context(), app); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, app.UserID, models.AuditCreate, "Registered application "+app.ID.String())
	response.Created(c, app)
}

// Update handles PATCH /api/applications/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body ApplicationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	app, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if body.DeviceID != nil {
		app.DeviceID = strings.TrimSpace(*body.DeviceID)
	}
	if body.Description != nil {
		app.Description = strings.TrimSpace(*body.Description)
	}
	if err := h.repo.Update(c.Request.Context(), app); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditUpdate, "Updated application "+app.ID.String())
	response.OK(c, app)
}

// Delete handles DELETE /api/applications/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditDelete, "Deleted application "+id.String())
	response.NoContent(c)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid application id")
		return uuid.Nil, false
	}
	return id, true
}
