package routes

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/middleware"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
	"github.com/bbus-fleet/backend/pkg/response"
)

// Handler handles route HTTP endpoints under /api/routes.
type Handler struct {
	repo   *Repository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewHandler creates a routes handler.
func NewHandler(repo *Repository, rec audit.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, audit: rec, logger: logger}
}

// RouteRequest is the body for POST and PATCH. Absent fields are left unchanged on PATCH.
type RouteRequest struct {
	Code           *string           `json:"routeId"`
	Name           *string           `json:"routeName"`
	Description    *string           `json:"routeDescription"`
	Mode           *models.RouteMode `json:"routeMode"`
	OrganizationID *uuid.UUID        `json:"organizationId"`
}

func (req RouteRequest) apply(rt *models.Route) error {
	if req.Code != nil {
		rt.Code = strings.TrimSpace(*req.Code)
	}
	if req.Name != nil {
		rt.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		rt.Description = strings.TrimSpace(*req.Description)
	}
	if req.Mode != nil {
		rt.Mode = *req.Mode
	}
	if req.OrganizationID != nil {
		rt.OrganizationID = *req.OrganizationID
	}
	switch {
	case rt.Code == "":
		return apperr.New(apperr.KindValidation, "routeId is required")
	case rt.Name == "":
		return apperr.New(apperr.KindValidation, "routeName is required")
	case !rt.Mode.Valid():
		return apperr.New(apperr.KindValidation, "routeMode must be REGISTRATION or AUTHORIZATION")
	case rt.OrganizationID == uuid.Nil:
		return apperr.New(apperr.KindValidation, "organizationId is required")
	}
	return nil
}

// List handles GET /api/routes?organizationId=&routeId=.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	if s := c.Query("organizationId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid organizationId")
			return
		}
		f.OrganizationID = id
	}
	f.Code = strings.TrimSpace(c.Query("routeId"))
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to load routes")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/routes/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rt, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, rt)
}

// Create handles POST /api/routes.
func (h *Handler) Create(c *gin.Context) {
	var body RouteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rt := &models.Route{}
	if err := body.apply(rt); err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), rt); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			response.Conflict(c, "A route with this routeId already exists for the client")
			return
		}
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditCreate, "Created route "+rt.Code)
	response.Created(c, rt)
}

// Update handles PATCH /api/routes/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body RouteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rt, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := body.apply(rt); err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.repo.Update(c.Request.Context(), rt); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditUpdate, "Updated route "+rt.Code)
	response.OK(c, rt)
}

// Delete handles DELETE /api/routes/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditDelete, "Deleted route "+id.String())
	response.NoContent(c)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid route id")
		return uuid.Nil, false
	}
	return id, true
}
