package buses

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

// Handler handles bus HTTP endpoints under /api/buses.
type Handler struct {
	repo   *Repository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewHandler creates a buses handler.
func NewHandler(repo *Repository, rec audit.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, audit: rec, logger: logger}
}

// CreateBusRequest is the body for POST /api/buses.
type CreateBusRequest struct {
	PlateNumber    string    `json:"busPlateNumber" binding:"required"`
	Description    string    `json:"busDescription"`
	OrganizationID uuid.UUID `json:"organizationId" binding:"required"`
	RouteID        uuid.UUID `json:"routeId" binding:"required"`
}

// UpdateBusRequest is the body for PATCH /api/buses/:id. The route assignment is owned by order
// reconciliation, so routeId and organizationId are rejected here.
type UpdateBusRequest struct {
	PlateNumber    *string    `json:"busPlateNumber"`
	Description    *string    `json:"busDescription"`
	OrganizationID *uuid.UUID `json:"organizationId"`
	RouteID        *uuid.UUID `json:"routeId"`
}

// List handles GET /api/buses?organizationId=&routeId=&plate=.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	for param, dst := range map[string]*uuid.UUID{"organizationId": &f.OrganizationID, "routeId": &f.RouteID} {
		if s := c.Query(param); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				response.BadRequest(c, "invalid "+param)
				return
			}
			*dst = id
		}
	}
	f.Plate = c.Query("plate")
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to load buses")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/buses/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, b)
}

// Create handles POST /api/buses.
func (h *Handler) Create(c *gin.Context) {
	var body CreateBusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "busPlateNumber, organizationId and routeId required")
		return
	}
	b := &models.Bus{
		PlateNumber:    strings.TrimSpace(body.PlateNumber),
		Description:    strings.TrimSpace(body.Description),
		OrganizationID: body.OrganizationID,
		RouteID:        body.RouteID,
	}
	if b.PlateNumber == "" {
		response.BadRequest(c, "busPlateNumber is required")
		return
	}
	if err := h.repo.Create(c.Request.Context(), b); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditCreate, "Created bus "+b.PlateNumber)
	response.Created(c, b)
}

// Update handles PATCH /api/buses/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body UpdateBusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if body.RouteID != nil || body.OrganizationID != nil {
		response.Fail(c, apperr.New(apperr.KindValidation, "routeId and organizationId are assigned by orders and cannot be edited"))
		return
	}
	b, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if body.PlateNumber != nil {
		b.PlateNumber = strings.TrimSpace(*body.PlateNumber)
	}
	if body.Description != nil {
		b.Description = strings.TrimSpace(*body.Description)
	}
	if b.PlateNumber == "" {
		response.BadRequest(c, "busPlateNumber is required")
		return
	}
	if err := h.repo.UpdateDetails(c.Request.Context(), b); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditUpdate, "Updated bus "+b.PlateNumber)
	response.OK(c, b)
}

// Delete handles DELETE /api/buses/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditDelete, "Deleted bus "+id.String())
	response.NoContent(c)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid bus id")
		return uuid.Nil, false
	}
	return id, true
}
