// Package organizations serves the dashboard's client (organization) management endpoints.
package organizations

import (
	"context"
	"encoding/json"
	"regexp"
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

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Invalidator drops cached tax-id lookups.
type Invalidator interface {
	Invalidate(ctx context.Context, taxIDs ...string)
}

// Store is the persistence the handler needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, taxID string) ([]models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler handles organization HTTP endpoints under /api/clients.
type Handler struct {
	repo   Store
	cache  Invalidator
	audit  audit.Recorder
	logger *zap.Logger
}

// NewHandler creates an organizations handler. cache and rec may be nil.
func NewHandler(repo Store, cache Invalidator, rec audit.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, cache: cache, audit: rec, logger: logger}
}

// OrganizationRequest is the body for POST and PATCH /api/clients. Absent fields are left unchanged on PATCH.
type OrganizationRequest struct {
	Name     *string         `json:"name"`
	Slug     *string         `json:"slug"`
	Logo     *string         `json:"logo"`
	TaxID    *string         `json:"taxId"`
	Metadata json.RawMessage `json:"metadata"`
}

func (req OrganizationRequest) apply(org *models.Organization) error {
	if req.Name != nil {
		org.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		org.Slug = strings.ToLower(strings.TrimSpace(*req.Slug))
	}
	if req.Logo != nil {
		org.Logo = strings.TrimSpace(*req.Logo)
	}
	if req.TaxID != nil {
		org.TaxID = strings.TrimSpace(*req.TaxID)
	}
	if len(req.Metadata) > 0 && string(req.Metadata) != "null" {
		if !json.Valid(req.Metadata) {
			return apperr.New(apperr.KindValidation, "metadata must be valid JSON")
		}
		org.Metadata = req.Metadata
	}
	if len(org.Name) < 1 || len(org.Name) > 255 {
		return apperr.New(apperr.KindValidation, "name must be 1–255 characters")
	}
	if org.Slug != "" && !slugRegex.MatchString(org.Slug) {
		return apperr.New(apperr.KindValidation, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
	}
	return nil
}

// List handles GET /api/clients?taxId=.
func (h *Handler) List(c *gin.Context) {
	orgs, err := h.repo.List(c.Request.Context(), strings.TrimSpace(c.Query("taxId")))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, orgs)
}

// Get handles GET /api/clients/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, org)
}

// Create handles POST /api/clients.
func (h *Handler) Create(c *gin.Context) {
	var body OrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	org := &models.Organization{}
	if err := body.apply(org); err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), org); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			response.Conflict(c, "A client with this slug already exists")
			return
		}
		response.Fail(c, err)
		return
	}
	h.invalidate(c.Request.Context(), org.TaxID)
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditCreate, "Created client "+org.Name)
	response.Created(c, org)
}

// Update handles PATCH /api/clients/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body OrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	previousTaxID := org.TaxID
	if err := body.apply(org); err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.repo.Update(c.Request.Context(), org); err != nil {
		response.Fail(c, err)
		return
	}
	h.invalidate(c.Request.Context(), previousTaxID, org.TaxID)
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditUpdate, "Updated client "+org.Name)
	response.OK(c, org)
}

// Delete handles DELETE /api/clients/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	h.invalidate(c.Request.Context(), org.TaxID)
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditDelete, "Deleted client "+org.Name)
	response.NoContent(c)
}

func (h *Handler) invalidate(ctx context.Context, taxIDs ...string) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, taxIDs...)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid client id")
		return uuid.Nil, false
	}
	return id, true
}
