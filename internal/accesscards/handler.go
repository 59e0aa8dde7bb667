package accesscards

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

// Handler handles access card HTTP endpoints under /api/access-cards.
type Handler struct {
	repo   *Repository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewHandler creates an access cards handler.
func NewHandler(repo *Repository, rec audit.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, audit: rec, logger: logger}
}

// CardRequest is the body for POST and PATCH. Absent fields are left unchanged on PATCH.
type CardRequest struct {
	CardID         *string            `json:"cardId"`
	NameOnCard     *string            `json:"nameOnCard"`
	CardType       *models.CardType   `json:"cardType"`
	CardStatus     *models.CardStatus `json:"cardStatus"`
	OrganizationID *uuid.UUID         `json:"organizationId"`
}

func (req CardRequest) apply(card *models.AccessCard) error {
	if req.CardID != nil {
		card.CardID = strings.TrimSpace(*req.CardID)
	}
	if req.NameOnCard != nil {
		card.NameOnCard = strings.TrimSpace(*req.NameOnCard)
	}
	if req.CardType != nil {
		card.CardType = *req.CardType
	}
	if req.CardStatus != nil {
		card.CardStatus = *req.CardStatus
	}
	if req.OrganizationID != nil {
		card.OrganizationID = *req.OrganizationID
	}
	if card.CardStatus == "" {
		card.CardStatus = models.CardStatusActive
	}
	switch {
	case card.CardID == "":
		return apperr.New(apperr.KindValidation, "cardId is required")
	case !card.CardType.Valid():
		return apperr.New(apperr.KindValidation, "cardType must be NFC, RFID or QR_CODE")
	case !card.CardStatus.Valid():
		return apperr.New(apperr.KindValidation, "cardStatus must be ACTIVE, INACTIVE or SUSPENDED")
	case card.OrganizationID == uuid.Nil:
		return apperr.New(apperr.KindValidation, "organizationId is required")
	}
	return nil
}

// List handles GET /api/access-cards?organizationId=&cardId=.
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
	f.CardID = strings.TrimSpace(c.Query("cardId"))
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to load access cards")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/access-cards/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	card, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, card)
}

// Create handles POST /api/access-cards.
func (h *Handler) Create(c *gin.Context) {
	var body CardRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	card := &models.AccessCard{}
	if err := body.apply(card); err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), card); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditCreate, "Created access card "+card.CardID)
	response.Created(c, card)
}

// Update handles PATCH /api/access-cards/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body CardRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	card, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := body.apply(card); err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.repo.Update(c.Request.Context(), card); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditUpdate, "Updated access card "+card.CardID)
	response.OK(c, card)
}

// Delete handles DELETE /api/access-cards/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	audit.Note(c.Request.Context(), h.audit, h.logger, middleware.UserID(c), models.AuditDelete, "Deleted access card "+id.String())
	response.NoContent(c)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid access card id")
		return uuid.Nil, false
	}
	return id, true
}
