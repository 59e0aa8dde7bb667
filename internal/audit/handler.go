package audit

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/response"
)

// Lister reads audit entries.
type Lister interface {
	List(ctx context.Context, f ListFilter) ([]models.AuditLog, error)
}

// Handler handles audit log HTTP endpoints.
type Handler struct {
	repo Lister
}

// NewHandler creates an audit handler.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /api/logs?userId=&action=&limit=.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{
		ActorID: strings.TrimSpace(c.Query("userId")),
		Action:  models.AuditAction(strings.ToUpper(strings.TrimSpace(c.Query("action")))),
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	logs, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to load logs")
		return
	}
	response.OK(c, logs)
}
