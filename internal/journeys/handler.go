package journeys

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/internal/timefmt"
	"github.com/bbus-fleet/backend/pkg/apperr"
	"github.com/bbus-fleet/backend/pkg/response"
)

// Store is the persistence the handler needs.
type Store interface {
	DetailLister
	GetByID(ctx context.Context, id uuid.UUID) (*models.JourneyDetail, error)
	Create(ctx context.Context, j *models.Journey) error
}

// Handler handles journey HTTP endpoints under /api/journeys.
type Handler struct {
	store  Store
	engine *Engine
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a journeys handler. loc applies to filter bounds without an offset and to reports.
func NewHandler(store Store, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, engine: NewEngine(store), loc: loc, logger: logger, now: time.Now}
}

// JourneyRequest is the body for POST /api/journeys.
type JourneyRequest struct {
	Timestamp     *time.Time           `json:"journeyTimeStamp"`
	Latitude      string               `json:"coordinatesLattitude"`
	Longitude     string               `json:"coordinatesLongitude"`
	Status        models.JourneyStatus `json:"journeyStatus"`
	AccessCardID  uuid.UUID            `json:"accessCardId"`
	BusID         uuid.UUID            `json:"busId"`
	RouteID       uuid.UUID            `json:"routeId"`
	ApplicationID uuid.UUID            `json:"applicationId"`
}

func (req JourneyRequest) journey(now time.Time) (*models.Journey, error) {
	var missing []string
	for name, id := range map[string]uuid.UUID{
		"accessCardId":  req.AccessCardID,
		"applicationId": req.ApplicationID,
		"busId":         req.BusID,
		"routeId":       req.RouteID,
	} {
		if id == uuid.Nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperr.Newf(apperr.KindValidation, "%s required", strings.Join(missing, ", "))
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown journeyStatus %q", req.Status)
	}
	j := &models.Journey{
		Timestamp:     now,
		Latitude:      strings.TrimSpace(req.Latitude),
		Longitude:     strings.TrimSpace(req.Longitude),
		Status:        req.Status,
		AccessCardID:  req.AccessCardID,
		BusID:         req.BusID,
		RouteID:       req.RouteID,
		ApplicationID: req.ApplicationID,
	}
	if req.Timestamp != nil {
		j.Timestamp = req.Timestamp.UTC()
	}
	return j, nil
}

// CriteriaFromQuery reads busId and routeId (repeatable) and from/to.
func CriteriaFromQuery(c *gin.Context, loc *time.Location) (Criteria, error) {
	var (
		crit Criteria
		err  error
	)
	if crit.BusIDs, err = parseIDs(c.QueryArray("busId"), "busId"); err != nil {
		return Criteria{}, err
	}
	if crit.RouteIDs, err = parseIDs(c.QueryArray("routeId"), "routeId"); err != nil {
		return Criteria{}, err
	}
	if crit.From, err = timefmt.ParseBound(c.Query("from"), loc); err != nil {
		return Criteria{}, err
	}
	if crit.To, err = timefmt.ParseUpperBound(c.Query("to"), loc); err != nil {
		return Criteria{}, err
	}
	return crit, nil
}

func parseIDs(values []string, field string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, apperr.Newf(apperr.KindValidation, "invalid %s %q", field, s)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (h *Handler) filtered(c *gin.Context) ([]models.JourneyDetail, bool) {
	crit, err := CriteriaFromQuery(c, h.loc)
	if err != nil {
		response.Fail(c, err)
		return nil, false
	}
	list, err := h.engine.FilterJourneys(c.Request.Context(), crit)
	if err != nil {
		h.logger.Error("filter journeys", zap.Error(err))
		response.Fail(c, err)
		return nil, false
	}
	return list, true
}

// List handles GET /api/journeys?busId=&routeId=&from=&to=.
func (h *Handler) List(c *gin.Context) {
	list, ok := h.filtered(c)
	if !ok {
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/journeys/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid journey id")
		return
	}
	j, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, j)
}

// Create handles POST /api/journeys.
func (h *Handler) Create(c *gin.Context) {
	var body JourneyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	j, err := body.journey(h.now().UTC())
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.store.Create(c.Request.Context(), j); err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, j)
}

// ReportXLSX handles GET /api/journeys/report.xlsx with the List filters.
func (h *Handler) ReportXLSX(c *gin.Context) {
	list, ok := h.filtered(c)
	if !ok {
		return
	}
	data, err := BuildXLSX(list, h.loc)
	if err != nil {
		h.logger.Error("render journeys xlsx", zap.Error(err))
		response.Internal(c, "failed to render report")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="journeys.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ReportPDF handles GET /api/journeys/report.pdf with the List filters.
func (h *Handler) ReportPDF(c *gin.Context) {
	list, ok := h.filtered(c)
	if !ok {
		return
	}
	data, err := BuildPDF(list, h.loc, h.now())
	if err != nil {
		h.logger.Error("render journeys pdf", zap.Error(err))
		response.Internal(c, "failed to render report")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="journeys.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
