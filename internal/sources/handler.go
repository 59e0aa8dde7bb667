// Package sources serves the webhooks the external order system calls under /sources.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/accesscards"
	"github.com/bbus-fleet/backend/internal/dictionary"
	"github.com/bbus-fleet/backend/internal/journeys"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/internal/reconcile"
	"github.com/bbus-fleet/backend/internal/routes"
	"github.com/bbus-fleet/backend/internal/timefmt"
	"github.com/bbus-fleet/backend/internal/timeslots"
	"github.com/bbus-fleet/backend/pkg/response"
)

// Reconciler applies one order.
type Reconciler interface {
	Reconcile(ctx context.Context, identity models.ServiceIdentity, order reconcile.Order) (*reconcile.Result, error)
}

// Synchronizer applies dictionary batches.
type Synchronizer interface {
	SyncBusDictionary(ctx context.Context, identity models.ServiceIdentity, entries []dictionary.BusEntry) ([]models.Bus, error)
	SyncRouteDictionary(ctx context.Context, identity models.ServiceIdentity, entries []dictionary.RouteEntry) ([]models.Route, error)
	SyncAccessCardDictionary(ctx context.Context, identity models.ServiceIdentity, entries []dictionary.CardEntry) ([]models.AccessCard, error)
}

// TimeSlots is the time slot store as seen by the webhooks.
type TimeSlots interface {
	UpsertByOrderID(ctx context.Context, orderExternalID string, data models.TimeSlotData) (*models.TimeSlot, bool, error)
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
	List(ctx context.Context, f timeslots.Filter) ([]models.TimeSlot, error)
}

// Resolver maps external keys to entities.
type Resolver interface {
	ResolveOrganizationByTaxID(ctx context.Context, taxID string) (*models.Organization, error)
	ResolveRoute(ctx context.Context, organizationID uuid.UUID, code string) (*models.Route, error)
	ResolveBus(ctx context.Context, organizationID uuid.UUID, plate string) (*models.Bus, error)
}

// JourneyFilter selects journeys.
type JourneyFilter interface {
	FilterJourneys(ctx context.Context, c journeys.Criteria) ([]models.JourneyDetail, error)
}

// RouteLister lists routes.
type RouteLister interface {
	List(ctx context.Context, f routes.Filter) ([]models.Route, error)
}

// CardLister lists access cards.
type CardLister interface {
	List(ctx context.Context, f accesscards.Filter) ([]models.AccessCard, error)
}

// OrganizationLister lists organizations, optionally by tax id.
type OrganizationLister interface {
	List(ctx context.Context, taxID string) ([]models.Organization, error)
}

// Deps are the collaborators of the webhook handler.
type Deps struct {
	Identity      models.ServiceIdentity
	Location      *time.Location
	Reconciler    Reconciler
	Dictionary    Synchronizer
	TimeSlots     TimeSlots
	Directory     Resolver
	Journeys      JourneyFilter
	Routes        RouteLister
	Cards         CardLister
	Organizations OrganizationLister
	Logger        *zap.Logger
}

// Handler serves /sources. Authentication is done by middleware.APIKey before it runs.
type Handler struct {
	Deps
}

// NewHandler creates a webhook handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	return &Handler{Deps: d}
}

// Register mounts the webhook routes on g. journeysAuth guards GET /journeys on top of g's middleware.
func (h *Handler) Register(g *gin.RouterGroup, journeysAuth ...gin.HandlerFunc) {
	g.POST("/orders", h.ReconcileOrder)
	g.GET("/orders", h.ListTimeSlots)
	g.PATCH("/orders", h.UpsertTimeSlot)
	g.DELETE("/orders", h.DeleteTimeSlots)
	g.POST("/buses", h.SyncBuses)
	g.POST("/routes", h.SyncRoutes)
	g.GET("/routes", h.ListRoutes)
	g.POST("/access-cards", h.SyncAccessCards)
	g.GET("/access-cards", h.ListAccessCards)
	g.GET("/clients", h.ListClients)
	g.GET("/journeys", append(journeysAuth, h.FilterJourneys)...)
}

// bindJSON decodes the body into dst. An empty body leaves dst zero.
func bindJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil {
		return true
	}
	if err := json.NewDecoder(c.Request.Body).Decode(dst); err != nil && err != io.EOF {
		response.SourceBadRequest(c, "Invalid JSON body")
		return false
	}
	return true
}

type orderRequest struct {
	OrderData *struct {
		RouteUID1C      string `json:"routeUid1c"`
		CarStateNumber  string `json:"carStateNumber"`
		CounterpartyInn string `json:"counterpartyInn"`
		OrderUID1C      string `json:"orderUid1c"`
		StartDate       string `json:"startDate"`
		EndDate         string `json:"endDate"`
	} `json:"orderData"`
}

// ReconcileOrder handles POST /sources/orders and responds with the reassigned bus.
func (h *Handler) ReconcileOrder(c *gin.Context) {
	var body orderRequest
	if !bindJSON(c, &body) {
		return
	}
	if body.OrderData == nil {
		response.SourceBadRequest(c, "Order data is missing")
		return
	}
	d := body.OrderData
	res, err := h.Reconciler.Reconcile(c.Request.Context(), h.Identity, reconcile.Order{
		RouteCode:         d.RouteUID1C,
		PlatePattern:      d.CarStateNumber,
		CounterpartyTaxID: d.CounterpartyInn,
		OrderExternalID:   d.OrderUID1C,
		StartRaw:          d.StartDate,
		EndRaw:            d.EndDate,
	})
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Bus)
}

// ListTimeSlots handles GET /sources/orders?id=&routeId=.
func (h *Handler) ListTimeSlots(c *gin.Context) {
	var f timeslots.Filter
	for _, q := range []struct {
		param string
		dst   *uuid.UUID
	}{{"id", &f.ID}, {"routeId", &f.RouteID}} {
		s := strings.TrimSpace(c.Query(q.param))
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			response.SourceBadRequest(c, "invalid "+q.param)
			return
		}
		*q.dst = id
	}
	list, err := h.TimeSlots.List(c.Request.Context(), f)
	if err != nil {
		h.Logger.Error("list time slots", zap.Error(err))
		response.SourceFail(c, err)
		return
	}
	if f.ID != uuid.Nil && len(list) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, response.SourceError{Error: "TimeSlot not found"})
		return
	}
	c.JSON(http.StatusOK, list)
}

type timeSlotRequest struct {
	TimeSlotData *struct {
		OrderID   string    `json:"orderId"`
		RouteID   uuid.UUID `json:"routeId"`
		RouteCode string    `json:"route1cId"`
		StartsAt  time.Time `json:"startTimestamp"`
		EndsAt    time.Time `json:"endTimestamp"`
		BusID     uuid.UUID `json:"busId"`
	} `json:"timeSlotData"`
}

// UpsertTimeSlot handles PATCH /sources/orders: create or replace the slot of timeSlotData.orderId.
func (h *Handler) UpsertTimeSlot(c *gin.Context) {
	var body timeSlotRequest
	if !bindJSON(c, &body) {
		return
	}
	if body.TimeSlotData == nil || strings.TrimSpace(body.TimeSlotData.OrderID) == "" {
		response.SourceBadRequest(c, "Invalid timeSlot data or missing orderId")
		return
	}
	d := body.TimeSlotData
	slot, _, err := h.TimeSlots.UpsertByOrderID(c.Request.Context(), d.OrderID, models.TimeSlotData{
		RouteID:   d.RouteID,
		RouteCode: strings.TrimSpace(d.RouteCode),
		StartsAt:  d.StartsAt,
		EndsAt:    d.EndsAt,
		BusID:     d.BusID,
	})
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DeleteTimeSlots handles DELETE /sources/orders {ids}.
func (h *Handler) DeleteTimeSlots(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if !bindJSON(c, &body) {
		return
	}
	ids := make([]uuid.UUID, 0, len(body.IDs))
	for _, s := range body.IDs {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			response.SourceBadRequest(c, "Invalid or missing IDs array")
			return
		}
		ids = append(ids, id)
	}
	n, err := h.TimeSlots.BulkDelete(c.Request.Context(), ids)
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Deleted %d timeSlot(s)", n)})
}

// SyncBuses handles POST /sources/buses {StateNumbersDictionary}.
func (h *Handler) SyncBuses(c *gin.Context) {
	var body struct {
		Entries []dictionary.BusEntry `json:"StateNumbersDictionary"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if len(body.Entries) == 0 {
		response.SourceBadRequest(c, "Bus data or car state number is missing")
		return
	}
	inserted, err := h.Dictionary.SyncBusDictionary(c.Request.Context(), h.Identity, body.Entries)
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, inserted)
}

// SyncRoutes handles POST /sources/routes {RoutesDictionary}.
func (h *Handler) SyncRoutes(c *gin.Context) {
	var body struct {
		Entries []dictionary.RouteEntry `json:"RoutesDictionary"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if len(body.Entries) == 0 {
		response.SourceBadRequest(c, "Routes dictionary data is missing")
		return
	}
	inserted, err := h.Dictionary.SyncRouteDictionary(c.Request.Context(), h.Identity, body.Entries)
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, inserted)
}

// ListRoutes handles GET /sources/routes?orderRouteId1c=.
func (h *Handler) ListRoutes(c *gin.Context) {
	list, err := h.Routes.List(c.Request.Context(), routes.Filter{Code: strings.TrimSpace(c.Query("orderRouteId1c"))})
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SyncAccessCards handles POST /sources/access-cards {cardsData}.
func (h *Handler) SyncAccessCards(c *gin.Context) {
	var body struct {
		Entries []dictionary.CardEntry `json:"cardsData"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if len(body.Entries) == 0 {
		response.SourceBadRequest(c, "Access cards data is missing")
		return
	}
	inserted, err := h.Dictionary.SyncAccessCardDictionary(c.Request.Context(), h.Identity, body.Entries)
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, inserted)
}

// ListAccessCards handles GET /sources/access-cards?counterpartyInn=.
func (h *Handler) ListAccessCards(c *gin.Context) {
	ctx := c.Request.Context()
	var f accesscards.Filter
	if taxID := strings.TrimSpace(c.Query("counterpartyInn")); taxID != "" {
		org, err := h.Directory.ResolveOrganizationByTaxID(ctx, taxID)
		if err != nil {
			response.SourceFail(c, err)
			return
		}
		f.OrganizationID = org.ID
	}
	list, err := h.Cards.List(ctx, f)
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListClients handles GET /sources/clients?taxId=.
func (h *Handler) ListClients(c *gin.Context) {
	list, err := h.Organizations.List(c.Request.Context(), strings.TrimSpace(c.Query("taxId")))
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// JourneyParams selects journeys by external keys. StartTime and EndTime are accepted as aliases.
type JourneyParams struct {
	CarStateNumber  []string `json:"carStateNumber" form:"carStateNumber"`
	RouteUID        []string `json:"routeUid" form:"routeUid"`
	CounterpartyInn string   `json:"counterpartyInn" form:"counterpartyInn"`
	StartDate       string   `json:"startDate" form:"startDate"`
	EndDate         string   `json:"endDate" form:"endDate"`
	StartTime       string   `json:"startTime" form:"startTime"`
	EndTime         string   `json:"endTime" form:"endTime"`
}

// FilterJourneys handles GET /sources/journeys with journeyParams in the body or the query.
func (h *Handler) FilterJourneys(c *gin.Context) {
	var body struct {
		JourneyParams *JourneyParams `json:"journeyParams"`
	}
	if !bindJSON(c, &body) {
		return
	}
	p := body.JourneyParams
	if p == nil {
		p = &JourneyParams{}
		if err := c.ShouldBindQuery(p); err != nil {
			response.SourceBadRequest(c, "Invalid journey parameters")
			return
		}
	}
	crit, err := h.journeyCriteria(c.Request.Context(), *p)
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	list, err := h.Journeys.FilterJourneys(c.Request.Context(), crit)
	if err != nil {
		response.SourceFail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// journeyCriteria resolves every plate and route code within the counterparty. The first miss fails.
func (h *Handler) journeyCriteria(ctx context.Context, p JourneyParams) (journeys.Criteria, error) {
	var crit journeys.Criteria
	from, err := timefmt.ParseBound(firstNonEmpty(p.StartDate, p.StartTime), h.Location)
	if err != nil {
		return crit, err
	}
	to, err := timefmt.ParseUpperBound(firstNonEmpty(p.EndDate, p.EndTime), h.Location)
	if err != nil {
		return crit, err
	}
	crit.From, crit.To = from, to

	org, err := h.Directory.ResolveOrganizationByTaxID(ctx, p.CounterpartyInn)
	if err != nil {
		return crit, err
	}
	for _, code := range p.RouteUID {
		route, err := h.Directory.ResolveRoute(ctx, org.ID, code)
		if err != nil {
			return crit, err
		}
		crit.RouteIDs = append(crit.RouteIDs, route.ID)
	}
	for _, plate := range p.CarStateNumber {
		bus, err := h.Directory.ResolveBus(ctx, org.ID, plate)
		if err != nil {
			return crit, err
		}
		crit.BusIDs = append(crit.BusIDs, bus.ID)
	}
	return crit, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
