// Package journeys stores passenger journeys and filters them for exports and dashboards.
package journeys

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
)

// Criteria selects journeys. Empty id lists and nil bounds are unconstrained; bounds are inclusive.
type Criteria struct {
	BusIDs   []uuid.UUID
	RouteIDs []uuid.UUID
	From     *time.Time
	To       *time.Time
}

// Match reports whether j satisfies every constraint in c.
func (c Criteria) Match(j models.Journey) bool {
	if len(c.BusIDs) > 0 && !contains(c.BusIDs, j.BusID) {
		return false
	}
	if len(c.RouteIDs) > 0 && !contains(c.RouteIDs, j.RouteID) {
		return false
	}
	if c.From != nil && j.Timestamp.Before(*c.From) {
		return false
	}
	if c.To != nil && j.Timestamp.After(*c.To) {
		return false
	}
	return true
}

// Filter returns the journeys in list that match c, keeping their order.
func (c Criteria) Filter(list []models.JourneyDetail) []models.JourneyDetail {
	out := make([]models.JourneyDetail, 0, len(list))
	for _, j := range list {
		if c.Match(j.Journey) {
			out = append(out, j)
		}
	}
	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// DetailLister loads journeys with their related entities. from and to may narrow the scan.
type DetailLister interface {
	ListDetailed(ctx context.Context, from, to *time.Time) ([]models.JourneyDetail, error)
}

// Engine filters journeys.
type Engine struct {
	store DetailLister
}

// NewEngine creates an engine over store.
func NewEngine(store DetailLister) *Engine {
	return &Engine{store: store}
}

// FilterJourneys returns the journeys matching c ordered by timestamp.
func (e *Engine) FilterJourneys(ctx context.Context, c Criteria) ([]models.JourneyDetail, error) {
	list, err := e.store.ListDetailed(ctx, c.From, c.To)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load journeys", err)
	}
	return c.Filter(list), nil
}
