// Package timeslots stores the operating windows that tie a bus to a route, keyed by external order id.
package timeslots

import (
	"context"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
)

// Filter narrows List. Zero fields are unconstrained.
type Filter struct {
	ID      uuid.UUID
	RouteID uuid.UUID
}

// Store persists time slots. GetByOrderID returns (nil, nil) when absent.
type Store interface {
	// LockOrder serializes writers of the same order id until the surrounding transaction ends.
	LockOrder(ctx context.Context, orderExternalID string) error
	GetByOrderID(ctx context.Context, orderExternalID string) (*models.TimeSlot, error)
	Insert(ctx context.Context, slot *models.TimeSlot) error
	Update(ctx context.Context, slot *models.TimeSlot) error
	List(ctx context.Context, f Filter) ([]models.TimeSlot, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Transactor runs fn against a Store bound to one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
