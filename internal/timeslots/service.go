package timeslots

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
	"github.com/bbus-fleet/backend/pkg/database"
)

// Upsert creates the slot for orderExternalID or replaces its data in place. store must be bound to a
// transaction so the order lock holds until commit. created reports whether a new row was inserted.
func Upsert(ctx context.Context, store Store, now time.Time, orderExternalID string, data models.TimeSlotData) (*models.TimeSlot, bool, error) {
	orderExternalID = strings.TrimSpace(orderExternalID)
	if orderExternalID == "" {
		return nil, false, apperr.New(apperr.KindValidation, "order id is required")
	}
	if data.RouteID == uuid.Nil || data.BusID == uuid.Nil {
		return nil, false, apperr.New(apperr.KindValidation, "time slot needs a route and a bus")
	}
	if err := store.LockOrder(ctx, orderExternalID); err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "lock order", err)
	}

	existing, err := store.GetByOrderID(ctx, orderExternalID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "load time slot", err)
	}
	if existing == nil {
		slot := &models.TimeSlot{
			ID:              uuid.New(),
			OrderExternalID: orderExternalID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		slot.Apply(data)
		if err := store.Insert(ctx, slot); err != nil {
			if database.IsUniqueViolation(err) {
				return nil, false, apperr.Wrap(apperr.KindConflict, "time slot for order "+orderExternalID+" was created concurrently", err)
			}
			return nil, false, apperr.Wrap(apperr.KindInternal, "insert time slot", err)
		}
		return slot, true, nil
	}

	existing.Apply(data)
	if !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(time.Microsecond)
	}
	existing.UpdatedAt = now
	if err := store.Update(ctx, existing); err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "update time slot", err)
	}
	return existing, false, nil
}

// Service exposes time slot operations that run in their own transaction.
type Service struct {
	tx  Transactor
	now func() time.Time
}

// NewService creates a service. now defaults to time.Now.
func NewService(tx Transactor, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{tx: tx, now: now}
}

// UpsertByOrderID creates or corrects the slot for an order id.
func (s *Service) UpsertByOrderID(ctx context.Context, orderExternalID string, data models.TimeSlotData) (*models.TimeSlot, bool, error) {
	var (
		slot    *models.TimeSlot
		created bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		slot, created, err = Upsert(ctx, store, s.now().UTC(), orderExternalID, data)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return slot, created, nil
}

// BulkDelete removes the slots with the given ids. Unknown ids are ignored.
func (s *Service) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.New(apperr.KindValidation, "Invalid or missing IDs array")
	}
	var n int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		n, err = store.DeleteByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "delete time slots", err)
	}
	return n, nil
}

// List returns the slots matching f, ordered by start.
func (s *Service) List(ctx context.Context, f Filter) ([]models.TimeSlot, error) {
	var list []models.TimeSlot
	err := s.tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		list, err = store.List(ctx, f)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list time slots", err)
	}
	return list, nil
}
