// Package reconcile maps one inbound order onto internal entities and records its time slot.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/directory"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/internal/timefmt"
	"github.com/bbus-fleet/backend/internal/timeslots"
	"github.com/bbus-fleet/backend/pkg/apperr"
	"github.com/bbus-fleet/backend/pkg/metrics"
)

// Order is one inbound order record. StartRaw and EndRaw use the DD.MM.YYYY HH.MM.SS format.
type Order struct {
	RouteCode         string
	PlatePattern      string
	CounterpartyTaxID string
	OrderExternalID   string
	StartRaw          string
	EndRaw            string
}

// Validate reports every missing field in one validation error.
func (o Order) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"routeUid1c":      o.RouteCode,
		"carStateNumber":  o.PlatePattern,
		"counterpartyInn": o.CounterpartyTaxID,
		"orderUid1c":      o.OrderExternalID,
		"startDate":       o.StartRaw,
		"endDate":         o.EndRaw,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apperr.Newf(apperr.KindValidation, "order data is missing %s", strings.Join(missing, ", "))
}

// BusAssigner moves a bus's current assignment.
type BusAssigner interface {
	AssignCurrent(ctx context.Context, busID, routeID, organizationID uuid.UUID) (*models.Bus, error)
}

// UnitOfWork exposes the stores bound to one transaction.
type UnitOfWork interface {
	Directory() directory.Store
	TimeSlots() timeslots.Store
	Buses() BusAssigner
	Audit() audit.Recorder
}

// Transactor runs fn in a transaction. A returned error rolls every write back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// Result is the outcome of a successful reconciliation.
type Result struct {
	Bus      *models.Bus
	TimeSlot *models.TimeSlot
	Created  bool
}

// Reconciler runs order reconciliation.
type Reconciler struct {
	tx      Transactor
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a reconciler. loc is the timezone of order timestamps; m may be nil.
func New(tx Transactor, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{tx: tx, loc: loc, metrics: m, logger: logger, now: time.Now}
}

// Reconcile resolves the order's organization, route and bus, checks they agree, upserts the time
// slot for the order id and points the bus at the route. Steps run in that order inside one
// transaction; the first failure aborts with a *StepError and nothing is written.
func (r *Reconciler) Reconcile(ctx context.Context, identity models.ServiceIdentity, order Order) (*Result, error) {
	order = trimOrder(order)
	if err := order.Validate(); err != nil {
		return nil, r.failed(order, fail(StepValidateOrder, order.OrderExternalID, err))
	}

	var res Result
	err := r.tx.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		dir := directory.New(uow.Directory(), nil, r.logger)

		org, err := dir.ResolveOrganizationByTaxID(ctx, order.CounterpartyTaxID)
		if err != nil {
			return fail(StepResolveOrganization, order.CounterpartyTaxID, err)
		}
		route, err := dir.ResolveRoute(ctx, org.ID, order.RouteCode)
		if err != nil {
			return fail(StepResolveRoute, order.RouteCode, err)
		}
		if route.OrganizationID != org.ID {
			return fail(StepConsistencyCheck, order.RouteCode, ErrDictionariesOutOfSync)
		}
		bus, err := dir.ResolveBus(ctx, org.ID, order.PlatePattern)
		if err != nil {
			return fail(StepResolveBus, order.PlatePattern, err)
		}

		start, err := timefmt.ParseOrderTime(order.StartRaw, r.loc)
		if err != nil {
			return fail(StepParseTime, order.StartRaw, err)
		}
		end, err := timefmt.ParseOrderTime(order.EndRaw, r.loc)
		if err != nil {
			return fail(StepParseTime, order.EndRaw, err)
		}

		now := r.now().UTC()
		slot, created, err := timeslots.Upsert(ctx, uow.TimeSlots(), now, order.OrderExternalID, models.TimeSlotData{
			RouteID:   route.ID,
			RouteCode: route.Code,
			StartsAt:  start,
			EndsAt:    end,
			BusID:     bus.ID,
		})
		if err != nil {
			return fail(StepUpsertTimeSlot, order.OrderExternalID, err)
		}

		updated, err := uow.Buses().AssignCurrent(ctx, bus.ID, route.ID, org.ID)
		if err != nil {
			return fail(StepUpdateBus, bus.ID.String(), err)
		}

		meta := fmt.Sprintf("Order %s: bus %s assigned to route %s of client %s", order.OrderExternalID, updated.PlateNumber, route.Code, org.Name)
		if err := uow.Audit().Record(ctx, audit.Entry(identity.ActorID, models.AuditUpdate, meta, now)); err != nil {
			return fail(StepAudit, order.OrderExternalID, apperr.Wrap(apperr.KindInternal, "record audit entry", err))
		}

		res = Result{Bus: updated, TimeSlot: slot, Created: created}
		return nil
	})
	if err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			stepErr = fail(StepTransaction, order.OrderExternalID, apperr.Wrap(apperr.KindInternal, "reconciliation transaction", err))
		}
		return nil, r.failed(order, stepErr)
	}

	r.metrics.ReconcileSucceeded()
	r.logger.Info("order reconciled",
		zap.String("order_id", order.OrderExternalID),
		zap.String("bus_id", res.Bus.ID.String()),
		zap.String("route_id", res.Bus.RouteID.String()),
		zap.Bool("created", res.Created),
	)
	return &res, nil
}

func (r *Reconciler) failed(order Order, err *StepError) error {
	r.metrics.ReconcileFailed(string(err.Step))
	fields := []zap.Field{
		zap.String("step", string(err.Step)),
		zap.String("key", err.Key),
		zap.String("order_id", order.OrderExternalID),
		zap.String("kind", string(apperr.KindOf(err))),
		zap.Error(err.Err),
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		r.logger.Error("order reconciliation failed", fields...)
	} else {
		r.logger.Warn("order reconciliation failed", fields...)
	}
	return err
}

func trimOrder(o Order) Order {
	return Order{
		RouteCode:         strings.TrimSpace(o.RouteCode),
		PlatePattern:      strings.TrimSpace(o.PlatePattern),
		CounterpartyTaxID: strings.TrimSpace(o.CounterpartyTaxID),
		OrderExternalID:   strings.TrimSpace(o.OrderExternalID),
		StartRaw:          strings.TrimSpace(o.StartRaw),
		EndRaw:            strings.TrimSpace(o.EndRaw),
	}
}
