package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/directory"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/internal/timeslots"
	"github.com/bbus-fleet/backend/pkg/apperr"
	"github.com/bbus-fleet/backend/pkg/metrics"
)

// world is an in-memory database. WithinTx works on a copy and keeps it only on success.
type world struct {
	orgs   []models.Organization
	routes []models.Route
	buses  []models.Bus
	slots  []models.TimeSlot
	logs   []models.AuditLog

	// filedUnder overrides the organization a route is looked up under.
	filedUnder map[uuid.UUID]uuid.UUID
	failAssign error
}

func (w *world) clone() *world {
	c := *w
	c.orgs = append([]models.Organization(nil), w.orgs...)
	c.routes = append([]models.Route(nil), w.routes...)
	c.buses = append([]models.Bus(nil), w.buses...)
	c.slots = append([]models.TimeSlot(nil), w.slots...)
	c.logs = append([]models.AuditLog(nil), w.logs...)
	return &c
}

func (w *world) WithinTx(ctx context.Context, fn func(context.Context, UnitOfWork) error) error {
	tx := w.clone()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	*w = *tx
	return nil
}

func (w *world) Directory() directory.Store { return w }
func (w *world) TimeSlots() timeslots.Store { return w }
func (w *world) Buses() BusAssigner         { return w }
func (w *world) Audit() audit.Recorder      { return w }

func (w *world) OrganizationByTaxID(_ context.Context, taxID string) (*models.Organization, error) {
	for i := range w.orgs {
		if w.orgs[i].TaxID == taxID {
			o := w.orgs[i]
			return &o, nil
		}
	}
	return nil, nil
}

func (w *world) RouteByCode(_ context.Context, orgID uuid.UUID, code string) (*models.Route, error) {
	for i := range w.routes {
		r := w.routes[i]
		key := r.OrganizationID
		if k, ok := w.filedUnder[r.ID]; ok {
			key = k
		}
		if r.Code == code && key == orgID {
			return &r, nil
		}
	}
	return nil, nil
}

func (w *world) BusByPlate(_ context.Context, orgID uuid.UUID, plate string) (*models.Bus, error) {
	for i := range w.buses {
		if w.buses[i].OrganizationID == orgID && strings.EqualFold(w.buses[i].PlateNumber, plate) {
			b := w.buses[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (w *world) LockOrder(context.Context, string) error { return nil }

func (w *world) GetByOrderID(_ context.Context, orderID string) (*models.TimeSlot, error) {
	for i := range w.slots {
		if w.slots[i].OrderExternalID == orderID {
			s := w.slots[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (w *world) Insert(_ context.Context, s *models.TimeSlot) error {
	w.slots = append(w.slots, *s)
	return nil
}

func (w *world) Update(_ context.Context, s *models.TimeSlot) error {
	for i := range w.slots {
		if w.slots[i].ID == s.ID {
			w.slots[i] = *s
			return nil
		}
	}
	return errors.New("missing slot")
}

func (w *world) List(context.Context, timeslots.Filter) ([]models.TimeSlot, error) {
	return w.slots, nil
}

func (w *world) DeleteByIDs(context.Context, []uuid.UUID) (int64, error) { return 0, nil }

func (w *world) AssignCurrent(_ context.Context, busID, routeID, orgID uuid.UUID) (*models.Bus, error) {
	if w.failAssign != nil {
		return nil, w.failAssign
	}
	for i := range w.buses {
		if w.buses[i].ID == busID {
			w.buses[i].RouteID = routeID
			w.buses[i].OrganizationID = orgID
			b := w.buses[i]
			return &b, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "bus not found")
}

func (w *world) Record(_ context.Context, e *models.AuditLog) error {
	w.logs = append(w.logs, *e)
	return nil
}

type fixture struct {
	world  *world
	org    models.Organization
	route  models.Route
	bus    models.Bus
	parked models.Route
}

func newFixture() *fixture {
	org := models.Organization{ID: uuid.New(), Name: "Acme Transit", TaxID: "7701234567"}
	other := models.Organization{ID: uuid.New(), Name: "Default", TaxID: "0000000000"}
	parked := models.Route{ID: uuid.New(), Code: "DEFAULT", OrganizationID: other.ID}
	route := models.Route{ID: uuid.New(), Code: "R-77", OrganizationID: org.ID}
	bus := models.Bus{ID: uuid.New(), PlateNumber: "A123BC77", OrganizationID: org.ID, RouteID: parked.ID}
	return &fixture{
		world: &world{
			orgs:   []models.Organization{org, other},
			routes: []models.Route{parked, route},
			buses:  []models.Bus{bus},
		},
		org:    org,
		route:  route,
		bus:    bus,
		parked: parked,
	}
}

var identity = models.ServiceIdentity{ActorID: "user_system"}

func order() Order {
	return Order{
		RouteCode:         "R-77",
		PlatePattern:      "a123bc77",
		CounterpartyTaxID: "7701234567",
		OrderExternalID:   "ORD-1",
		StartRaw:          "01.03.2025 09.30.00",
		EndRaw:            "01.03.2025 17.45.00",
	}
}

type tickingClock struct{ t time.Time }

func (c *tickingClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newReconciler(w *world, reg prometheus.Registerer) *Reconciler {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}
	r := New(w, time.UTC, m, nil)
	clock := &tickingClock{t: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)}
	r.now = clock.now
	return r
}

func TestReconcileAssignsBusAndCreatesSlot(t *testing.T) {
	f := newFixture()
	reg := prometheus.NewRegistry()
	r := newReconciler(f.world, reg)

	res, err := r.Reconcile(context.Background(), identity, order())
	require.NoError(t, err)
	assert.True(t, res.Created)

	assert.Equal(t, f.bus.ID, res.Bus.ID)
	assert.Equal(t, f.route.ID, res.Bus.RouteID)
	assert.Equal(t, f.org.ID, res.Bus.OrganizationID)

	require.Len(t, f.world.slots, 1)
	slot := f.world.slots[0]
	assert.Equal(t, "ORD-1", slot.OrderExternalID)
	assert.Equal(t, f.route.ID, slot.RouteID)
	assert.Equal(t, "R-77", slot.RouteCode)
	assert.Equal(t, f.bus.ID, slot.BusID)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), slot.StartsAt)
	assert.Equal(t, time.Date(2025, 3, 1, 17, 45, 0, 0, time.UTC), slot.EndsAt)

	require.Len(t, f.world.logs, 1)
	assert.Equal(t, "user_system", f.world.logs[0].ActorID)
	assert.Contains(t, f.world.logs[0].Metadata, "ORD-1")

	assert.Equal(t, float64(1), counter(t, reg, "success", ""))
}

func counter(t *testing.T, reg *prometheus.Registry, outcome, step string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "fleet_order_reconciliations_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["outcome"] == outcome && labels["step"] == step {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture()
	r := newReconciler(f.world, nil)

	first, err := r.Reconcile(context.Background(), identity, order())
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), identity, order())
	require.NoError(t, err)

	assert.False(t, second.Created)
	require.Len(t, f.world.slots, 1)
	assert.Equal(t, first.TimeSlot.ID, second.TimeSlot.ID)
	assert.Equal(t, first.TimeSlot.CreatedAt, f.world.slots[0].CreatedAt)
	assert.True(t, f.world.slots[0].UpdatedAt.After(first.TimeSlot.UpdatedAt))
}

func TestReconcileCorrectsWindowInPlace(t *testing.T) {
	f := newFixture()
	r := newReconciler(f.world, nil)

	_, err := r.Reconcile(context.Background(), identity, order())
	require.NoError(t, err)

	corrected := order()
	corrected.StartRaw = "02.03.2025 06.00.00"
	corrected.EndRaw = "02.03.2025 14.00.00"
	_, err = r.Reconcile(context.Background(), identity, corrected)
	require.NoError(t, err)

	require.Len(t, f.world.slots, 1)
	assert.Equal(t, time.Date(2025, 3, 2, 6, 0, 0, 0, time.UTC), f.world.slots[0].StartsAt)
	assert.Equal(t, time.Date(2025, 3, 2, 14, 0, 0, 0, time.UTC), f.world.slots[0].EndsAt)
}

func TestReconcileConsistencyGuard(t *testing.T) {
	f := newFixture()
	foreign := uuid.New()
	stale := models.Route{ID: uuid.New(), Code: "R-STALE", OrganizationID: foreign}
	f.world.routes = append(f.world.routes, stale)
	f.world.filedUnder = map[uuid.UUID]uuid.UUID{stale.ID: f.org.ID}

	reg := prometheus.NewRegistry()
	r := newReconciler(f.world, reg)
	o := order()
	o.RouteCode = "R-STALE"

	_, err := r.Reconcile(context.Background(), identity, o)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDictionariesOutOfSync)
	assert.Equal(t, apperr.KindConsistency, apperr.KindOf(err))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepConsistencyCheck, stepErr.Step)
	assert.Equal(t, "R-STALE", stepErr.Key)

	assert.Empty(t, f.world.slots)
	assert.Equal(t, f.bus, f.world.buses[0])
	assert.Empty(t, f.world.logs)
	assert.Equal(t, float64(1), counter(t, reg, "failure", string(StepConsistencyCheck)))
}

func TestReconcileResolutionFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Order)
		step   Step
		key    string
	}{
		{"unknown tax id", func(o *Order) { o.CounterpartyTaxID = "9999999999" }, StepResolveOrganization, "9999999999"},
		{"unknown route", func(o *Order) { o.RouteCode = "R-404" }, StepResolveRoute, "R-404"},
		{"route of another organization", func(o *Order) { o.RouteCode = "DEFAULT" }, StepResolveRoute, "DEFAULT"},
		{"unknown plate", func(o *Order) { o.PlatePattern = "Z000ZZ00" }, StepResolveBus, "Z000ZZ00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			r := newReconciler(f.world, nil)
			o := order()
			tt.mutate(&o)

			_, err := r.Reconcile(context.Background(), identity, o)
			require.Error(t, err)
			assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.key)

			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.step, stepErr.Step)
			assert.Equal(t, tt.key, stepErr.Key)
			assert.Empty(t, f.world.slots)
			assert.Equal(t, f.bus, f.world.buses[0])
		})
	}
}

func TestReconcileBusLookupIsOrganizationScoped(t *testing.T) {
	f := newFixture()
	f.world.buses[0].OrganizationID = uuid.New()
	r := newReconciler(f.world, nil)

	_, err := r.Reconcile(context.Background(), identity, order())
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepResolveBus, stepErr.Step)
}

func TestReconcileRejectsMalformedTimestamps(t *testing.T) {
	f := newFixture()
	r := newReconciler(f.world, nil)
	o := order()
	o.EndRaw = "01.03.2025 17:45:00"

	_, err := r.Reconcile(context.Background(), identity, o)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepParseTime, stepErr.Step)
	assert.Empty(t, f.world.slots)
	assert.Equal(t, f.bus, f.world.buses[0])
}

func TestReconcileValidatesOrder(t *testing.T) {
	f := newFixture()
	r := newReconciler(f.world, nil)

	_, err := r.Reconcile(context.Background(), identity, Order{RouteCode: "R-77", StartRaw: " "})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "carStateNumber, counterpartyInn, endDate, orderUid1c, startDate")
}

func TestReconcileRollsBackSlotWhenBusUpdateFails(t *testing.T) {
	f := newFixture()
	f.world.failAssign = errors.New("connection reset")
	r := newReconciler(f.world, nil)

	_, err := r.Reconcile(context.Background(), identity, order())
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepUpdateBus, stepErr.Step)
	assert.Empty(t, f.world.slots)
}

func TestReconcileOverwritesPriorAssignment(t *testing.T) {
	f := newFixture()
	second := models.Route{ID: uuid.New(), Code: "R-88", OrganizationID: f.org.ID}
	f.world.routes = append(f.world.routes, second)
	r := newReconciler(f.world, nil)

	_, err := r.Reconcile(context.Background(), identity, order())
	require.NoError(t, err)
	assert.Equal(t, f.route.ID, f.world.buses[0].RouteID)

	o := order()
	o.RouteCode = "R-88"
	o.OrderExternalID = "ORD-2"
	res, err := r.Reconcile(context.Background(), identity, o)
	require.NoError(t, err)

	assert.Equal(t, second.ID, res.Bus.RouteID)
	assert.Equal(t, second.ID, f.world.buses[0].RouteID)
	assert.Equal(t, f.org.ID, f.world.buses[0].OrganizationID)
	assert.Len(t, f.world.slots, 2)
}
