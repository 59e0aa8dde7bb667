package reconcile_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/buses"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/internal/organizations"
	"github.com/bbus-fleet/backend/internal/reconcile"
	"github.com/bbus-fleet/backend/internal/routes"
	"github.com/bbus-fleet/backend/internal/timeslots"
	"github.com/bbus-fleet/backend/pkg/database"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return pool
}

func TestPgReconcile(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	org := &models.Organization{Name: "Integration " + suffix, TaxID: "it-" + suffix}
	require.NoError(t, organizations.NewRepository(pool).Create(ctx, org))
	t.Cleanup(func() { _ = organizations.NewRepository(pool).Delete(context.Background(), org.ID) })

	routeRepo := routes.NewRepository(pool)
	parked := &models.Route{Code: "PARK-" + suffix, Name: "parked", Mode: models.RouteModeRegistration, OrganizationID: org.ID}
	route := &models.Route{Code: "R-" + suffix, Name: "line", Mode: models.RouteModeRegistration, OrganizationID: org.ID}
	require.NoError(t, routeRepo.Create(ctx, parked))
	require.NoError(t, routeRepo.Create(ctx, route))

	busRepo := buses.NewRepository(pool)
	bus := &models.Bus{PlateNumber: "PL" + suffix, OrganizationID: org.ID, RouteID: parked.ID}
	require.NoError(t, busRepo.Create(ctx, bus))

	r := reconcile.New(reconcile.NewPgTransactor(pool), time.UTC, nil, nil)
	order := reconcile.Order{
		RouteCode:         route.Code,
		PlatePattern:      "pl" + suffix,
		CounterpartyTaxID: org.TaxID,
		OrderExternalID:   "ORD-" + suffix,
		StartRaw:          "01.03.2025 09.30.00",
		EndRaw:            "01.03.2025 17.45.00",
	}
	identity := models.ServiceIdentity{ActorID: "integration"}

	res, err := r.Reconcile(ctx, identity, order)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, route.ID, res.Bus.RouteID)

	res, err = r.Reconcile(ctx, identity, order)
	require.NoError(t, err)
	assert.False(t, res.Created)

	slots, err := timeslots.NewRepository(pool).List(ctx, timeslots.Filter{RouteID: route.ID})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, order.OrderExternalID, slots[0].OrderExternalID)
	assert.True(t, slots[0].StartsAt.Equal(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)))

	missing := order
	missing.PlatePattern = "NOPE" + suffix
	missing.OrderExternalID = "ORD-missing-" + suffix
	_, err = r.Reconcile(ctx, identity, missing)
	require.Error(t, err)
	got, err := timeslots.NewRepository(pool).GetByOrderID(ctx, missing.OrderExternalID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
