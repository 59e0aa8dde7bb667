package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
)

type fakeStore struct {
	orgs   []models.Organization
	routes []models.Route
	buses  []models.Bus
	err    error
	calls  int
}

func (s *fakeStore) OrganizationByTaxID(_ context.Context, taxID string) (*models.Organization, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.orgs {
		if s.orgs[i].TaxID == taxID {
			o := s.orgs[i]
			return &o, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) RouteByCode(_ context.Context, orgID uuid.UUID, code string) (*models.Route, error) {
	for i := range s.routes {
		if s.routes[i].OrganizationID == orgID && s.routes[i].Code == code {
			r := s.routes[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) BusByPlate(_ context.Context, orgID uuid.UUID, plate string) (*models.Bus, error) {
	for i := range s.buses {
		if s.buses[i].OrganizationID == orgID && strings.EqualFold(s.buses[i].PlateNumber, plate) {
			b := s.buses[i]
			return &b, nil
		}
	}
	return nil, nil
}

type memoryCache struct {
	items map[string]models.Organization
}

func (c *memoryCache) Get(_ context.Context, taxID string) (*models.Organization, bool) {
	o, ok := c.items[taxID]
	if !ok {
		return nil, false
	}
	return &o, true
}

func (c *memoryCache) Set(_ context.Context, org *models.Organization) { c.items[org.TaxID] = *org }

func (c *memoryCache) Invalidate(_ context.Context, taxIDs ...string) {
	for _, id := range taxIDs {
		delete(c.items, id)
	}
}

func TestResolveOrganizationByTaxID(t *testing.T) {
	org := models.Organization{ID: uuid.New(), Name: "Acme Transit", TaxID: "7701234567"}
	store := &fakeStore{orgs: []models.Organization{org}}
	d := New(store, nil, nil)

	got, err := d.ResolveOrganizationByTaxID(context.Background(), "7701234567")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	_, err = d.ResolveOrganizationByTaxID(context.Background(), "0000000000")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "0000000000")

	_, err = d.ResolveOrganizationByTaxID(context.Background(), "  ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestResolveOrganizationUsesCache(t *testing.T) {
	org := models.Organization{ID: uuid.New(), TaxID: "7701234567"}
	store := &fakeStore{orgs: []models.Organization{org}}
	cache := &memoryCache{items: map[string]models.Organization{}}
	d := New(store, cache, nil)

	for i := 0; i < 3; i++ {
		got, err := d.ResolveOrganizationByTaxID(context.Background(), org.TaxID)
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)
	}
	assert.Equal(t, 1, store.calls)

	cache.Invalidate(context.Background(), org.TaxID)
	_, err := d.ResolveOrganizationByTaxID(context.Background(), org.TaxID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestResolveOrganizationStoreFailure(t *testing.T) {
	d := New(&fakeStore{err: errors.New("connection reset")}, nil, nil)

	_, err := d.ResolveOrganizationByTaxID(context.Background(), "7701234567")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestResolveRouteIsScopedToOrganization(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	route := models.Route{ID: uuid.New(), Code: "R-77", OrganizationID: orgA}
	d := New(&fakeStore{routes: []models.Route{route}}, nil, nil)

	got, err := d.ResolveRoute(context.Background(), orgA, "R-77")
	require.NoError(t, err)
	assert.Equal(t, route.ID, got.ID)

	_, err = d.ResolveRoute(context.Background(), orgB, "R-77")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = d.ResolveRoute(context.Background(), orgA, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestResolveBusIgnoresCase(t *testing.T) {
	org := uuid.New()
	bus := models.Bus{ID: uuid.New(), PlateNumber: "A123BC77", OrganizationID: org}
	d := New(&fakeStore{buses: []models.Bus{bus}}, nil, nil)

	got, err := d.ResolveBus(context.Background(), org, "a123bc77")
	require.NoError(t, err)
	assert.Equal(t, bus.ID, got.ID)

	_, err = d.ResolveBus(context.Background(), uuid.New(), "A123BC77")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "A123BC77")
}
