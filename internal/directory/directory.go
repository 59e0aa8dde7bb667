// Package directory resolves the external identifiers used by the order system to internal entities.
package directory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
)

// Store looks entities up by business key. Lookups return (nil, nil) when nothing matches.
type Store interface {
	OrganizationByTaxID(ctx context.Context, taxID string) (*models.Organization, error)
	RouteByCode(ctx context.Context, organizationID uuid.UUID, code string) (*models.Route, error)
	// BusByPlate matches the plate case-insensitively within the organization.
	BusByPlate(ctx context.Context, organizationID uuid.UUID, plate string) (*models.Bus, error)
}

// OrganizationCache caches tax-id lookups. Implementations must tolerate being unavailable.
type OrganizationCache interface {
	Get(ctx context.Context, taxID string) (*models.Organization, bool)
	Set(ctx context.Context, org *models.Organization)
	Invalidate(ctx context.Context, taxIDs ...string)
}

// Directory resolves organizations, routes and buses for the order pipeline.
type Directory struct {
	store  Store
	cache  OrganizationCache
	logger *zap.Logger
}

// New creates a directory. cache may be nil.
func New(store Store, cache OrganizationCache, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{store: store, cache: cache, logger: logger}
}

// ResolveOrganizationByTaxID returns the organization whose tax id equals taxID.
func (d *Directory) ResolveOrganizationByTaxID(ctx context.Context, taxID string) (*models.Organization, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return nil, apperr.New(apperr.KindValidation, "counterparty tax id is required")
	}
	if d.cache != nil {
		if org, ok := d.cache.Get(ctx, taxID); ok {
			return org, nil
		}
	}
	org, err := d.store.OrganizationByTaxID(ctx, taxID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "lookup organization", err)
	}
	if org == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "organization with tax id %s not found", taxID)
	}
	if d.cache != nil {
		d.cache.Set(ctx, org)
	}
	return org, nil
}

// ResolveRoute returns the route with the external code inside the organization.
// A route with the same code owned by another organization does not match.
func (d *Directory) ResolveRoute(ctx context.Context, organizationID uuid.UUID, code string) (*models.Route, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.New(apperr.KindValidation, "route code is required")
	}
	if organizationID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "organization id is required")
	}
	route, err := d.store.RouteByCode(ctx, organizationID, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "lookup route", err)
	}
	if route == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "route with code %s not found for organization %s", code, organizationID)
	}
	return route, nil
}

// ResolveBus returns the bus with the plate number inside the organization, ignoring case.
func (d *Directory) ResolveBus(ctx context.Context, organizationID uuid.UUID, plate string) (*models.Bus, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, apperr.New(apperr.KindValidation, "plate number is required")
	}
	if organizationID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "organization id is required")
	}
	bus, err := d.store.BusByPlate(ctx, organizationID, plate)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "lookup bus", err)
	}
	if bus == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "bus with plate number %s not found for organization %s", plate, organizationID)
	}
	return bus, nil
}
