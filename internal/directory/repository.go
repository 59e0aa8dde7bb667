package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

// Repository is the Postgres Store.
type Repository struct {
	db       database.DBTX
	lockRows bool
}

// NewRepository creates a directory repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// NewLockingRepository creates a repository whose bus lookups take FOR UPDATE. Use it inside a transaction.
func NewLockingRepository(tx pgx.Tx) *Repository {
	return &Repository{db: tx, lockRows: true}
}

// OrganizationByTaxID implements Store. Tax ids are assumed unique; the oldest match wins otherwise.
func (r *Repository) OrganizationByTaxID(ctx context.Context, taxID string) (*models.Organization, error) {
	const q = `SELECT id, name, COALESCE(slug, ''), logo, tax_id, metadata, created_at, updated_at
		FROM organizations WHERE tax_id = $1 ORDER BY created_at LIMIT 1`
	var org models.Organization
	err := r.db.QueryRow(ctx, q, taxID).Scan(&org.ID, &org.Name, &org.Slug, &org.Logo, &org.TaxID, &org.Metadata, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// RouteByCode implements Store.
func (r *Repository) RouteByCode(ctx context.Context, organizationID uuid.UUID, code string) (*models.Route, error) {
	const q = `SELECT id, route_code, name, description, mode, organization_id, created_at, updated_at
		FROM routes WHERE organization_id = $1 AND route_code = $2`
	var rt models.Route
	err := r.db.QueryRow(ctx, q, organizationID, code).Scan(&rt.ID, &rt.Code, &rt.Name, &rt.Description, &rt.Mode, &rt.OrganizationID, &rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// BusByPlate implements Store.
func (r *Repository) BusByPlate(ctx context.Context, organizationID uuid.UUID, plate string) (*models.Bus, error) {
	q := `SELECT id, plate_number, description, organization_id, route_id, created_at, updated_at
		FROM buses WHERE organization_id = $1 AND UPPER(plate_number) = $2
		ORDER BY created_at LIMIT 1`
	if r.lockRows {
		q += ` FOR UPDATE`
	}
	var b models.Bus
	err := r.db.QueryRow(ctx, q, organizationID, models.NormalizePlate(plate)).Scan(&b.ID, &b.PlateNumber, &b.Description, &b.OrganizationID, &b.RouteID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
