// Package buses manages vehicles and their current route assignment.
package buses

import (
	"context"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

const selectColumns = `SELECT id, plate_number, description, organization_id, route_id, created_at, updated_at FROM buses`

// Filter narrows List. Zero fields are unconstrained. Plate matches case-insensitively.
type Filter struct {
	OrganizationID uuid.UUID
	RouteID        uuid.UUID
	Plate          string
}

// Repository handles bus persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a buses repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a bus.
func (r *Repository) Create(ctx context.Context, b *models.Bus) error {
	const q = `INSERT INTO buses (id, plate_number, description, organization_id, route_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, q, b.ID, b.PlateNumber, b.Description, b.OrganizationID, b.RouteID).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	return database.Classify(err, "bus")
}

// GetByID returns a bus by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bus, error) {
	b, err := scanBus(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return nil, database.Classify(err, "bus")
	}
	return b, nil
}

// List returns buses matching f ordered by plate.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Bus, error) {
	const where = ` WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organization_id = $1)
		AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR route_id = $2)
		AND ($3 = '' OR UPPER(plate_number) = $3)
		ORDER BY plate_number`
	rows, err := r.db.Query(ctx, selectColumns+where, f.OrganizationID, f.RouteID, models.NormalizePlate(f.Plate))
	if err != nil {
		return nil, database.Classify(err, "bus")
	}
	defer rows.Close()
	list := []models.Bus{}
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

// UpdateDetails writes the plate number and description. The route assignment is not touched.
func (r *Repository) UpdateDetails(ctx context.Context, b *models.Bus) error {
	const q = `UPDATE buses SET plate_number = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING organization_id, route_id, created_at, updated_at`
	err := r.db.QueryRow(ctx, q, b.ID, b.PlateNumber, b.Description).
		Scan(&b.OrganizationID, &b.RouteID, &b.CreatedAt, &b.UpdatedAt)
	return database.Classify(err, "bus")
}

// AssignCurrent points the bus at routeID and organizationID and returns the updated row.
// Order reconciliation is the only caller.
func (r *Repository) AssignCurrent(ctx context.Context, busID, routeID, organizationID uuid.UUID) (*models.Bus, error) {
	const q = `UPDATE buses SET route_id = $2, organization_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, plate_number, description, organization_id, route_id, created_at, updated_at`
	b, err := scanBus(r.db.QueryRow(ctx, q, busID, routeID, organizationID))
	if err != nil {
		return nil, database.Classify(err, "bus")
	}
	return b, nil
}

// Delete removes a bus.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM buses WHERE id = $1`, id)
	return database.Affected(tag, err, "bus")
}

func scanBus(row interface{ Scan(dest ...any) error }) (*models.Bus, error) {
	var b models.Bus
	if err := row.Scan(&b.ID, &b.PlateNumber, &b.Description, &b.OrganizationID, &b.RouteID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
