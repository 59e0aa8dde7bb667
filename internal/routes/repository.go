// Package routes manages operated lines and their external route codes.
package routes

import (
	"context"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

const selectColumns = `SELECT id, route_code, name, description, mode, organization_id, created_at, updated_at FROM routes`

// Filter narrows List. Zero fields are unconstrained.
type Filter struct {
	OrganizationID uuid.UUID
	Code           string
}

// Repository handles route persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a routes repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a route.
func (r *Repository) Create(ctx context.Context, rt *models.Route) error {
	const q = `INSERT INTO routes (id, route_code, name, description, mode, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, q, rt.ID, rt.Code, rt.Name, rt.Description, rt.Mode, rt.OrganizationID).
		Scan(&rt.CreatedAt, &rt.UpdatedAt)
	return database.Classify(err, "route")
}

// GetByID returns a route by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	rt, err := scanRoute(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return nil, database.Classify(err, "route")
	}
	return rt, nil
}

// List returns routes matching f ordered by code.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Route, error) {
	const where = ` WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organization_id = $1)
		AND ($2 = '' OR route_code = $2)
		ORDER BY route_code`
	rows, err := r.db.Query(ctx, selectColumns+where, f.OrganizationID, f.Code)
	if err != nil {
		return nil, database.Classify(err, "route")
	}
	defer rows.Close()
	list := []models.Route{}
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rt)
	}
	return list, rows.Err()
}

// Update writes every mutable field of rt.
func (r *Repository) Update(ctx context.Context, rt *models.Route) error {
	const q = `UPDATE routes
		SET route_code = $2, name = $3, description = $4, mode = $5, organization_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, rt.ID, rt.Code, rt.Name, rt.Description, rt.Mode, rt.OrganizationID).Scan(&rt.UpdatedAt)
	return database.Classify(err, "route")
}

// Delete removes a route.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	return database.Affected(tag, err, "route")
}

func scanRoute(row interface{ Scan(dest ...any) error }) (*models.Route, error) {
	var rt models.Route
	if err := row.Scan(&rt.ID, &rt.Code, &rt.Name, &rt.Description, &rt.Mode, &rt.OrganizationID, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
		return nil, err
	}
	return &rt, nil
}
