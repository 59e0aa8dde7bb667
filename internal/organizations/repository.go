package organizations

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

const selectColumns = `SELECT id, name, COALESCE(slug, ''), logo, tax_id, metadata, created_at, updated_at FROM organizations`

// Repository handles organization persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an organizations repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create creates an organization.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	const q = `INSERT INTO organizations (id, name, slug, logo, tax_id, metadata)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING created_at, updated_at`
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, q, org.ID, org.Name, org.Slug, org.Logo, org.TaxID, nullJSON(org.Metadata)).
		Scan(&org.CreatedAt, &org.UpdatedAt)
	return database.Classify(err, "organization")
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	org, err := scanOrganization(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return nil, database.Classify(err, "organization")
	}
	return org, nil
}

// List returns organizations ordered by name, optionally only those with taxID.
func (r *Repository) List(ctx context.Context, taxID string) ([]models.Organization, error) {
	rows, err := r.db.Query(ctx, selectColumns+` WHERE ($1 = '' OR tax_id = $1) ORDER BY name`, taxID)
	if err != nil {
		return nil, database.Classify(err, "organization")
	}
	defer rows.Close()
	list := []models.Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *org)
	}
	return list, rows.Err()
}

// Update writes every mutable field of org.
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	const q = `UPDATE organizations
		SET name = $2, slug = NULLIF($3, ''), logo = $4, tax_id = $5, metadata = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, org.ID, org.Name, org.Slug, org.Logo, org.TaxID, nullJSON(org.Metadata)).Scan(&org.UpdatedAt)
	return database.Classify(err, "organization")
}

// Delete removes an organization and, through cascades, everything it owns.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	return database.Affected(tag, err, "organization")
}

func scanOrganization(row interface{ Scan(dest ...any) error }) (*models.Organization, error) {
	var o models.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.TaxID, &o.Metadata, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
