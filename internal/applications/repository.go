// Package applications manages validator devices registered by dashboard users.
package applications

import (
	"context"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

const selectColumns = `SELECT id, device_id, description, user_id, created_at, updated_at FROM applications`

// Repository handles application persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an applications repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts an application.
func (r *Repository) Create(ctx context.Context, app *models.Application) error {
	const q = `INSERT INTO applications (id, device_id, description, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, q, app.ID, app.DeviceID, app.Description, app.UserID).Scan(&app.CreatedAt, &app.UpdatedAt)
	return database.Classify(err, "application")
}

// GetByID returns an application by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var a models.Application
	err := r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id).
		Scan(&a.ID, &a.DeviceID, &a.Description, &a.UserID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, "application")
	}
	return &a, nil
}

// List returns applications, optionally only those registered by userID, newest first.
func (r *Repository) List(ctx context.Context, userID string) ([]models.Application, error) {
	rows, err := r.db.Query(ctx, selectColumns+` WHERE ($1 = '' OR user_id = $1) ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, database.Classify(err, "application")
	}
	defer rows.Close()
	list := []models.Application{}
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Description, &a.UserID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Update writes the device id and description.
func (r *Repository) Update(ctx context.Context, app *models.Application) error {
	const q = `UPDATE applications SET device_id = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, app.ID, app.DeviceID, app.Description).Scan(&app.UpdatedAt)
	return database.Classify(err, "application")
}

// Delete removes an application.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	return database.Affected(tag, err, "application")
}
