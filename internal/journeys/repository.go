package journeys

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

const detailQuery = `SELECT
		j.id, j.journey_timestamp, j.latitude, j.longitude, COALESCE(j.status, ''),
		j.access_card_id, j.bus_id, j.route_id, j.application_id, j.created_at,
		c.id, c.card_id, c.name_on_card, c.card_type, c.card_status, c.organization_id, c.created_at, c.updated_at,
		b.id, b.plate_number, b.description, b.organization_id, b.route_id, b.created_at, b.updated_at,
		r.id, r.route_code, r.name, r.description, r.mode, r.organization_id, r.created_at, r.updated_at,
		a.id, a.device_id, a.description, a.user_id, a.created_at, a.updated_at
	FROM journeys j
	JOIN access_cards c ON c.id = j.access_card_id
	JOIN buses b ON b.id = j.bus_id
	JOIN routes r ON r.id = j.route_id
	JOIN applications a ON a.id = j.application_id`

// Repository handles journeys persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a journeys repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create appends a journey.
func (r *Repository) Create(ctx context.Context, j *models.Journey) error {
	const q = `INSERT INTO journeys (id, journey_timestamp, latitude, longitude, status, access_card_id, bus_id, route_id, application_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
		RETURNING created_at`
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, q, j.ID, j.Timestamp, j.Latitude, j.Longitude, string(j.Status),
		j.AccessCardID, j.BusID, j.RouteID, j.ApplicationID).Scan(&j.CreatedAt)
	return database.Classify(err, "journey")
}

// GetByID returns one journey with its related entities.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.JourneyDetail, error) {
	d, err := scanDetail(r.db.QueryRow(ctx, detailQuery+` WHERE j.id = $1`, id))
	if err != nil {
		return nil, database.Classify(err, "journey")
	}
	return d, nil
}

// ListDetailed returns journeys within the optional inclusive bounds ordered by timestamp.
func (r *Repository) ListDetailed(ctx context.Context, from, to *time.Time) ([]models.JourneyDetail, error) {
	const where = ` WHERE ($1::timestamptz IS NULL OR j.journey_timestamp >= $1)
		AND ($2::timestamptz IS NULL OR j.journey_timestamp <= $2)
		ORDER BY j.journey_timestamp, j.id`
	rows, err := r.db.Query(ctx, detailQuery+where, from, to)
	if err != nil {
		return nil, database.Classify(err, "journey")
	}
	defer rows.Close()
	list := []models.JourneyDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

func scanDetail(row interface{ Scan(dest ...any) error }) (*models.JourneyDetail, error) {
	var (
		d      models.JourneyDetail
		status string
	)
	c, b, rt, a := &d.AccessCard, &d.Bus, &d.Route, &d.Application
	err := row.Scan(
		&d.ID, &d.Timestamp, &d.Latitude, &d.Longitude, &status,
		&d.AccessCardID, &d.BusID, &d.RouteID, &d.ApplicationID, &d.CreatedAt,
		&c.ID, &c.CardID, &c.NameOnCard, &c.CardType, &c.CardStatus, &c.OrganizationID, &c.CreatedAt, &c.UpdatedAt,
		&b.ID, &b.PlateNumber, &b.Description, &b.OrganizationID, &b.RouteID, &b.CreatedAt, &b.UpdatedAt,
		&rt.ID, &rt.Code, &rt.Name, &rt.Description, &rt.Mode, &rt.OrganizationID, &rt.CreatedAt, &rt.UpdatedAt,
		&a.ID, &a.DeviceID, &a.Description, &a.UserID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = models.JourneyStatus(status)
	return &d, nil
}
