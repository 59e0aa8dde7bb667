// Package accesscards manages passenger access cards.
package accesscards

import (
	"context"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

const selectColumns = `SELECT id, card_id, name_on_card, card_type, card_status, organization_id, created_at, updated_at FROM access_cards`

// Filter narrows List. Zero fields are unconstrained.
type Filter struct {
	OrganizationID uuid.UUID
	CardID         string
}

// Repository handles access card persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an access cards repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a card.
func (r *Repository) Create(ctx context.Context, card *models.AccessCard) error {
	const q = `INSERT INTO access_cards (id, card_id, name_on_card, card_type, card_status, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, q, card.ID, card.CardID, card.NameOnCard, card.CardType, card.CardStatus, card.OrganizationID).
		Scan(&card.CreatedAt, &card.UpdatedAt)
	return database.Classify(err, "access card")
}

// GetByID returns a card by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessCard, error) {
	card, err := scanCard(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return nil, database.Classify(err, "access card")
	}
	return card, nil
}

// List returns cards matching f ordered by card id.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.AccessCard, error) {
	const where = ` WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organization_id = $1)
		AND ($2 = '' OR card_id = $2)
		ORDER BY card_id`
	rows, err := r.db.Query(ctx, selectColumns+where, f.OrganizationID, f.CardID)
	if err != nil {
		return nil, database.Classify(err, "access card")
	}
	defer rows.Close()
	list := []models.AccessCard{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *card)
	}
	return list, rows.Err()
}

// Update writes every mutable field of card.
func (r *Repository) Update(ctx context.Context, card *models.AccessCard) error {
	const q = `UPDATE access_cards
		SET card_id = $2, name_on_card = $3, card_type = $4, card_status = $5, organization_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, card.ID, card.CardID, card.NameOnCard, card.CardType, card.CardStatus, card.OrganizationID).
		Scan(&card.UpdatedAt)
	return database.Classify(err, "access card")
}

// Delete removes a card.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM access_cards WHERE id = $1`, id)
	return database.Affected(tag, err, "access card")
}

func scanCard(row interface{ Scan(dest ...any) error }) (*models.AccessCard, error) {
	var c models.AccessCard
	if err := row.Scan(&c.ID, &c.CardID, &c.NameOnCard, &c.CardType, &c.CardStatus, &c.OrganizationID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
