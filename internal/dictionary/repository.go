package dictionary

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

// Repository is the Postgres Store. It must be bound to a transaction.
type Repository struct {
	*audit.Repository
	tx pgx.Tx
}

// NewRepository binds a dictionary store to tx.
func NewRepository(tx pgx.Tx) *Repository {
	return &Repository{Repository: audit.NewRepository(tx), tx: tx}
}

// Lock implements Store.
func (r *Repository) Lock(ctx context.Context, dictionary string) error {
	return database.AdvisoryXactLock(ctx, r.tx, "dictionary:"+dictionary)
}

// ExistingPlates implements Store.
func (r *Repository) ExistingPlates(ctx context.Context, plates []string) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT DISTINCT UPPER(plate_number) FROM buses WHERE UPPER(plate_number) = ANY($1)`, plates)
	if err != nil {
		return nil, err
	}
	return collectSet(rows)
}

// InsertBuses implements Store.
func (r *Repository) InsertBuses(ctx context.Context, buses []models.Bus) error {
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"buses"},
		[]string{"id", "plate_number", "description", "organization_id", "route_id", "created_at", "updated_at"},
		pgx.CopyFromSlice(len(buses), func(i int) ([]any, error) {
			b := buses[i]
			return []any{b.ID, b.PlateNumber, b.Description, b.OrganizationID, b.RouteID, b.CreatedAt, b.UpdatedAt}, nil
		}))
	return err
}

// ExistingRoutes implements Store.
func (r *Repository) ExistingRoutes(ctx context.Context, keys []RouteKey) (map[RouteKey]bool, error) {
	orgIDs := make([]uuid.UUID, len(keys))
	codes := make([]string, len(keys))
	for i, k := range keys {
		orgIDs[i], codes[i] = k.OrganizationID, k.Code
	}
	const q = `SELECT r.organization_id, r.route_code
		FROM routes r
		JOIN unnest($1::uuid[], $2::text[]) AS k(organization_id, route_code)
			ON r.organization_id = k.organization_id AND r.route_code = k.route_code`
	rows, err := r.tx.Query(ctx, q, orgIDs, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[RouteKey]bool)
	for rows.Next() {
		var k RouteKey
		if err := rows.Scan(&k.OrganizationID, &k.Code); err != nil {
			return nil, err
		}
		out[k] = true
	}
	return out, rows.Err()
}

// InsertRoutes implements Store.
func (r *Repository) InsertRoutes(ctx context.Context, routes []models.Route) error {
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"routes"},
		[]string{"id", "route_code", "name", "description", "mode", "organization_id", "created_at", "updated_at"},
		pgx.CopyFromSlice(len(routes), func(i int) ([]any, error) {
			rt := routes[i]
			return []any{rt.ID, rt.Code, rt.Name, rt.Description, string(rt.Mode), rt.OrganizationID, rt.CreatedAt, rt.UpdatedAt}, nil
		}))
	return err
}

// ExistingCards implements Store.
func (r *Repository) ExistingCards(ctx context.Context, cardIDs []string) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT DISTINCT card_id FROM access_cards WHERE card_id = ANY($1)`, cardIDs)
	if err != nil {
		return nil, err
	}
	return collectSet(rows)
}

// InsertCards implements Store.
func (r *Repository) InsertCards(ctx context.Context, cards []models.AccessCard) error {
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"access_cards"},
		[]string{"id", "card_id", "name_on_card", "card_type", "card_status", "organization_id", "created_at", "updated_at"},
		pgx.CopyFromSlice(len(cards), func(i int) ([]any, error) {
			c := cards[i]
			return []any{c.ID, c.CardID, c.NameOnCard, string(c.CardType), string(c.CardStatus), c.OrganizationID, c.CreatedAt, c.UpdatedAt}, nil
		}))
	return err
}

func collectSet(rows pgx.Rows) (map[string]bool, error) {
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}

// PgTransactor runs syncs inside a pool transaction.
type PgTransactor struct {
	pool *pgxpool.Pool
}

// NewPgTransactor creates a transactor over pool.
func NewPgTransactor(pool *pgxpool.Pool) *PgTransactor {
	return &PgTransactor{pool: pool}
}

// WithinTx implements Transactor.
func (t *PgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	return database.WithTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewRepository(tx))
	})
}
