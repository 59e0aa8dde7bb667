package timeslots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

const selectColumns = `SELECT id, route_id, route_code, starts_at, ends_at, order_external_id, bus_id, created_at, updated_at FROM time_slots`

// Repository is the Postgres Store.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a time slot repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// LockOrder implements Store.
func (r *Repository) LockOrder(ctx context.Context, orderExternalID string) error {
	return database.AdvisoryXactLock(ctx, r.db, "time_slots:"+orderExternalID)
}

// GetByOrderID implements Store.
func (r *Repository) GetByOrderID(ctx context.Context, orderExternalID string) (*models.TimeSlot, error) {
	row := r.db.QueryRow(ctx, selectColumns+` WHERE order_external_id = $1`, orderExternalID)
	s, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Insert implements Store.
func (r *Repository) Insert(ctx context.Context, s *models.TimeSlot) error {
	const q = `INSERT INTO time_slots (id, route_id, route_code, starts_at, ends_at, order_external_id, bus_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, q, s.ID, s.RouteID, s.RouteCode, s.StartsAt, s.EndsAt, s.OrderExternalID, s.BusID, s.CreatedAt, s.UpdatedAt)
	return err
}

// Update implements Store. It replaces every field except id, order id and created_at.
func (r *Repository) Update(ctx context.Context, s *models.TimeSlot) error {
	const q = `UPDATE time_slots SET route_id = $2, route_code = $3, starts_at = $4, ends_at = $5, bus_id = $6, updated_at = $7
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, s.ID, s.RouteID, s.RouteCode, s.StartsAt, s.EndsAt, s.BusID, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("time slot %s vanished during update", s.ID)
	}
	return nil
}

// List implements Store.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.TimeSlot, error) {
	var (
		where []string
		args  []any
	)
	if f.ID != uuid.Nil {
		args = append(args, f.ID)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	if f.RouteID != uuid.Nil {
		args = append(args, f.RouteID)
		where = append(where, fmt.Sprintf("route_id = $%d", len(args)))
	}
	q := selectColumns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY starts_at"

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.TimeSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// DeleteByIDs implements Store.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM time_slots WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSlot(row pgx.Row) (*models.TimeSlot, error) {
	var s models.TimeSlot
	if err := row.Scan(&s.ID, &s.RouteID, &s.RouteCode, &s.StartsAt, &s.EndsAt, &s.OrderExternalID, &s.BusID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// PgTransactor runs time slot work inside a pool transaction.
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
