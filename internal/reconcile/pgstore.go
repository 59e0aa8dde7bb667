package reconcile

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/buses"
	"github.com/bbus-fleet/backend/internal/directory"
	"github.com/bbus-fleet/backend/internal/timeslots"
	"github.com/bbus-fleet/backend/pkg/database"
)

type pgUnitOfWork struct {
	tx pgx.Tx
}

// Directory locks the resolved bus row until commit.
func (u pgUnitOfWork) Directory() directory.Store { return directory.NewLockingRepository(u.tx) }
func (u pgUnitOfWork) TimeSlots() timeslots.Store { return timeslots.NewRepository(u.tx) }
func (u pgUnitOfWork) Buses() BusAssigner         { return buses.NewRepository(u.tx) }
func (u pgUnitOfWork) Audit() audit.Recorder      { return audit.NewRepository(u.tx) }

// PgTransactor runs reconciliations inside a pool transaction.
type PgTransactor struct {
	pool *pgxpool.Pool
}

// NewPgTransactor creates a transactor over pool.
func NewPgTransactor(pool *pgxpool.Pool) *PgTransactor {
	return &PgTransactor{pool: pool}
}

// WithinTx implements Transactor.
func (t *PgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	return database.WithTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgUnitOfWork{tx: tx})
	})
}
