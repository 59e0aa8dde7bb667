// Package audit records and lists the actions taken on fleet data.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/database"
)

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

// Entry builds an audit entry stamped with now.
func Entry(actorID string, action models.AuditAction, metadata string, now time.Time) *models.AuditLog {
	return &models.AuditLog{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    action,
		Metadata:  metadata,
		TimeStamp: now,
		CreatedAt: now,
	}
}

// Repository handles audit_logs persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an audit repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Record inserts an audit entry. A missing id or timestamp is filled in.
func (r *Repository) Record(ctx context.Context, e *models.AuditLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.TimeStamp.IsZero() {
		e.TimeStamp = time.Now().UTC()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.TimeStamp
	}
	const q = `INSERT INTO audit_logs (id, actor_id, action, metadata, application_id, time_stamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.Exec(ctx, q, e.ID, e.ActorID, e.Action, e.Metadata, e.ApplicationID, e.TimeStamp, e.CreatedAt); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListFilter narrows List. Zero fields are unconstrained.
type ListFilter struct {
	ActorID string
	Action  models.AuditAction
	Limit   int
}

// List returns audit entries, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	const q = `SELECT id, actor_id, action, metadata, application_id, time_stamp, created_at
		FROM audit_logs
		WHERE ($1 = '' OR actor_id = $1) AND ($2 = '' OR action = $2)
		ORDER BY time_stamp DESC
		LIMIT $3`
	rows, err := r.db.Query(ctx, q, f.ActorID, string(f.Action), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.Metadata, &l.ApplicationID, &l.TimeStamp, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Note records an entry for a dashboard action. A failed write is logged and does not fail the action.
func Note(ctx context.Context, rec Recorder, logger *zap.Logger, actorID string, action models.AuditAction, metadata string) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, Entry(actorID, action, metadata, time.Now().UTC())); err != nil && logger != nil {
		logger.Warn("audit write failed", zap.String("action", string(action)), zap.String("metadata", metadata), zap.Error(err))
	}
}
