package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/bbus-fleet/backend/pkg/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, apperr.KindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperr.KindValidation},
		{"check", &pgconn.PgError{Code: "23514"}, apperr.KindValidation},
		{"other", errors.New("conn closed"), apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(Classify(tt.err, "bus")))
		})
	}
	assert.NoError(t, Classify(nil, "bus"))
	assert.EqualError(t, Classify(pgx.ErrNoRows, "bus"), "bus not found")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestAffected(t *testing.T) {
	assert.NoError(t, Affected(pgconn.NewCommandTag("DELETE 1"), nil, "bus"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(Affected(pgconn.NewCommandTag("DELETE 0"), nil, "bus")))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(Affected(pgconn.CommandTag{}, errors.New("boom"), "bus")))
}
