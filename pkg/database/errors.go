package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bbus-fleet/backend/pkg/apperr"
)

// Classify maps driver errors onto apperr kinds. what names the entity for the message.
func Classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, what+" not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperr.Wrap(apperr.KindConflict, what+" already exists", err)
		case "23503":
			return apperr.Wrap(apperr.KindValidation, what+" references an unknown entity", err)
		case "23514", "22P02":
			return apperr.Wrap(apperr.KindValidation, what+" has an invalid value", err)
		}
	}
	return apperr.Wrap(apperr.KindInternal, what+" storage error", err)
}

// Affected classifies an Exec result, reporting not found when no row matched.
func Affected(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return Classify(err, what)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, what+" not found")
	}
	return nil
}
