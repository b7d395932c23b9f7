package errors

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError converts a repository error into an *AppError:
//
//   - sql.ErrNoRows / pgx.ErrNoRows become NotFound
//   - context deadline and cancellation become Timeout and Canceled
//   - unique violations become Conflict
//   - check and NOT NULL violations become Validation
//   - any other PgError becomes Internal
//
// Errors that did not come from the database are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "database call timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "database call canceled")
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "not found")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	var mapped *AppError
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		mapped = Wrap(err, ErrCodeConflict, "already exists")
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		mapped = Wrap(err, ErrCodeValidation, "invalid value")
	default:
		return Wrap(err, ErrCodeInternal, "database error")
	}
	mapped.Field = pgErr.ColumnName
	return mapped
}
