package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  ErrorCode
		field string
	}{
		{"no rows", sql.ErrNoRows, ErrCodeNotFound, ""},
		{"pgx no rows", pgx.ErrNoRows, ErrCodeNotFound, ""},
		{"wrapped no rows", fmt.Errorf("get user %q: %w", "alice", sql.ErrNoRows), ErrCodeNotFound, ""},
		{"deadline", fmt.Errorf("consume nonce: %w", context.DeadlineExceeded), ErrCodeTimeout, ""},
		{"canceled", context.Canceled, ErrCodeCanceled, ""},
		{
			"unique",
			&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "sso_nonces_pkey"},
			ErrCodeConflict, "",
		},
		{
			"not null",
			fmt.Errorf("insert user: %w", &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "email"}),
			ErrCodeValidation, "email",
		},
		{
			"check",
			&pgconn.PgError{Code: pgerrcode.CheckViolation, ColumnName: "purpose"},
			ErrCodeValidation, "purpose",
		},
		{
			"other pg error",
			&pgconn.PgError{Code: pgerrcode.UndefinedTable},
			ErrCodeInternal, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapDBError(tt.err)
			if code := GetCode(got); code != tt.code {
				t.Fatalf("GetCode() = %q, want %q", code, tt.code)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("mapped error lost its cause %v", tt.err)
			}
			var appErr *AppError
			if errors.As(got, &appErr) && appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestMapDBError_PassThrough(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v", err)
	}
	plain := errors.New("dial tcp: connection refused")
	if got := MapDBError(plain); got != plain {
		t.Errorf("MapDBError(plain) = %v, want the original error", got)
	}
}
