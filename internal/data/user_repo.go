package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	apperrors "github.com/target/ssogate/internal/errors"
	"github.com/target/ssogate/internal/ports"
)

// UserRepo persists local user identities in Postgres.
type UserRepo struct {
	DB *sql.DB
}

var _ ports.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userColumns = `id, COALESCE(external_id, ''), username, email, name, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (domainauth.User, error) {
	var u domainauth.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.Name, &u.CreatedAt)
	return u, err
}

// GetByUsername returns the user with the given username or a not_found AppError.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (domainauth.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return domainauth.User{}, apperrors.MapDBError(fmt.Errorf("get user %q: %w", username, err))
	}
	return u, nil
}

// CreateIfAbsent inserts u unless its username is taken. When a row already
// exists, the stored row is returned unchanged with created=false.
func (r *UserRepo) CreateIfAbsent(ctx context.Context, u domainauth.User) (domainauth.User, bool, error) {
	if strings.TrimSpace(u.Username) == "" {
		return domainauth.User{}, false, apperrors.ValidationField("username", "username is required")
	}

	created, err := scanUser(r.DB.QueryRowContext(ctx, `
		INSERT INTO users (external_id, username, email, name)
		VALUES (NULLIF($1, ''), $2, $3, $4)
		ON CONFLICT (username) DO NOTHING
		RETURNING `+userColumns,
		u.ExternalID, u.Username, u.Email, u.Name,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domainauth.User{}, false, apperrors.MapDBError(fmt.Errorf("insert user: %w", err))
	}

	// A concurrent insert won; read the winner.
	existing, err := r.GetByUsername(ctx, u.Username)
	if err != nil {
		return domainauth.User{}, false, err
	}
	return existing, false, nil
}
