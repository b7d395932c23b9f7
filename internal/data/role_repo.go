package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/target/ssogate/internal/data/pgxutil"
	domainauth "github.com/target/ssogate/internal/domain/auth"
	apperrors "github.com/target/ssogate/internal/errors"
	"github.com/target/ssogate/internal/ports"
)

// RoleRepo stores global role grants in user_global_roles.
type RoleRepo struct {
	DB *sql.DB
}

var _ ports.RoleRepository = (*RoleRepo)(nil)

// NewRoleRepo creates a new RoleRepo.
func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{DB: db}
}

// ReplaceGlobalRoles swaps the user's grants for grants inside one transaction.
// The user row is locked FOR UPDATE first so concurrent syncs for the same user
// serialize; readers keep seeing the previous set until commit.
func (r *RoleRepo) ReplaceGlobalRoles(ctx context.Context, userID int64, grants []domainauth.RoleGrant) error {
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked int64
			if err := tx.QueryRowContext(ctx,
				`SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID,
			).Scan(&locked); err != nil {
				return fmt.Errorf("lock user %d: %w", userID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`DELETE FROM user_global_roles WHERE user_id = $1`, userID,
			); err != nil {
				return fmt.Errorf("clear global roles: %w", err)
			}

			for _, g := range grants {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO user_global_roles (user_id, role_id, accepted) VALUES ($1, $2, $3)`,
					userID, string(g.RoleID), g.Accepted,
				); err != nil {
					return fmt.Errorf("insert global role %q: %w", g.RoleID, err)
				}
			}
			return nil
		},
	})
	return apperrors.MapDBError(err)
}

// ListGlobalRoles returns the user's grants ordered by role id.
func (r *RoleRepo) ListGlobalRoles(ctx context.Context, userID int64) ([]domainauth.RoleGrant, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT role_id, accepted FROM user_global_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list global roles: %w", err))
	}
	defer rows.Close()

	grants := make([]domainauth.RoleGrant, 0)
	for rows.Next() {
		var (
			roleID   string
			accepted bool
		)
		if err := rows.Scan(&roleID, &accepted); err != nil {
			return nil, fmt.Errorf("scan global role: %w", err)
		}
		grants = append(grants, domainauth.RoleGrant{RoleID: domainauth.Role(roleID), Accepted: accepted})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate global roles: %w", err)
	}
	return grants, nil
}
