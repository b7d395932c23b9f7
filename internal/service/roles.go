package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/ports"
)

// RoleSynchronizerOptions groups dependencies for RoleSynchronizer.
type RoleSynchronizerOptions struct {
	Roles  ports.RoleRepository // Required
	Logger *slog.Logger         // Optional
}

// RoleSynchronizer makes a user's stored global roles equal to the set
// asserted by the identity provider.
type RoleSynchronizer struct {
	roles  ports.RoleRepository
	logger *slog.Logger
}

// NewRoleSynchronizer constructs a RoleSynchronizer.
func NewRoleSynchronizer(opts RoleSynchronizerOptions) (*RoleSynchronizer, error) {
	if opts.Roles == nil {
		return nil, errors.New("RoleRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleSynchronizer{
		roles:  opts.Roles,
		logger: logger.With("component", "role_synchronizer"),
	}, nil
}

// Sync replaces the user's global role grants with grants. Duplicate role ids
// collapse into one grant that is accepted if any duplicate was.
func (s *RoleSynchronizer) Sync(ctx context.Context, userID int64, grants []domainauth.RoleGrant) error {
	if userID <= 0 {
		return fmt.Errorf("sync roles: invalid user id %d", userID)
	}
	set := dedupeGrants(grants)
	if err := s.roles.ReplaceGlobalRoles(ctx, userID, set); err != nil {
		return fmt.Errorf("sync roles for user %d: %w", userID, err)
	}
	s.logger.DebugContext(ctx, "synchronized global roles", "user_id", userID, "count", len(set))
	return nil
}

// GlobalRoles returns the user's stored global role grants.
func (s *RoleSynchronizer) GlobalRoles(ctx context.Context, userID int64) ([]domainauth.RoleGrant, error) {
	grants, err := s.roles.ListGlobalRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles for user %d: %w", userID, err)
	}
	return grants, nil
}

func dedupeGrants(grants []domainauth.RoleGrant) []domainauth.RoleGrant {
	out := make([]domainauth.RoleGrant, 0, len(grants))
	index := make(map[domainauth.Role]int, len(grants))
	for _, g := range grants {
		if g.RoleID == "" {
			continue
		}
		if i, ok := index[g.RoleID]; ok {
			out[i].Accepted = out[i].Accepted || g.Accepted
			continue
		}
		index[g.RoleID] = len(out)
		out = append(out, g)
	}
	return out
}
