package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	apperrors "github.com/target/ssogate/internal/errors"
	"github.com/target/ssogate/internal/ports"
)

// UserProvisionerOptions groups dependencies for UserProvisioner.
type UserProvisionerOptions struct {
	Users  ports.UserRepository // Required
	Logger *slog.Logger         // Optional
}

// UserProvisioner ensures an authenticated identity has a local user record.
// Existing records are returned unchanged; the provider's profile is only
// copied in on first login.
type UserProvisioner struct {
	users  ports.UserRepository
	logger *slog.Logger
}

// NewUserProvisioner constructs a UserProvisioner.
func NewUserProvisioner(opts UserProvisionerOptions) (*UserProvisioner, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserProvisioner{
		users:  opts.Users,
		logger: logger.With("component", "user_provisioner"),
	}, nil
}

// GetOrCreate returns the user named username, creating it from claims when absent.
// Concurrent first logins for the same username resolve to a single record.
func (p *UserProvisioner) GetOrCreate(
	ctx context.Context,
	username string,
	claims domainauth.AuthUser,
) (domainauth.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domainauth.User{}, apperrors.ValidationField("username", "username is required")
	}

	user, err := p.users.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !apperrors.IsNotFound(err) {
		return domainauth.User{}, fmt.Errorf("lookup user %q: %w", username, err)
	}

	user, created, err := p.users.CreateIfAbsent(ctx, domainauth.User{
		ExternalID: claims.ExternalID,
		Username:   username,
		Email:      claims.Email,
		Name:       claims.Name,
	})
	if err != nil {
		return domainauth.User{}, fmt.Errorf("create user %q: %w", username, err)
	}
	if created {
		p.logger.InfoContext(ctx, "provisioned user", "user_id", user.ID, "username", username)
	}
	return user, nil
}
