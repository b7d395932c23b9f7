package devauth

// Package devauth provides a config-driven fake identity for local development logins.

import (
	"errors"
	"fmt"

	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/ports"
)

// Config controls the fake identity.
// Username and Email are required; Roles may be empty.
type Config struct {
	Username string
	Email    string
	Name     string
	Roles    []string
}

// Provider implements ports.FakeUserProvider. Every call returns the same
// configured identity, granting each configured role.
type Provider struct {
	identity domainauth.AuthUser
}

var _ ports.FakeUserProvider = (*Provider)(nil)

// NewProvider constructs a dev identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Username == "" {
		return nil, errors.New("dev auth: Username is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}

	grants := make([]domainauth.RoleGrant, 0, len(cfg.Roles))
	for _, raw := range cfg.Roles {
		role, ok := domainauth.ParseRole(raw)
		if !ok {
			return nil, fmt.Errorf("dev auth: invalid role %q", raw)
		}
		grants = append(grants, domainauth.RoleGrant{RoleID: role, Accepted: true})
	}

	return &Provider{
		identity: domainauth.AuthUser{
			ExternalID: "dev-" + cfg.Username,
			Username:   cfg.Username,
			Email:      cfg.Email,
			Name:       cfg.Name,
			Roles:      grants,
		},
	}, nil
}

// Identity returns a copy of the configured identity.
func (p *Provider) Identity() domainauth.AuthUser {
	id := p.identity
	id.Roles = append([]domainauth.RoleGrant(nil), p.identity.Roles...)
	return id
}
