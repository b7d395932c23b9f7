package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/ssogate/internal/domain/auth"
)

// NonceStore issues one-time tokens and redeems them atomically.
type NonceStore interface {
	// Issue mints a random nonce, persisted as pending until its TTL elapses.
	Issue(ctx context.Context, purpose domainauth.Purpose) (domainauth.Nonce, error)

	// Consume marks value consumed if it exists, is pending, was issued for
	// purpose, and has not expired. Unknown, used, expired, and mismatched
	// nonces all return false with a nil error.
	Consume(ctx context.Context, value string, purpose domainauth.Purpose) (bool, error)
}

// SsoVerifier builds signed provider URLs and verifies provider callbacks.
type SsoVerifier interface {
	BuildSignedURL(returnURL string, purpose domainauth.Purpose, nonce string) (string, error)
	Verify(ctx context.Context, payload, signature string) (domainauth.AuthUser, error)
}

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// UserRepository persists local user identities.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (domainauth.User, error)
	// CreateIfAbsent inserts the user unless the username exists. created is false
	// when another writer got there first.
	CreateIfAbsent(ctx context.Context, u domainauth.User) (user domainauth.User, created bool, err error)
}

// RoleRepository stores global role grants per user.
type RoleRepository interface {
	// ReplaceGlobalRoles swaps the user's global grants for grants in one transaction.
	ReplaceGlobalRoles(ctx context.Context, userID int64, grants []domainauth.RoleGrant) error
	ListGlobalRoles(ctx context.Context, userID int64) ([]domainauth.RoleGrant, error)
}

// RoleMapper normalizes provider role grants into application grants.
type RoleMapper interface {
	Map(grants []domainauth.RoleGrant) []domainauth.RoleGrant
}

// FakeUserProvider supplies a preconfigured identity for development logins.
type FakeUserProvider interface {
	Identity() domainauth.AuthUser
}

// NoncePurger removes nonces that expired before a cutoff.
type NoncePurger interface {
	PurgeExpired(ctx context.Context, before time.Time, batch int) (int64, error)
}
