package auth

// Package auth contains domain-level types for SSO authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"regexp"
	"strings"
	"time"
)

// Role identifies a global role asserted by the identity provider.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

var roleIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// ParseRole normalizes a role identifier and reports whether it is well formed.
func ParseRole(raw string) (Role, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if !roleIDPattern.MatchString(v) {
		return "", false
	}
	return Role(v), true
}

// RoleGrant is a (role, accepted) pair asserted by the IdP for one login.
type RoleGrant struct {
	RoleID   Role `json:"role_id"`
	Accepted bool `json:"accepted"`
}

// Purpose tags a provider round trip so the callback can be matched to its origin.
type Purpose string

const (
	PurposeLogin  Purpose = "login"
	PurposeSignup Purpose = "signup"
	PurposeVerify Purpose = "verify"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeSignup, PurposeVerify:
		return true
	default:
		return false
	}
}

// Nonce is a one-time token embedded in a provider URL.
type Nonce struct {
	Value     string
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Expired reports whether the nonce is past its time-to-live at now.
func (n Nonce) Expired(now time.Time) bool { return !now.Before(n.ExpiresAt) }

// AuthUser is the decoded, read-only result of verifying a provider callback.
// Adapters map provider-specific claims into this shape.
type AuthUser struct {
	ExternalID string
	Username   string
	Email      string
	Name       string
	AvatarURL  string
	Language   string
	Roles      []RoleGrant
}

// User is the persistent local identity, keyed by unique username.
type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id,omitempty"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []Role    `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRole reports whether the session carries the given global role.
func (s Session) HasRole(r Role) bool {
	for _, have := range s.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// AcceptedRoles returns the role ids of accepted grants, in order.
func AcceptedRoles(grants []RoleGrant) []Role {
	out := make([]Role, 0, len(grants))
	for _, g := range grants {
		if g.Accepted {
			out = append(out, g.RoleID)
		}
	}
	return out
}
