package config

import (
	"fmt"
	"strings"
	"time"
)

// NonceBackend selects where one-time SSO nonces are stored.
type NonceBackend string

const (
	// NonceBackendRedis stores nonces as expiring Redis keys.
	NonceBackendRedis NonceBackend = "redis"
	// NonceBackendPostgres stores nonces in the sso_nonces table (purged by the reaper).
	NonceBackendPostgres NonceBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for NonceBackend.
func (b *NonceBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "postgres":
		*b = NonceBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid NonceBackend: %q (valid options: redis, postgres)", v)
	}
}

// SSOConfig describes the identity provider round trip.
type SSOConfig struct {
	// Enabled turns the provider on. When false every login, verify and
	// signup attempt degrades to a "login unavailable" alert.
	Enabled bool `env:"ENABLED" envDefault:"true"`

	// Secret is the shared HMAC-SHA256 key used to sign payloads in both directions.
	Secret string `env:"SECRET"`

	// URL is the provider base URL (e.g., "https://auth.example.com").
	URL string `env:"URL" envDefault:"http://localhost:8000"`
}

// NonceConfig controls one-time nonce issuance.
type NonceConfig struct {
	TTL     time.Duration `env:"TTL"     envDefault:"10m"`
	Backend NonceBackend  `env:"BACKEND" envDefault:"redis"`
}

// SessionConfig controls local session lifetime.
type SessionConfig struct {
	TTL time.Duration `env:"TTL" envDefault:"8h"`
}

// FakeUserConfig controls the development identity override.
// Used when AUTH_FAKE_USER_ENABLED=true and DEV=true.
type FakeUserConfig struct {
	Enabled  bool     `env:"ENABLED"  envDefault:"false"`
	Username string   `env:"USERNAME" envDefault:"paper"`
	Email    string   `env:"EMAIL"    envDefault:"paper@example.com"`
	Name     string   `env:"NAME"     envDefault:"Paper"`
	Roles    []string `env:"ROLES"    envDefault:"admin" envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	SSO      SSOConfig      `envPrefix:"SSO_"`
	Nonce    NonceConfig    `envPrefix:"NONCE_"`
	Session  SessionConfig  `envPrefix:"SESSION_"`
	FakeUser FakeUserConfig `envPrefix:"FAKE_USER_"`

	// AllowedRoles optionally restricts which IdP-asserted global roles are stored.
	// Empty means every well-formed role asserted by the provider is accepted.
	AllowedRoles []string `env:"ALLOWED_ROLES" envSeparator:";"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	a.SSO.URL = strings.TrimRight(strings.TrimSpace(a.SSO.URL), "/")
	if a.Nonce.TTL < 30*time.Second {
		a.Nonce.TTL = 30 * time.Second
	}
	if a.Nonce.Backend == "" {
		a.Nonce.Backend = NonceBackendRedis
	}
	if a.Session.TTL < time.Minute {
		a.Session.TTL = time.Minute
	}
}
