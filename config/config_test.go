package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
		},
		{
			name:  "single service - scheduler",
			input: "scheduler",
			expected: map[ServiceMode]bool{
				ServiceModeScheduler: true,
			},
		},
		{
			name:  "all services",
			input: "http,scheduler,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeScheduler: true,
				ServiceModeReaper:    true,
			},
		},
		{
			name:  "services with spaces",
			input: " http , scheduler ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeScheduler: true,
			},
		},
		{
			name:  "duplicate services",
			input: "http,http,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,invalid-service",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_SSO_ENABLED", "true")
	t.Setenv("AUTH_SSO_SECRET", "changeme")
	t.Setenv("AUTH_SSO_URL", "https://auth.example.com/")
	t.Setenv("AUTH_NONCE_TTL", "5m")
	t.Setenv("AUTH_NONCE_BACKEND", "postgres")
	t.Setenv("AUTH_SESSION_TTL", "2h")
	t.Setenv("AUTH_FAKE_USER_ENABLED", "true")
	t.Setenv("AUTH_FAKE_USER_ROLES", "admin;moderator")
	t.Setenv("AUTH_ALLOWED_ROLES", "admin;moderator;user")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		SSO: SSOConfig{
			Enabled: true,
			Secret:  "changeme",
			URL:     "https://auth.example.com/",
		},
		Nonce:   NonceConfig{TTL: 5 * time.Minute, Backend: NonceBackendPostgres},
		Session: SessionConfig{TTL: 2 * time.Hour},
		FakeUser: FakeUserConfig{
			Enabled:  true,
			Username: "paper",
			Email:    "paper@example.com",
			Name:     "Paper",
			Roles:    []string{"admin", "moderator"},
		},
		AllowedRoles: []string{"admin", "moderator", "user"},
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}

	cfg.Sanitize()
	if cfg.Auth.SSO.URL != "https://auth.example.com" {
		t.Fatalf("expected trailing slash to be trimmed, got %q", cfg.Auth.SSO.URL)
	}
}

func TestAppConfig_ParseInvalidNonceBackend(t *testing.T) {
	t.Setenv("AUTH_NONCE_BACKEND", "memcached")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected error for invalid nonce backend")
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Homepage.UpdateInterval != 10*time.Minute {
		t.Errorf("expected 10m homepage interval, got %v", cfg.Homepage.UpdateInterval)
	}
	if cfg.Auth.Nonce.Backend != NonceBackendRedis {
		t.Errorf("expected redis nonce backend, got %q", cfg.Auth.Nonce.Backend)
	}
	if cfg.Auth.Nonce.TTL != 10*time.Minute {
		t.Errorf("expected 10m nonce ttl, got %v", cfg.Auth.Nonce.TTL)
	}
	if cfg.HTTP.BaseURL != "http://localhost:8080" {
		t.Errorf("unexpected base url %q", cfg.HTTP.BaseURL)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		wantErr bool
	}{
		{
			name: "valid",
			cfg: AppConfig{
				Services: "http",
				Auth:     AuthConfig{SSO: SSOConfig{Enabled: true, Secret: "s"}},
			},
		},
		{
			name: "sso disabled without secret",
			cfg: AppConfig{
				Services: "http",
				Auth:     AuthConfig{SSO: SSOConfig{Enabled: false}},
			},
		},
		{
			name: "sso enabled without secret",
			cfg: AppConfig{
				Services: "http",
				Auth:     AuthConfig{SSO: SSOConfig{Enabled: true, Secret: "  "}},
			},
			wantErr: true,
		},
		{
			name: "reaper with redis nonces",
			cfg: AppConfig{
				Services: "http,reaper",
				Auth:     AuthConfig{Nonce: NonceConfig{Backend: NonceBackendRedis}},
			},
			wantErr: true,
		},
		{
			name: "reaper with postgres nonces",
			cfg: AppConfig{
				Services: "reaper",
				Auth:     AuthConfig{Nonce: NonceConfig{Backend: NonceBackendPostgres}},
			},
		},
		{
			name:    "invalid services",
			cfg:     AppConfig{Services: "bogus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name              string
		services          string
		expectedHTTP      bool
		expectedScheduler bool
		expectedReaper    bool
	}{
		{name: "default - http only", services: "http", expectedHTTP: true},
		{name: "http and scheduler", services: "http,scheduler", expectedHTTP: true, expectedScheduler: true},
		{name: "reaper only", services: "reaper", expectedReaper: true},
		{name: "invalid", services: "invalid-service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v", tt.expectedHTTP)
			}
			if cfg.IsSchedulerEnabled() != tt.expectedScheduler {
				t.Errorf("IsSchedulerEnabled(): expected %v", tt.expectedScheduler)
			}
			if cfg.IsReaperEnabled() != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v", tt.expectedReaper)
			}
		})
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{Interval: time.Second, NonceGrace: -time.Minute, BatchSize: 50000}
	cfg.Sanitize()

	if cfg.Interval != time.Minute {
		t.Errorf("expected interval clamp to 1m, got %v", cfg.Interval)
	}
	if cfg.NonceGrace != 0 {
		t.Errorf("expected grace clamp to 0, got %v", cfg.NonceGrace)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("expected batch clamp to 10000, got %d", cfg.BatchSize)
	}
}
