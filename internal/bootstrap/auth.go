package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/ssogate/config"
	"github.com/target/ssogate/internal/adapters/authroles"
	"github.com/target/ssogate/internal/adapters/devauth"
	redisadapter "github.com/target/ssogate/internal/adapters/redis"
	"github.com/target/ssogate/internal/adapters/sso"
	"github.com/target/ssogate/internal/data"
	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/ports"
	"github.com/target/ssogate/internal/service"
)

// AuthConfig contains dependencies for the login flow.
type AuthConfig struct {
	App         *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// BuildAuthService wires the login flow: nonce store, verifier, provisioning,
// role sync and sessions.
func BuildAuthService(cfg AuthConfig) (*service.AuthService, error) {
	if cfg.App == nil {
		return nil, errors.New("app config is required")
	}
	if cfg.DB == nil {
		return nil, errors.New("database is required for users and roles")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client is required for sessions")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := cfg.App.Auth

	nonces, err := buildNonceStore(cfg)
	if err != nil {
		return nil, err
	}

	var verifier ports.SsoVerifier
	if auth.SSO.Enabled {
		v, verr := sso.NewVerifier(sso.Config{
			ProviderURL: auth.SSO.URL,
			Secret:      auth.SSO.Secret,
			Nonces:      nonces,
			Logger:      logger,
		})
		if verr != nil {
			return nil, fmt.Errorf("create sso verifier: %w", verr)
		}
		verifier = v
	} else {
		logger.Warn("sso provider disabled; logins will be refused")
	}

	fakeUser, err := buildFakeUser(cfg.App, logger)
	if err != nil {
		return nil, err
	}

	users, err := service.NewUserProvisioner(service.UserProvisionerOptions{
		Users:  data.NewUserRepo(cfg.DB),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create user provisioner: %w", err)
	}
	roles, err := service.NewRoleSynchronizer(service.RoleSynchronizerOptions{
		Roles:  data.NewRoleRepo(cfg.DB),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create role synchronizer: %w", err)
	}
	sessions, err := service.NewSessionManager(service.SessionManagerOptions{
		Sessions: redisadapter.NewSessionStoreWithPrefix(cfg.RedisClient, "session:"),
		TTL:      auth.Session.TTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Config: service.AuthFlowConfig{
			SSOEnabled:      auth.SSO.Enabled,
			ProviderURL:     auth.SSO.URL,
			DevMode:         cfg.App.IsDev,
			FakeUserEnabled: auth.FakeUser.Enabled,
		},
		Verifier:  verifier,
		Nonces:    nonces,
		Redirects: domainauth.NewRedirectResolver(cfg.App.HTTP.BaseURL),
		Users:     users,
		Roles:     roles,
		Sessions:  sessions,
		Mapper:    authroles.NewMapper(auth.AllowedRoles),
		FakeUser:  fakeUser,
		Metrics:   cfg.Metrics,
		Logger:    logger,
	})
}

//nolint:ireturn // the backend is chosen at runtime.
func buildNonceStore(cfg AuthConfig) (ports.NonceStore, error) {
	nonce := cfg.App.Auth.Nonce
	switch nonce.Backend {
	case config.NonceBackendPostgres:
		return data.NewNonceRepo(data.NonceRepoOptions{
			DB:      cfg.DB,
			TTL:     nonce.TTL,
			Metrics: cfg.Metrics,
		}), nil
	case config.NonceBackendRedis, "":
		return redisadapter.NewNonceStore(redisadapter.NonceStoreOptions{
			Client:  cfg.RedisClient,
			TTL:     nonce.TTL,
			Metrics: cfg.Metrics,
			Logger:  cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown nonce backend %q", nonce.Backend)
	}
}

// buildFakeUser returns nil unless the override is enabled. Outside dev mode
// the provider is still built so the flow can refuse it explicitly.
//
//nolint:ireturn // nil means "no fake user".
func buildFakeUser(app *config.AppConfig, logger *slog.Logger) (ports.FakeUserProvider, error) {
	fake := app.Auth.FakeUser
	if !fake.Enabled {
		return nil, nil
	}
	prov, err := devauth.NewProvider(devauth.Config{
		Username: fake.Username,
		Email:    fake.Email,
		Name:     fake.Name,
		Roles:    fake.Roles,
	})
	if err != nil {
		return nil, fmt.Errorf("create fake user provider: %w", err)
	}
	if !app.IsDev {
		logger.Warn("fake user configured outside dev mode; it will be refused")
	} else {
		logger.Warn("fake user login enabled", "username", fake.Username)
	}
	return prov, nil
}
