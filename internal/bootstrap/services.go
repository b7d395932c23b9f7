package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/ssogate/config"
	schedrunner "github.com/target/ssogate/internal/adapters/scheduler"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/service"
	"golang.org/x/sync/errgroup"
)

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds the services shared by the enabled modes.
type ServiceContainer struct {
	Auth      *service.AuthService
	Jobs      *service.RefreshScheduler
	Scheduler *schedrunner.Runner
	Metrics   *metrics.Metrics
}

// ServiceDeps contains dependencies for NewServices.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds the services needed by the enabled modes.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	container := ServiceContainer{Metrics: metrics.New(nil)}

	if deps.DB != nil && (deps.Config.IsSchedulerEnabled() || deps.Config.IsHTTPServerEnabled()) {
		runner, err := NewSchedulerRunner(SchedulerConfig{
			DB:       deps.DB,
			Interval: deps.Config.Homepage.UpdateInterval,
			Logger:   logger,
			Metrics:  container.Metrics,
		})
		if err != nil {
			return ServiceContainer{}, err
		}
		container.Scheduler = runner
		container.Jobs = runner.Scheduler()
	}

	if deps.Config.IsHTTPServerEnabled() {
		auth, err := BuildAuthService(AuthConfig{
			App:         deps.Config,
			DB:          deps.DB,
			RedisClient: deps.RedisClient,
			Metrics:     container.Metrics,
			Logger:      logger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("build auth service: %w", err)
		}
		container.Auth = auth
	}

	return container, nil
}

// ServiceOrchestrationConfig contains everything RunServicesWithShutdown starts.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// backgroundService describes a startable component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	return []backgroundService{
		{
			mode: config.ServiceModeHTTP,
			name: "http server",
			start: func(ctx context.Context) error {
				return ServeHTTP(ctx, NewHTTPServer(&HTTPServerConfig{
					Config:      cfg.Config,
					Services:    cfg.Services,
					DB:          cfg.DB,
					RedisClient: cfg.RedisClient,
					Logger:      logger,
				}), logger)
			},
		},
		{
			mode: config.ServiceModeScheduler,
			name: "scheduler",
			start: func(ctx context.Context) error {
				if cfg.Services.Scheduler == nil {
					return errors.New("scheduler not configured")
				}
				return cfg.Services.Scheduler.Run(ctx)
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					DB:      cfg.DB,
					Logger:  logger,
					Config:  cfg.Config.Reaper,
					Metrics: cfg.Services.Metrics,
				})
			},
		},
	}
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or one of them fails. A failure cancels the rest.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServices(sigCtx, enabled, buildBackgroundServices(cfg, logger), logger)
}

func runServices(
	ctx context.Context,
	enabled map[config.ServiceMode]bool,
	services []backgroundService,
	logger *slog.Logger,
) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		if !enabled[svc.mode] {
			continue
		}
		g.Go(func() error {
			logger.InfoContext(gctx, "service started", "service", svc.name, "mode", svc.mode)
			if err := svc.start(gctx); err != nil {
				logger.ErrorContext(gctx, "service error", "service", svc.name, "error", err)
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.Info(svc.name + " stopped")
			return nil
		})
	}

	<-gctx.Done()
	if ctx.Err() != nil {
		logger.Info("shutting down services...")
	}
	return waitWithTimeout(g, logger)
}

// waitWithTimeout waits for the group, giving up after shutdownWaitTimeout.
func waitWithTimeout(g *errgroup.Group, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for services to stop")
		return errors.New("timed out waiting for services to stop")
	}
}
