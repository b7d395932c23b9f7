package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/ssogate/config"
	"github.com/target/ssogate/internal/adapters/reaper"
	schedrunner "github.com/target/ssogate/internal/adapters/scheduler"
	"github.com/target/ssogate/internal/observability/metrics"
)

// SchedulerConfig contains configuration for the refresh scheduler.
type SchedulerConfig struct {
	DB       *sql.DB
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// NewSchedulerRunner builds the refresh scheduler over the Postgres
// maintenance repository. The same runner backs the cron loop and the admin
// job endpoint so both share one in-flight run per job.
func NewSchedulerRunner(cfg SchedulerConfig) (*schedrunner.Runner, error) {
	runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		DB:       cfg.DB,
		Interval: cfg.Interval,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create scheduler runner: %w", err)
	}
	return runner, nil
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics *metrics.Metrics
}

// RunReaper starts the nonce reaper and blocks until ctx is cancelled.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
