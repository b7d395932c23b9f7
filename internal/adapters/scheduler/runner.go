// Package scheduler provides adapters for running the homepage refresh scheduler.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/ssogate/internal/data"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/ports"
	"github.com/target/ssogate/internal/service"
)

// Runner wires the Postgres maintenance repository into a RefreshScheduler
// and runs it until the context is cancelled.
type Runner struct {
	scheduler *service.RefreshScheduler
	logger    *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB       *sql.DB
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	// Optional dependency injections for testing/decoupling
	Homepage ports.HomepageRefresher
	Stats    ports.StatsProcessor
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	homepage, stats := wireMaintenance(opts)
	sched, err := service.NewRefreshScheduler(service.RefreshSchedulerOptions{
		Homepage: homepage,
		Stats:    stats,
		Interval: opts.Interval,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire refresh scheduler: %w", err)
	}

	return &Runner{scheduler: sched, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && (opts.Homepage == nil || opts.Stats == nil) {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

func wireMaintenance(opts RunnerOptions) (ports.HomepageRefresher, ports.StatsProcessor) {
	var repo *data.MaintenanceRepo
	if opts.Homepage == nil || opts.Stats == nil {
		repo = data.NewMaintenanceRepo(opts.DB)
	}
	homepage, stats := opts.Homepage, opts.Stats
	if homepage == nil {
		homepage = repo
	}
	if stats == nil {
		stats = repo
	}
	return homepage, stats
}

// Scheduler exposes the underlying scheduler for on-demand runs.
func (r *Runner) Scheduler() *service.RefreshScheduler {
	return r.scheduler
}

// Run starts the scheduler and blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner")
	return r.scheduler.Run(ctx)
}
