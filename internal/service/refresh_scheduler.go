package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	obserrors "github.com/target/ssogate/internal/observability/errors"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/ports"
	"golang.org/x/sync/singleflight"
)

// Job names understood by RefreshScheduler.
const (
	JobRefreshHomeProjects = "refresh-home-projects"
	JobUpdateStats         = "update-stats"
)

// DefaultRefreshInterval is used when RefreshSchedulerOptions.Interval is zero.
const DefaultRefreshInterval = 10 * time.Minute

// ErrUnknownJob is returned by RunNow for a name with no registered job.
var ErrUnknownJob = errors.New("unknown job")

// RefreshSchedulerOptions groups dependencies for RefreshScheduler.
type RefreshSchedulerOptions struct {
	Homepage ports.HomepageRefresher // Required
	Stats    ports.StatsProcessor    // Required
	Interval time.Duration           // Optional, defaults to DefaultRefreshInterval
	Metrics  *metrics.Metrics        // Optional
	Logger   *slog.Logger            // Optional
}

type refreshJob func(ctx context.Context) error

// RefreshScheduler runs the homepage and statistics upkeep jobs on a fixed
// interval. Overlapping runs of the same job share one execution.
type RefreshScheduler struct {
	interval time.Duration
	jobs     map[string]refreshJob
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRefreshScheduler constructs a RefreshScheduler.
func NewRefreshScheduler(opts RefreshSchedulerOptions) (*RefreshScheduler, error) {
	if opts.Homepage == nil {
		return nil, errors.New("HomepageRefresher is required")
	}
	if opts.Stats == nil {
		return nil, errors.New("StatsProcessor is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &RefreshScheduler{
		interval: interval,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "refresh_scheduler"),
	}
	s.jobs = map[string]refreshJob{
		JobRefreshHomeProjects: opts.Homepage.RefreshHomeProjects,
		JobUpdateStats: func(ctx context.Context) error {
			return s.updateStats(ctx, opts.Stats)
		},
	}
	return s, nil
}

// Jobs lists the registered job names in sorted order.
func (s *RefreshScheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run schedules every job and blocks until ctx is cancelled, then waits for
// in-flight runs to finish. Returns nil on graceful shutdown.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	c := cron.New()
	spec := "@every " + s.interval.String()
	for _, name := range s.Jobs() {
		jobName := name
		if _, err := c.AddFunc(spec, func() { s.trigger(ctx, jobName) }); err != nil {
			return fmt.Errorf("schedule %s: %w", jobName, err)
		}
	}

	s.logger.InfoContext(ctx, "starting refresh scheduler", "interval", s.interval, "jobs", s.Jobs())
	c.Start()

	<-ctx.Done()
	s.logger.InfoContext(ctx, "refresh scheduler stopping", "reason", ctx.Err())
	<-c.Stop().Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// RunNow runs the named job immediately. A run already in flight for the same
// job is joined rather than duplicated. Each run is bounded by the interval.
func (s *RefreshScheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	ch := s.group.DoChan(name, func() (any, error) {
		// The run is shared, so one caller giving up must not cancel it for the rest.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.interval)
		defer cancel()
		return nil, s.execute(runCtx, name, job)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trigger is the cron entry point; failures are logged and counted only.
func (s *RefreshScheduler) trigger(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	_ = s.RunNow(ctx, name)
}

func (s *RefreshScheduler) execute(ctx context.Context, name string, job refreshJob) error {
	start := time.Now()
	err := job(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.JobRun(name, metrics.ResultSuccess, elapsed)
		s.logger.DebugContext(ctx, "job completed", "job", name, "duration", elapsed)
		return nil
	case errors.Is(err, ports.ErrMaintenanceObjectMissing):
		s.metrics.JobRun(name, metrics.ResultNoop, elapsed)
		s.logger.InfoContext(ctx, "job skipped", "job", name, "reason", err)
		return nil
	case isContextCancellation(err):
		s.logger.DebugContext(ctx, "job cancelled", "job", name, "error", err)
		return err
	default:
		s.metrics.JobRun(name, metrics.ResultError, elapsed)
		s.logger.ErrorContext(ctx, "job failed",
			"job", name,
			"error", err,
			"error_class", obserrors.Classify(err),
			"duration", elapsed,
		)
		return err
	}
}

// updateStats folds project views then version downloads. A missing procedure
// skips only its own half.
func (s *RefreshScheduler) updateStats(ctx context.Context, stats ports.StatsProcessor) error {
	viewsErr := stats.ProcessProjectViews(ctx)
	if isContextCancellation(viewsErr) {
		return viewsErr
	}
	downloadsErr := stats.ProcessVersionDownloads(ctx)

	var errs []error
	skipped := 0
	for _, err := range []error{viewsErr, downloadsErr} {
		switch {
		case err == nil:
		case errors.Is(err, ports.ErrMaintenanceObjectMissing):
			skipped++
			s.logger.DebugContext(ctx, "stats step skipped", "reason", err)
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if skipped == 2 {
		return fmt.Errorf("update stats: %w", ports.ErrMaintenanceObjectMissing)
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
