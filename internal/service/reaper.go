package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/ssogate/config"
	obserrors "github.com/target/ssogate/internal/observability/errors"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/ports"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    ports.NoncePurger   // Required: nonce repository
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics *metrics.Metrics    // Optional
	Now     func() time.Time    // Optional, for tests
}

// ReaperService deletes nonces that expired more than NonceGrace ago.
type ReaperService struct {
	repo    ports.NoncePurger
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("NoncePurger is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"nonce_grace", opts.Config.NonceGrace,
		"batch_size", opts.Config.BatchSize,
	)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Jitter keeps replicas started together from purging in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.Purge(ctx); err != nil {
		s.logCleanupError(err, "initial nonce purge")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.Purge(ctx); err != nil {
				s.logCleanupError(err, "nonce purge")
			}
		}
	}
}

// Purge deletes expired nonces in batches until none remain, returning the
// number removed.
func (s *ReaperService) Purge(ctx context.Context) (int64, error) {
	start := time.Now()
	before := s.now().Add(-s.config.NonceGrace)

	var total int64
	for {
		count, err := s.repo.PurgeExpired(ctx, before, s.config.BatchSize)
		total += count
		if err != nil {
			s.emitPurgeMetrics(total, err, time.Since(start))
			return total, fmt.Errorf("purge expired nonces: %w", err)
		}
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			s.emitPurgeMetrics(total, ctx.Err(), time.Since(start))
			return total, ctx.Err()
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "purged expired nonces",
			"count", total,
			"before", before,
		)
	}
	s.emitPurgeMetrics(total, nil, time.Since(start))
	return total, nil
}

func (s *ReaperService) emitPurgeMetrics(count int64, err error, elapsed time.Duration) {
	result := metrics.ResultSuccess
	switch {
	case isContextCancellation(err):
		return
	case err != nil:
		result = metrics.ResultError
	case count == 0:
		result = metrics.ResultNoop
	}
	s.metrics.NonceOp(metrics.OpPurge, result)
	s.metrics.JobRun("nonce-reaper", result, elapsed)
	s.metrics.ReaperPurged(count)
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err, "error_class", obserrors.Classify(err))
}
