package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/observability/metrics"
)

const (
	pendingPrefix  = "pending:"
	consumedMarker = "consumed"
)

// consumeScript flips a nonce pending for the given purpose to consumed in one
// step. KEEPTTL leaves the key's expiry untouched so consumed markers still age out.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'KEEPTTL')
return 1
`)

// NonceStoreOptions groups dependencies for NonceStore.
type NonceStoreOptions struct {
	Client  redis.UniversalClient
	TTL     time.Duration
	Prefix  string
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NonceStore keeps SSO nonces in Redis. Expiry is enforced by key TTL.
type NonceStore struct {
	client  redis.UniversalClient
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewNonceStore constructs a NonceStore. TTL defaults to ten minutes.
func NewNonceStore(opts NonceStoreOptions) *NonceStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "sso:nonce:"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NonceStore{
		client:  opts.Client,
		ttl:     ttl,
		prefix:  prefix,
		metrics: opts.Metrics,
		logger:  logger.With("component", "nonce_store", "backend", "redis"),
		now:     time.Now,
	}
}

// Issue mints and stores a pending nonce.
func (s *NonceStore) Issue(ctx context.Context, purpose domainauth.Purpose) (domainauth.Nonce, error) {
	if !purpose.Valid() {
		s.metrics.NonceOp(metrics.OpIssue, metrics.ResultError)
		return domainauth.Nonce{}, fmt.Errorf("unknown nonce purpose %q", purpose)
	}
	value, err := domainauth.NewNonceValue()
	if err != nil {
		s.metrics.NonceOp(metrics.OpIssue, metrics.ResultError)
		return domainauth.Nonce{}, err
	}

	now := s.now()
	n := domainauth.Nonce{
		Value:     value,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	ok, err := s.client.SetNX(ctx, s.prefix+value, pendingPrefix+string(purpose), s.ttl).Result()
	if err != nil {
		s.metrics.NonceOp(metrics.OpIssue, metrics.ResultError)
		return domainauth.Nonce{}, fmt.Errorf("redis store nonce: %w", err)
	}
	if !ok {
		s.metrics.NonceOp(metrics.OpIssue, metrics.ResultError)
		return domainauth.Nonce{}, errors.New("nonce collision")
	}

	s.metrics.NonceOp(metrics.OpIssue, metrics.ResultSuccess)
	return n, nil
}

// Consume atomically redeems a nonce pending for purpose.
func (s *NonceStore) Consume(ctx context.Context, value string, purpose domainauth.Purpose) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		s.metrics.NonceOp(metrics.OpConsume, metrics.ResultRejected)
		return false, nil
	}

	res, err := consumeScript.Run(ctx, s.client, []string{s.prefix + value}, pendingPrefix+string(purpose), consumedMarker).Int()
	if err != nil {
		s.metrics.NonceOp(metrics.OpConsume, metrics.ResultError)
		return false, fmt.Errorf("redis consume nonce: %w", err)
	}
	if res != 1 {
		s.metrics.NonceOp(metrics.OpConsume, metrics.ResultRejected)
		s.logger.DebugContext(ctx, "nonce rejected", "purpose", purpose)
		return false, nil
	}

	s.metrics.NonceOp(metrics.OpConsume, metrics.ResultSuccess)
	return true, nil
}
