package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/target/ssogate/internal/data/pgxutil"
	domainauth "github.com/target/ssogate/internal/domain/auth"
	apperrors "github.com/target/ssogate/internal/errors"
	"github.com/target/ssogate/internal/observability/metrics"
	"github.com/target/ssogate/internal/ports"
)

// Major key 2000 is reserved for reaper operations.
var purgeNonceLock = pgxutil.AdvisoryKey{Major: 2000, Minor: 1}

// NonceRepoOptions groups dependencies for NonceRepo.
type NonceRepoOptions struct {
	DB           *sql.DB
	TTL          time.Duration
	TimeProvider TimeProvider
	Metrics      *metrics.Metrics
}

// NonceRepo is the Postgres-backed NonceStore.
type NonceRepo struct {
	DB           *sql.DB
	ttl          time.Duration
	timeProvider TimeProvider
	metrics      *metrics.Metrics
}

var (
	_ ports.NonceStore  = (*NonceRepo)(nil)
	_ ports.NoncePurger = (*NonceRepo)(nil)
)

// NewNonceRepo creates a NonceRepo. TTL defaults to ten minutes.
func NewNonceRepo(opts NonceRepoOptions) *NonceRepo {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &NonceRepo{DB: opts.DB, ttl: ttl, timeProvider: tp, metrics: opts.Metrics}
}

// Issue inserts a pending nonce.
func (r *NonceRepo) Issue(ctx context.Context, purpose domainauth.Purpose) (domainauth.Nonce, error) {
	value, err := domainauth.NewNonceValue()
	if err != nil {
		r.metrics.NonceOp(metrics.OpIssue, metrics.ResultError)
		return domainauth.Nonce{}, err
	}

	now := r.timeProvider.Now().UTC()
	n := domainauth.Nonce{
		Value:     value,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}

	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO sso_nonces (value, purpose, issued_at, expires_at) VALUES ($1, $2, $3, $4)`,
		n.Value, string(n.Purpose), n.IssuedAt, n.ExpiresAt,
	); err != nil {
		r.metrics.NonceOp(metrics.OpIssue, metrics.ResultError)
		return domainauth.Nonce{}, apperrors.MapDBError(fmt.Errorf("insert nonce: %w", err))
	}

	r.metrics.NonceOp(metrics.OpIssue, metrics.ResultSuccess)
	return n, nil
}

// Consume redeems a nonce issued for purpose with a single conditional UPDATE.
func (r *NonceRepo) Consume(ctx context.Context, value string, purpose domainauth.Purpose) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		r.metrics.NonceOp(metrics.OpConsume, metrics.ResultRejected)
		return false, nil
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE sso_nonces
		SET consumed_at = now()
		WHERE value = $1
		  AND purpose = $2
		  AND consumed_at IS NULL
		  AND expires_at > now()
	`, value, string(purpose))
	if err != nil {
		r.metrics.NonceOp(metrics.OpConsume, metrics.ResultError)
		return false, apperrors.MapDBError(fmt.Errorf("consume nonce: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		r.metrics.NonceOp(metrics.OpConsume, metrics.ResultError)
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		r.metrics.NonceOp(metrics.OpConsume, metrics.ResultRejected)
		return false, nil
	}
	r.metrics.NonceOp(metrics.OpConsume, metrics.ResultSuccess)
	return true, nil
}

// PurgeExpired deletes up to batch nonces that expired before the cutoff.
// An advisory lock keeps concurrent reaper instances from overlapping; a
// reaper that loses the lock purges nothing.
func (r *NonceRepo) PurgeExpired(ctx context.Context, before time.Time, batch int) (int64, error) {
	if batch <= 0 {
		return 0, nil
	}

	var purged int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryXactLock(ctx, tx, purgeNonceLock)
			if err != nil || !locked {
				return err
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM sso_nonces
				WHERE value IN (
					SELECT value FROM sso_nonces
					WHERE expires_at < $1
					ORDER BY expires_at
					LIMIT $2
				)
			`, before.UTC(), batch)
			if err != nil {
				return fmt.Errorf("purge expired nonces: %w", err)
			}
			purged, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		r.metrics.NonceOp(metrics.OpPurge, metrics.ResultError)
		return 0, apperrors.MapDBError(err)
	}
	r.metrics.NonceOp(metrics.OpPurge, metrics.ResultSuccess)
	return purged, nil
}
