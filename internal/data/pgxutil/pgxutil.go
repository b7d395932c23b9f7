// Package pgxutil holds transaction helpers shared by the Postgres repositories.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLTxConfig groups parameters for WithSQLTx.
type SQLTxConfig struct {
	Opts *sql.TxOptions
	Fn   func(*sql.Tx) error
}

// WithSQLTx runs cfg.Fn inside a transaction, committing when it returns nil
// and rolling back otherwise.
func WithSQLTx(ctx context.Context, db *sql.DB, cfg SQLTxConfig) (err error) {
	if cfg.Fn == nil {
		return errors.New("transaction func is required")
	}
	tx, err := db.BeginTx(ctx, cfg.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()
	if err = cfg.Fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AdvisoryKey identifies a transaction-scoped advisory lock by its two int4 halves.
type AdvisoryKey struct {
	Major int32
	Minor int32
}

// TryXactLock attempts pg_try_advisory_xact_lock inside tx. The lock is
// released when tx ends. It returns false when another session holds it.
func TryXactLock(ctx context.Context, tx *sql.Tx, key AdvisoryKey) (bool, error) {
	var locked bool
	if err := tx.QueryRowContext(ctx,
		"SELECT pg_try_advisory_xact_lock($1, $2)", key.Major, key.Minor,
	).Scan(&locked); err != nil {
		return false, fmt.Errorf("acquire advisory lock %d/%d: %w", key.Major, key.Minor, err)
	}
	return locked, nil
}
