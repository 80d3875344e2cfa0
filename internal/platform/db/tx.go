package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the ledger reacts to.
const (
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
	CodeUniqueViolation      = "23505"
)

// TxConfig tunes WithTxConfig.
type TxConfig struct {
	IsoLevel pgx.TxIsoLevel
	// Attempts bounds how often fn runs when the transaction fails with a
	// retryable error. Zero or one means a single run.
	Attempts int
	// Backoff is multiplied by the attempt number between runs.
	Backoff time.Duration
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return WithTxConfig(ctx, pool, TxConfig{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithTxConfig runs fn in a transaction at cfg.IsoLevel and reruns it from
// scratch while the failure is retryable and attempts remain. fn must not
// keep side effects outside the transaction between runs.
func WithTxConfig(ctx context.Context, pool *pgxpool.Pool, cfg TxConfig, fn func(pgx.Tx) error) error {
	return retry(ctx, cfg, func() error {
		return runTx(ctx, pool, cfg.IsoLevel, fn)
	})
}

func retry(ctx context.Context, cfg TxConfig, run func() error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && cfg.Backoff > 0 {
			timer := time.NewTimer(time.Duration(i) * cfg.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
		if err = run(); err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

func runTx(ctx context.Context, pool *pgxpool.Pool, iso pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// IsRetryable reports whether err left no partial effect and the whole
// transaction may be retried: serialization failures, deadlocks, lock
// timeouts and errors the driver marks safe to retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable:
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}

// UniqueViolation returns the violated constraint name when err is a
// unique_violation.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
