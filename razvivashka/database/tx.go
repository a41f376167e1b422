package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	txMaxAttempts = 3
	txBaseBackoff = 25 * time.Millisecond
)

// ErrConcurrencyConflict is returned after a contended transaction exhausts
// its retries. Transient: callers should prompt the user to try again.
var ErrConcurrencyConflict = errors.New("transaction aborted by write contention")

// RunInTx executes fn inside a transaction and retries it up to
// txMaxAttempts times with doubling backoff when the store rejects the
// commit under write contention. Any other error aborts immediately and the
// transaction rolls back, including on context cancellation.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return RunInTx(ctx, db.bunDB, fn)
}

// RunInTx is the handle-independent variant used by tests running on sqlite.
//
// On PostgreSQL transactions run SERIALIZABLE: overlapping read-modify-write
// transactions (done counts toward a milestone, subscription window
// extensions) abort with SQLSTATE 40001 instead of committing on stale reads,
// and the abort is retried here. SQLite already serializes writers and its
// driver rejects explicit isolation levels, so it keeps the default.
func RunInTx(ctx context.Context, bunDB *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	opts := txOptions(bunDB)
	backoff := txBaseBackoff
	var lastErr error

	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err := bunDB.RunInTx(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if !isContentionError(err) {
			return err
		}
		lastErr = err
		if attempt == txMaxAttempts {
			break
		}

		slog.Warn("Transaction contention, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return errors.Join(ErrConcurrencyConflict, lastErr)
}

func txOptions(bunDB *bun.DB) *sql.TxOptions {
	if bunDB.Dialect().Name() == dialect.SQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

// isContentionError recognizes serialization failures and deadlocks from
// PostgreSQL, and lock contention from the sqlite test driver.
func isContentionError(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
