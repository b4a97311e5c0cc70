// Package sqldb implements the repository interfaces on database/sql.
//
// Two backends share the implementation: an embedded SQLite file (default)
// and Postgres. Correctness across concurrent short-lived processes comes
// from the database itself: SQLite runs every mutating call in an immediate
// transaction whose write lock serializes writers across processes, with
// busy_timeout bounding the wait; Postgres takes row locks with
// SELECT ... FOR UPDATE in ascending account-number order under a
// lock_timeout. Reads run lock-free against the last committed snapshot.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/api-sage/bank-ledger-core/internal/logger"
)

type Store struct {
	db          *sql.DB
	dialect     dialect
	lockTimeout time.Duration
}

// Open connects to the configured backend, applies pending migrations and
// returns the store. driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string, lockTimeout time.Duration) (*Store, error) {
	d, err := parseDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", driver, err)
	}

	if d == dialectSQLite {
		// A single connection keeps the immediate-transaction write lock
		// semantics simple; concurrency comes from other processes.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, dialect: d, lockTimeout: lockTimeout}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside one transaction and rolls back on any error, so a
// failed multi-step mutation leaves durable state exactly as before.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.dialect.mapError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if s.dialect == dialectPostgres {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, timeout); err != nil {
			return s.dialect.mapError("set lock timeout", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("sqldb commit failed", err, nil)
		return s.dialect.mapError("commit transaction", err)
	}

	return nil
}

// nextSequence advances a durable monotonic counter inside the caller's
// transaction. Values are never reused, even across restarts.
func (s *Store) nextSequence(ctx context.Context, tx *sql.Tx, name string) (uint64, error) {
	query := s.dialect.rebind(`UPDATE counters SET value = value + 1 WHERE name = ? RETURNING value`)

	var value int64
	if err := tx.QueryRowContext(ctx, query, name).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("counter %q missing: %w", name, errCorrupt(nil))
		}
		return 0, s.dialect.mapError(fmt.Sprintf("advance counter %q", name), err)
	}

	return uint64(value), nil
}
