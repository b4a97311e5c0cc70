package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"

	"github.com/api-sage/bank-ledger-core/internal/domain"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

func parseDialect(driver string) (dialect, error) {
	switch driver {
	case "sqlite":
		return dialectSQLite, nil
	case "postgres":
		return dialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported driver %q", driver)
}

func (d dialect) driverName() string {
	return string(d)
}

// rebind rewrites ? placeholders to $N for postgres. Queries in this package
// never reuse a parameter, so positional rewriting is sufficient.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate appends the row-lock clause where the engine needs one. SQLite
// already holds the database write lock for the whole immediate transaction.
func (d dialect) forUpdate(query string) string {
	if d == dialectPostgres {
		return query + " FOR UPDATE"
	}
	return query
}

// mapError classifies driver errors into the domain taxonomy.
func (d dialect) mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	case isBusy(err):
		return fmt.Errorf("%s: %w", op, domain.ErrBusy)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		// SQLITE_CONSTRAINT and its extended codes.
		return sqErr.Code()&0xff == 19
	}
	return false
}

// isBusy reports lock contention that the caller may safely retry:
// SQLITE_BUSY/SQLITE_LOCKED after busy_timeout, postgres lock_not_available
// or deadlock_detected.
func isBusy(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case "55P03", "40P01", "40001":
			return true
		}
		return false
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		code := sqErr.Code() & 0xff
		return code == 5 || code == 6
	}
	return false
}

// errCorrupt wraps err as a storage-corruption failure. Corruption is fatal
// and never auto-repaired; it must surface distinctly so an operator steps in.
func errCorrupt(err error) error {
	if err == nil {
		return domain.ErrStorageCorruption
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageCorruption, err)
}
