package sqldb

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/api-sage/bank-ledger-core/internal/logger"
)

//go:embed migrations
var embeddedMigrations embed.FS

// migrate applies pending migrations for the active dialect. Each migration
// runs in its own transaction and is recorded in schema_migrations.
func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	dir := path.Join("migrations", string(s.dialect))
	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		applied, err := s.isApplied(ctx, file)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		sqlBytes, err := fs.ReadFile(embeddedMigrations, path.Join(dir, file))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", file, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return s.dialect.mapError(fmt.Sprintf("begin tx for migration %q", file), err)
		}

		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %q: %w", file, err)
		}

		record := s.dialect.rebind(`INSERT INTO schema_migrations (version) VALUES (?)`)
		if _, err := tx.ExecContext(ctx, record, file); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %q: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return s.dialect.mapError(fmt.Sprintf("commit migration %q", file), err)
		}

		logger.Info("migration applied", logger.Fields{"version": file})
	}

	return nil
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}

func (s *Store) isApplied(ctx context.Context, version string) (bool, error) {
	query := s.dialect.rebind(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`)

	var count int
	if err := s.db.QueryRowContext(ctx, query, version).Scan(&count); err != nil {
		return false, fmt.Errorf("check migration %q status: %w", version, err)
	}

	return count > 0, nil
}
