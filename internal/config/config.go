package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDataDir       = "data"
	defaultDriver        = "sqlite"
	defaultLockTimeoutMS = 5000
)

type Config struct {
	// DataDir holds the SQLite database and the log file.
	DataDir string
	// Driver selects the storage backend: "sqlite" (default) or "postgres".
	Driver string
	// DatabaseDSN overrides the derived SQLite DSN; required for postgres.
	DatabaseDSN string
	// LockTimeout bounds how long a mutating operation waits for the
	// exclusive lock before failing with a retryable Busy error.
	LockTimeout time.Duration
	// LogFile receives structured logs. Empty means <DataDir>/bank.log.
	LogFile string
}

func Load() (Config, error) {
	dataDir := strings.TrimSpace(os.Getenv("BANK_DATA_DIR"))
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("BANK_DB_DRIVER")))
	if driver == "" {
		driver = defaultDriver
	}
	if driver != "sqlite" && driver != "postgres" {
		return Config{}, fmt.Errorf("unsupported BANK_DB_DRIVER %q", driver)
	}

	lockTimeoutMS := defaultLockTimeoutMS
	if raw := strings.TrimSpace(os.Getenv("BANK_LOCK_TIMEOUT_MS")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid BANK_LOCK_TIMEOUT_MS %q", raw)
		}
		lockTimeoutMS = parsed
	}

	dsn := strings.TrimSpace(os.Getenv("BANK_DATABASE_DSN"))
	if dsn == "" {
		if driver == "postgres" {
			return Config{}, fmt.Errorf("BANK_DATABASE_DSN is required for the postgres driver")
		}
		dsn = sqliteDSN(filepath.Join(dataDir, "bank.db"), lockTimeoutMS)
	}

	logFile := strings.TrimSpace(os.Getenv("BANK_LOG_FILE"))
	if logFile == "" {
		logFile = filepath.Join(dataDir, "bank.log")
	}

	return Config{
		DataDir:     dataDir,
		Driver:      driver,
		DatabaseDSN: dsn,
		LockTimeout: time.Duration(lockTimeoutMS) * time.Millisecond,
		LogFile:     logFile,
	}, nil
}

// sqliteDSN configures the embedded store for many short-lived writers:
// WAL keeps readers on the last committed snapshot, busy_timeout makes lock
// acquisition fail fast instead of hanging, and immediate transactions take
// the write lock at BEGIN so every mutation serializes across processes.
func sqliteDSN(path string, lockTimeoutMS int) string {
	return fmt.Sprintf(
		"file:%s?_txlock=immediate&_time_format=sqlite&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(FULL)",
		path, lockTimeoutMS,
	)
}
