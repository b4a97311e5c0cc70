// Command bank is the ledger core behind the HTTP gateway. Each invocation
// performs exactly one operation: arguments are positional, structured
// results are JSON on stdout, errors go to stderr with a kind-specific
// non-zero exit status. Concurrent invocations serialize through the store,
// never through in-process state.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/api-sage/bank-ledger-core/internal/config"
	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/logger"
	"github.com/api-sage/bank-ledger-core/internal/repository/sqldb"
	"github.com/api-sage/bank-ledger-core/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bank <operation> [arguments...]")
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitInternal
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create data directory: %v\n", err)
		return exitInternal
	}

	// Logs go to a file so stderr carries only the operation's error
	// message; the gateway relays stderr verbatim to its clients.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		return exitInternal
	}
	defer logFile.Close()
	logger.SetOutput(logFile)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := sqldb.Open(ctx, cfg.Driver, cfg.DatabaseDSN, cfg.LockTimeout)
	if err != nil {
		logger.Error("open store failed", err, nil)
		fmt.Fprintln(os.Stderr, "storage unavailable")
		return exitInternal
	}
	defer store.Close()

	a := &app{
		users:    service.NewUserService(store),
		accounts: service.NewAccountService(store, store),
		ledger:   service.NewLedgerService(store, store),
	}

	if err := a.dispatch(ctx, os.Stdout, args[0], args[1:]); err != nil {
		logger.Error("operation failed", err, logger.Fields{"operation": args[0]})
		fmt.Fprintln(os.Stderr, userMessage(err))
		return exitCode(err)
	}

	return 0
}

const (
	exitInternal = 1
	exitUsage    = 2
)

// exitCode maps each error kind to a distinct status so the gateway can
// react per kind (it retries on busy).
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return 3
	case errors.Is(err, domain.ErrNotFound):
		return 4
	case errors.Is(err, domain.ErrBadCredential):
		return 5
	case errors.Is(err, domain.ErrConflict):
		return 6
	case errors.Is(err, domain.ErrInsufficientFunds):
		return 7
	case errors.Is(err, domain.ErrAccountClosed):
		return 8
	case errors.Is(err, domain.ErrSelfTransfer):
		return 9
	case errors.Is(err, domain.ErrNonZeroBalance):
		return 10
	case errors.Is(err, domain.ErrBusy):
		return 11
	case errors.Is(err, domain.ErrStorageCorruption):
		return 12
	}
	return exitInternal
}

// userMessage keeps internal failure details out of the gateway's error
// channel; classified errors carry safe, user-facing text.
func userMessage(err error) string {
	if exitCode(err) == exitInternal {
		return "operation failed"
	}
	return err.Error()
}
