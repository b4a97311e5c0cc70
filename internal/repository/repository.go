// Package repository defines the persistence interfaces consumed by the
// services. Implementations must make every mutating method atomic and
// durable: the method either commits the full state transition (balance
// update plus ledger entries) or leaves the store untouched.
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/api-sage/bank-ledger-core/internal/domain"
)

type UserRepository interface {
	// CreateUser persists a new user, allocating its id from a durable
	// sequence. Returns domain.ErrConflict if the username is taken.
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	UpdateProfile(ctx context.Context, username, name, phone string) error
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
}

type AccountRepository interface {
	// CreateAccount persists a new account, allocating its number from a
	// durable sequence that never reuses values. A non-zero initial
	// balance posts an initial deposit entry in the same transaction.
	CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	GetByNumber(ctx context.Context, accountNumber uint64) (domain.Account, error)
	// ListByOwner returns the owner's accounts ordered by account number.
	// An unknown owner yields an empty list.
	ListByOwner(ctx context.Context, username string) ([]domain.Account, error)
	// CloseAccount marks the account closed. It re-checks under the
	// exclusive lock that the account is open and the balance is zero.
	CloseAccount(ctx context.Context, accountNumber uint64) error
}

type LedgerRepository interface {
	// Post applies a deposit or withdrawal: re-reads the account under the
	// exclusive lock, enforces the open and non-negative-balance
	// invariants, updates the balance and appends one chained ledger
	// entry, all in one transaction.
	Post(ctx context.Context, accountNumber uint64, kind domain.TransactionKind, amount decimal.Decimal) (domain.Transaction, error)
	// Transfer moves amount between two accounts, locking both in
	// ascending account-number order. Both balance updates and both
	// ledger entries commit together or not at all.
	Transfer(ctx context.Context, fromAccount, toAccount uint64, amount decimal.Decimal) error
	// ListByAccount returns the account's history oldest-first.
	ListByAccount(ctx context.Context, accountNumber uint64) ([]domain.Transaction, error)
}
