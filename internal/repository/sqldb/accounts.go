package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/logger"
)

const accountColumns = `account_number, owner_username, type, balance, password_hash, closed, created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	logger.Info("account repository create", logger.Fields{
		"owner": account.OwnerUsername,
		"type":  account.Type,
	})

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		owner := s.dialect.rebind(`SELECT COUNT(1) FROM users WHERE username = ?`)
		var count int
		if err := tx.QueryRowContext(ctx, owner, account.OwnerUsername).Scan(&count); err != nil {
			return s.dialect.mapError("check account owner", err)
		}
		if count == 0 {
			return fmt.Errorf("owner %q: %w", account.OwnerUsername, domain.ErrNotFound)
		}

		number, err := s.nextSequence(ctx, tx, "account_number")
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		account.AccountNumber = number
		account.CreatedAt = now
		account.UpdatedAt = now

		query := s.dialect.rebind(`
INSERT INTO accounts (account_number, owner_username, type, balance, password_hash, closed, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?)`)

		if _, err := tx.ExecContext(
			ctx,
			query,
			int64(account.AccountNumber),
			account.OwnerUsername,
			string(account.Type),
			account.Balance.StringFixed(2),
			account.PasswordHash,
			account.CreatedAt,
			account.UpdatedAt,
		); err != nil {
			return s.dialect.mapError("create account", err)
		}

		// Opening is not itself a transaction, but a non-zero initial
		// balance posts an initial deposit entry so that
		// balance == sum(signed amounts) holds from the first read.
		if account.Balance.IsPositive() {
			_, err := s.appendEntry(ctx, tx, domain.Transaction{
				AccountNumber:    account.AccountNumber,
				Kind:             domain.TransactionDeposit,
				Amount:           account.Balance,
				ResultingBalance: account.Balance,
				CreatedAt:        now,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		logger.Error("account repository create failed", err, logger.Fields{"owner": account.OwnerUsername})
		return domain.Account{}, err
	}

	return account, nil
}

func (s *Store) GetByNumber(ctx context.Context, accountNumber uint64) (domain.Account, error) {
	query := s.dialect.rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE account_number = ?`)

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, int64(accountNumber)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("account %d: %w", accountNumber, domain.ErrNotFound)
		}
		return domain.Account{}, fmt.Errorf("get account by number: %w", err)
	}

	return account, nil
}

func (s *Store) ListByOwner(ctx context.Context, username string) ([]domain.Account, error) {
	query := s.dialect.rebind(`
SELECT ` + accountColumns + `
FROM accounts
WHERE owner_username = ?
ORDER BY account_number`)

	rows, err := s.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, s.dialect.mapError("list accounts by owner", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, s.dialect.mapError("list accounts by owner", err)
	}

	return accounts, nil
}

func (s *Store) CloseAccount(ctx context.Context, accountNumber uint64) error {
	logger.Info("account repository close", logger.Fields{"accountNumber": accountNumber})

	return s.withTx(ctx, func(tx *sql.Tx) error {
		account, err := s.accountForUpdate(ctx, tx, accountNumber)
		if err != nil {
			return err
		}
		if account.Closed {
			return fmt.Errorf("account %d: %w", accountNumber, domain.ErrAccountClosed)
		}
		if !account.Balance.IsZero() {
			return fmt.Errorf("account %d: %w", accountNumber, domain.ErrNonZeroBalance)
		}

		query := s.dialect.rebind(`UPDATE accounts SET closed = 1, updated_at = ? WHERE account_number = ?`)
		if _, err := tx.ExecContext(ctx, query, time.Now().UTC(), int64(accountNumber)); err != nil {
			return s.dialect.mapError("close account", err)
		}

		return nil
	})
}

// accountForUpdate re-reads the account inside the caller's transaction,
// holding the exclusive lock for the remainder of the mutation.
func (s *Store) accountForUpdate(ctx context.Context, tx *sql.Tx, accountNumber uint64) (domain.Account, error) {
	query := s.dialect.forUpdate(s.dialect.rebind(
		`SELECT ` + accountColumns + ` FROM accounts WHERE account_number = ?`))

	account, err := scanAccount(tx.QueryRowContext(ctx, query, int64(accountNumber)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("account %d: %w", accountNumber, domain.ErrNotFound)
		}
		return domain.Account{}, s.dialect.mapError("lock account", err)
	}

	return account, nil
}

func (s *Store) updateBalance(ctx context.Context, tx *sql.Tx, accountNumber uint64, balance decimal.Decimal) error {
	query := s.dialect.rebind(`UPDATE accounts SET balance = ?, updated_at = ? WHERE account_number = ?`)

	if _, err := tx.ExecContext(ctx, query, balance.StringFixed(2), time.Now().UTC(), int64(accountNumber)); err != nil {
		return s.dialect.mapError("update balance", err)
	}

	return nil
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		account    domain.Account
		number     int64
		accType    string
		rawBalance string
		closed     int64
	)
	if err := row.Scan(
		&number,
		&account.OwnerUsername,
		&accType,
		&rawBalance,
		&account.PasswordHash,
		&closed,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return domain.Account{}, err
	}

	balance, err := decimal.NewFromString(rawBalance)
	if err != nil {
		return domain.Account{}, errCorrupt(fmt.Errorf("account %d balance %q", number, rawBalance))
	}
	if balance.IsNegative() {
		return domain.Account{}, errCorrupt(fmt.Errorf("account %d balance is negative", number))
	}

	account.AccountNumber = uint64(number)
	account.Type = domain.AccountType(accType)
	account.Balance = balance
	account.Closed = closed != 0
	return account, nil
}
