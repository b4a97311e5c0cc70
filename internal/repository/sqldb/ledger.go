package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/logger"
)

const transactionColumns = `id, account_number, kind, amount, related_account, resulting_balance, prev_hash, entry_hash, created_at`

// Post applies a deposit or withdrawal following the engine template:
// lock, re-read, check invariants, apply, append entry, commit.
func (s *Store) Post(ctx context.Context, accountNumber uint64, kind domain.TransactionKind, amount decimal.Decimal) (domain.Transaction, error) {
	logger.Info("ledger repository post", logger.Fields{
		"accountNumber": accountNumber,
		"kind":          kind,
		"amount":        amount.StringFixed(2),
	})

	var posted domain.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		account, err := s.accountForUpdate(ctx, tx, accountNumber)
		if err != nil {
			return err
		}
		if account.Closed {
			return fmt.Errorf("account %d: %w", accountNumber, domain.ErrAccountClosed)
		}

		var newBalance decimal.Decimal
		switch kind {
		case domain.TransactionDeposit:
			newBalance = account.Balance.Add(amount)
		case domain.TransactionWithdraw:
			newBalance = account.Balance.Sub(amount)
			if newBalance.IsNegative() {
				return fmt.Errorf("account %d: %w", accountNumber, domain.ErrInsufficientFunds)
			}
		default:
			return fmt.Errorf("unsupported posting kind %q", kind)
		}

		if err := s.updateBalance(ctx, tx, accountNumber, newBalance); err != nil {
			return err
		}

		posted, err = s.appendEntry(ctx, tx, domain.Transaction{
			AccountNumber:    accountNumber,
			Kind:             kind,
			Amount:           amount,
			ResultingBalance: newBalance,
			CreatedAt:        time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		logger.Error("ledger repository post failed", err, logger.Fields{"accountNumber": accountNumber})
		return domain.Transaction{}, err
	}

	return posted, nil
}

// Transfer debits the source and credits the destination in one transaction.
// Accounts are locked in ascending account-number order so two opposing
// transfers cannot deadlock.
func (s *Store) Transfer(ctx context.Context, fromAccount, toAccount uint64, amount decimal.Decimal) error {
	logger.Info("ledger repository transfer", logger.Fields{
		"fromAccount": fromAccount,
		"toAccount":   toAccount,
		"amount":      amount.StringFixed(2),
	})

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		first, second := fromAccount, toAccount
		if second < first {
			first, second = second, first
		}

		locked := make(map[uint64]domain.Account, 2)
		for _, number := range []uint64{first, second} {
			account, err := s.accountForUpdate(ctx, tx, number)
			if err != nil {
				return err
			}
			locked[number] = account
		}

		source := locked[fromAccount]
		dest := locked[toAccount]

		if source.Closed {
			return fmt.Errorf("source account %d: %w", fromAccount, domain.ErrAccountClosed)
		}
		if dest.Closed {
			return fmt.Errorf("destination account %d: %w", toAccount, domain.ErrAccountClosed)
		}

		newSource := source.Balance.Sub(amount)
		if newSource.IsNegative() {
			return fmt.Errorf("account %d: %w", fromAccount, domain.ErrInsufficientFunds)
		}
		newDest := dest.Balance.Add(amount)

		if err := s.updateBalance(ctx, tx, fromAccount, newSource); err != nil {
			return err
		}
		if err := s.updateBalance(ctx, tx, toAccount, newDest); err != nil {
			return err
		}

		now := time.Now().UTC()
		to := toAccount
		from := fromAccount

		if _, err := s.appendEntry(ctx, tx, domain.Transaction{
			AccountNumber:    fromAccount,
			Kind:             domain.TransactionTransferOut,
			Amount:           amount,
			RelatedAccount:   &to,
			ResultingBalance: newSource,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		if _, err := s.appendEntry(ctx, tx, domain.Transaction{
			AccountNumber:    toAccount,
			Kind:             domain.TransactionTransferIn,
			Amount:           amount,
			RelatedAccount:   &from,
			ResultingBalance: newDest,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		logger.Error("ledger repository transfer failed", err, logger.Fields{
			"fromAccount": fromAccount,
			"toAccount":   toAccount,
		})
		return err
	}

	return nil
}

func (s *Store) ListByAccount(ctx context.Context, accountNumber uint64) ([]domain.Transaction, error) {
	query := s.dialect.rebind(`
SELECT ` + transactionColumns + `
FROM transactions
WHERE account_number = ?
ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, query, int64(accountNumber))
	if err != nil {
		return nil, s.dialect.mapError("list transactions", err)
	}
	defer rows.Close()

	entries := make([]domain.Transaction, 0)
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, s.dialect.mapError("list transactions", err)
	}

	return entries, nil
}

// appendEntry chains the entry to the account's previous one and inserts it.
// Must run inside the transaction that holds the account's exclusive lock.
func (s *Store) appendEntry(ctx context.Context, tx *sql.Tx, entry domain.Transaction) (domain.Transaction, error) {
	prev := s.dialect.rebind(`
SELECT entry_hash
FROM transactions
WHERE account_number = ?
ORDER BY id DESC
LIMIT 1`)

	var prevHash string
	err := tx.QueryRowContext(ctx, prev, int64(entry.AccountNumber)).Scan(&prevHash)
	if err != nil && err != sql.ErrNoRows {
		return domain.Transaction{}, s.dialect.mapError("read chain head", err)
	}

	// The hash covers the timestamp, so it must survive a database round
	// trip unchanged; postgres keeps microseconds at most.
	entry.CreatedAt = entry.CreatedAt.Truncate(time.Microsecond)

	entry.PrevHash = prevHash
	entry.EntryHash = domain.ChainHash(prevHash, entry)

	var related sql.NullInt64
	if entry.RelatedAccount != nil {
		related = sql.NullInt64{Int64: int64(*entry.RelatedAccount), Valid: true}
	}

	query := s.dialect.rebind(`
INSERT INTO transactions (account_number, kind, amount, related_account, resulting_balance, prev_hash, entry_hash, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`)

	var id int64
	if err := tx.QueryRowContext(
		ctx,
		query,
		int64(entry.AccountNumber),
		string(entry.Kind),
		entry.Amount.StringFixed(2),
		related,
		entry.ResultingBalance.StringFixed(2),
		entry.PrevHash,
		entry.EntryHash,
		entry.CreatedAt,
	).Scan(&id); err != nil {
		return domain.Transaction{}, s.dialect.mapError("append ledger entry", err)
	}

	entry.ID = uint64(id)
	return entry, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		entry      domain.Transaction
		id         int64
		number     int64
		kind       string
		rawAmount  string
		related    sql.NullInt64
		rawBalance string
	)
	if err := row.Scan(
		&id,
		&number,
		&kind,
		&rawAmount,
		&related,
		&rawBalance,
		&entry.PrevHash,
		&entry.EntryHash,
		&entry.CreatedAt,
	); err != nil {
		return domain.Transaction{}, err
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return domain.Transaction{}, errCorrupt(fmt.Errorf("transaction %d amount %q", id, rawAmount))
	}
	balance, err := decimal.NewFromString(rawBalance)
	if err != nil {
		return domain.Transaction{}, errCorrupt(fmt.Errorf("transaction %d resulting balance %q", id, rawBalance))
	}

	entry.ID = uint64(id)
	entry.AccountNumber = uint64(number)
	entry.Kind = domain.TransactionKind(kind)
	entry.Amount = amount
	entry.ResultingBalance = balance
	if related.Valid {
		value := uint64(related.Int64)
		entry.RelatedAccount = &value
	}
	return entry, nil
}
