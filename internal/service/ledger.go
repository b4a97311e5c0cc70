package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/logger"
	"github.com/api-sage/bank-ledger-core/internal/repository"
)

type LedgerService struct {
	accounts repository.AccountRepository
	ledger   repository.LedgerRepository
}

func NewLedgerService(accounts repository.AccountRepository, ledger repository.LedgerRepository) *LedgerService {
	return &LedgerService{accounts: accounts, ledger: ledger}
}

func (s *LedgerService) Deposit(ctx context.Context, accountNumber uint64, amount, accountPassword string) (domain.Transaction, error) {
	value, err := domain.ParsePositiveAmount(amount)
	if err != nil {
		return domain.Transaction{}, err
	}

	if _, err := s.authorize(ctx, accountNumber, accountPassword); err != nil {
		return domain.Transaction{}, err
	}

	return s.ledger.Post(ctx, accountNumber, domain.TransactionDeposit, value)
}

func (s *LedgerService) Withdraw(ctx context.Context, accountNumber uint64, amount, accountPassword string) (domain.Transaction, error) {
	value, err := domain.ParsePositiveAmount(amount)
	if err != nil {
		return domain.Transaction{}, err
	}

	if _, err := s.authorize(ctx, accountNumber, accountPassword); err != nil {
		return domain.Transaction{}, err
	}

	return s.ledger.Post(ctx, accountNumber, domain.TransactionWithdraw, value)
}

// Transfer moves funds between two open accounts. The password authorizes
// the source account only. Either both balances update and both ledger
// entries are written, or nothing changes.
func (s *LedgerService) Transfer(ctx context.Context, fromAccount, toAccount uint64, amount, accountPassword string) error {
	if fromAccount == toAccount {
		return fmt.Errorf("account %d: %w", fromAccount, domain.ErrSelfTransfer)
	}

	value, err := domain.ParsePositiveAmount(amount)
	if err != nil {
		return err
	}

	if _, err := s.authorize(ctx, fromAccount, accountPassword); err != nil {
		return err
	}

	return s.ledger.Transfer(ctx, fromAccount, toAccount, value)
}

// Transactions returns the account's history, oldest first.
func (s *LedgerService) Transactions(ctx context.Context, accountNumber uint64) ([]domain.Transaction, error) {
	if _, err := s.accounts.GetByNumber(ctx, accountNumber); err != nil {
		return nil, err
	}
	return s.ledger.ListByAccount(ctx, accountNumber)
}

// AuditReport is the result of re-walking an account's ledger chain.
type AuditReport struct {
	AccountNumber   uint64
	Entries         int
	ComputedBalance decimal.Decimal
	Valid           bool
}

// VerifyAudit recomputes the hash chain over the account's history and
// reconciles the running balance against the stored account balance. Any
// mismatch means the persisted history was tampered with or torn, which
// surfaces as storage corruption rather than being repaired silently.
func (s *LedgerService) VerifyAudit(ctx context.Context, accountNumber uint64) (AuditReport, error) {
	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if err != nil {
		return AuditReport{}, err
	}

	entries, err := s.ledger.ListByAccount(ctx, accountNumber)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{AccountNumber: accountNumber, Entries: len(entries)}

	prevHash := ""
	running := decimal.Zero
	for i, entry := range entries {
		if entry.PrevHash != prevHash {
			return report, fmt.Errorf("entry %d chain break: %w", i, domain.ErrStorageCorruption)
		}
		if domain.ChainHash(prevHash, entry) != entry.EntryHash {
			return report, fmt.Errorf("entry %d hash mismatch: %w", i, domain.ErrStorageCorruption)
		}
		running = running.Add(entry.SignedAmount())
		if !running.Equal(entry.ResultingBalance) {
			return report, fmt.Errorf("entry %d balance mismatch: %w", i, domain.ErrStorageCorruption)
		}
		prevHash = entry.EntryHash
	}

	report.ComputedBalance = running
	if !running.Equal(account.Balance) {
		return report, fmt.Errorf("account %d balance does not reconcile with ledger: %w", accountNumber, domain.ErrStorageCorruption)
	}

	report.Valid = true
	logger.Info("audit verified", logger.Fields{
		"accountNumber": accountNumber,
		"entries":       report.Entries,
	})
	return report, nil
}

// authorize verifies the account password. The check runs outside the write
// lock; mutating repositories re-read account state under the lock before
// applying anything.
func (s *LedgerService) authorize(ctx context.Context, accountNumber uint64, accountPassword string) (domain.Account, error) {
	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if err != nil {
		return domain.Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(accountPassword)); err != nil {
		return domain.Account{}, fmt.Errorf("account %d: %w", accountNumber, domain.ErrBadCredential)
	}

	return account, nil
}
