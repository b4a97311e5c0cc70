package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/logger"
	"github.com/api-sage/bank-ledger-core/internal/repository"
)

type AccountService struct {
	accounts repository.AccountRepository
	users    repository.UserRepository
}

func NewAccountService(accounts repository.AccountRepository, users repository.UserRepository) *AccountService {
	return &AccountService{accounts: accounts, users: users}
}

// Open creates an account for an existing user. The account password is a
// separate secret from the owner's login password and authorizes
// transactions on this account only.
func (s *AccountService) Open(ctx context.Context, username, accountPassword, accountType, initialBalance string) (domain.Account, error) {
	username = strings.TrimSpace(username)

	accType, err := domain.ParseAccountType(accountType)
	if err != nil {
		return domain.Account{}, err
	}

	balance, err := domain.ParseAmount(initialBalance)
	if err != nil {
		return domain.Account{}, err
	}
	if balance.IsNegative() {
		return domain.Account{}, fmt.Errorf("%w: initial balance cannot be negative", domain.ErrValidation)
	}

	if err := domain.ValidatePassword(accountPassword); err != nil {
		return domain.Account{}, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err != nil {
		return domain.Account{}, err
	}

	hash, err := hashSecret(accountPassword)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := s.accounts.CreateAccount(ctx, domain.Account{
		OwnerUsername: username,
		Type:          accType,
		Balance:       balance,
		PasswordHash:  hash,
	})
	if err != nil {
		return domain.Account{}, err
	}

	logger.Info("account opened", logger.Fields{
		"accountNumber": account.AccountNumber,
		"owner":         username,
		"type":          accType,
	})
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, accountNumber uint64) (domain.Account, error) {
	return s.accounts.GetByNumber(ctx, accountNumber)
}

// List returns the user's accounts ordered by account number. An unknown
// username yields an empty list, not an error.
func (s *AccountService) List(ctx context.Context, username string) ([]domain.Account, error) {
	return s.accounts.ListByOwner(ctx, strings.TrimSpace(username))
}

// Close marks the account closed. It requires the account password and a
// zero balance; closing never discards funds.
func (s *AccountService) Close(ctx context.Context, accountNumber uint64, accountPassword string) error {
	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(accountPassword)); err != nil {
		return fmt.Errorf("account %d: %w", accountNumber, domain.ErrBadCredential)
	}

	if err := s.accounts.CloseAccount(ctx, accountNumber); err != nil {
		return err
	}

	logger.Info("account closed", logger.Fields{"accountNumber": accountNumber})
	return nil
}
