// Package service implements the ledger engine and credential handling on
// top of the repository interfaces. Every money-moving operation follows the
// same template: validate input, then let the repository apply the state
// transition under the exclusive lock with a re-read of current state.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/logger"
	"github.com/api-sage/bank-ledger-core/internal/repository"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Register creates a new user. The password is hashed before it reaches the
// store; plaintext is never persisted or logged.
func (s *UserService) Register(ctx context.Context, name, phone, username, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)

	if err := domain.ValidateName(name); err != nil {
		return domain.User{}, err
	}
	if err := domain.ValidatePhone(phone); err != nil {
		return domain.User{}, err
	}
	if err := domain.ValidateUsername(username); err != nil {
		return domain.User{}, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}

	hash, err := hashSecret(password)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.CreateUser(ctx, domain.User{
		Username:     username,
		Name:         name,
		Phone:        phone,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.User{}, fmt.Errorf("username %q: %w", username, domain.ErrConflict)
		}
		return domain.User{}, err
	}

	logger.Info("user registered", logger.Fields{"username": username, "id": user.ID})
	return user, nil
}

// Login verifies the user's credentials. An unknown username and a wrong
// password produce the same error so callers cannot enumerate usernames.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrBadCredential
		}
		return domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrBadCredential
	}

	return user, nil
}

func (s *UserService) Get(ctx context.Context, username string) (domain.User, error) {
	return s.users.GetByUsername(ctx, strings.TrimSpace(username))
}

func (s *UserService) UpdateProfile(ctx context.Context, username, name, phone string) error {
	name = strings.TrimSpace(name)

	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if err := domain.ValidatePhone(phone); err != nil {
		return err
	}

	return s.users.UpdateProfile(ctx, strings.TrimSpace(username), name, phone)
}

// ChangePassword re-verifies the current password before accepting the new
// one. Failures look identical for unknown users and wrong passwords.
func (s *UserService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	user, err := s.Login(ctx, username, currentPassword)
	if err != nil {
		return err
	}

	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := hashSecret(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, user.Username, hash); err != nil {
		return err
	}

	logger.Info("password changed", logger.Fields{"username": user.Username})
	return nil
}

func hashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}
