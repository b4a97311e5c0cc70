package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/logger"
)

const userColumns = `id, username, name, phone, password_hash, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	logger.Info("user repository create", logger.Fields{"username": user.Username})

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.nextSequence(ctx, tx, "user_id")
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		user.ID = id
		user.CreatedAt = now
		user.UpdatedAt = now

		query := s.dialect.rebind(`
INSERT INTO users (id, username, name, phone, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)

		if _, err := tx.ExecContext(
			ctx,
			query,
			int64(user.ID),
			user.Username,
			user.Name,
			user.Phone,
			user.PasswordHash,
			user.CreatedAt,
			user.UpdatedAt,
		); err != nil {
			return s.dialect.mapError("create user", err)
		}

		return nil
	})
	if err != nil {
		logger.Error("user repository create failed", err, logger.Fields{"username": user.Username})
		return domain.User{}, err
	}

	return user, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	query := s.dialect.rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)

	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("get user by username: %w", err)
	}

	return user, nil
}

func (s *Store) UpdateProfile(ctx context.Context, username, name, phone string) error {
	query := s.dialect.rebind(`UPDATE users SET name = ?, phone = ?, updated_at = ? WHERE username = ?`)

	res, err := s.db.ExecContext(ctx, query, name, phone, time.Now().UTC(), username)
	if err != nil {
		return s.dialect.mapError("update profile", err)
	}

	return requireRow(res, fmt.Sprintf("user %q", username))
}

func (s *Store) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	query := s.dialect.rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE username = ?`)

	res, err := s.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), username)
	if err != nil {
		return s.dialect.mapError("update password", err)
	}

	return requireRow(res, fmt.Sprintf("user %q", username))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user domain.User
		id   int64
	)
	if err := row.Scan(
		&id,
		&user.Username,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	user.ID = uint64(id)
	return user, nil
}

func requireRow(res sql.Result, subject string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
	}
	return nil
}
