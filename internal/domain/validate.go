package domain

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Validation rules owned by the core. The gateway may pre-check the same
// rules, but the core never trusts it to.

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' {
			return fmt.Errorf("%w: name may only contain letters and spaces", ErrValidation)
		}
	}
	return nil
}

func ValidatePhone(phone string) error {
	if len(phone) != 10 {
		return fmt.Errorf("%w: phone must be exactly 10 digits", ErrValidation)
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: phone must be exactly 10 digits", ErrValidation)
		}
	}
	return nil
}

func ValidateUsername(username string) error {
	if len(username) < 4 {
		return fmt.Errorf("%w: username must be at least 4 characters", ErrValidation)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return fmt.Errorf("%w: username may only contain letters, numbers and underscores", ErrValidation)
		}
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: password must include uppercase, lowercase and a digit", ErrValidation)
	}
	return nil
}

// ParseAmount parses a monetary amount. Amounts are decimal currency values
// with at most two decimal places; sub-cent precision is rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrValidation, raw)
	}
	if amount.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("%w: amount must have at most two decimal places", ErrValidation)
	}
	return amount, nil
}

// ParsePositiveAmount parses an amount that must be strictly greater than
// zero (deposits, withdrawals, transfers).
func ParsePositiveAmount(raw string) (decimal.Decimal, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return amount, nil
}
