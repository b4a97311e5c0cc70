package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeSavings   AccountType = "Savings"
	AccountTypeCurrent   AccountType = "Current"
	AccountTypeAuditable AccountType = "Auditable"
)

// ParseAccountType accepts the wire spellings used by the gateway
// (case-insensitive; "auditable savings" kept for older clients).
func ParseAccountType(raw string) (AccountType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "savings":
		return AccountTypeSavings, nil
	case "current":
		return AccountTypeCurrent, nil
	case "auditable", "auditable savings", "auditablesavings":
		return AccountTypeAuditable, nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", ErrValidation, raw)
}

// Account balances only change through ledger postings; every change appends
// a Transaction so that balance == sum of signed entry amounts holds at all
// times. The account password is a separate secret from the owner's login
// password.
type Account struct {
	AccountNumber uint64
	OwnerUsername string
	Type          AccountType
	Balance       decimal.Decimal
	PasswordHash  string
	Closed        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
