package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionDeposit     TransactionKind = "DEPOSIT"
	TransactionWithdraw    TransactionKind = "WITHDRAW"
	TransactionTransferOut TransactionKind = "TRANSFER_OUT"
	TransactionTransferIn  TransactionKind = "TRANSFER_IN"
)

// Transaction is one immutable ledger entry. Entries are append-only: an
// account's balance is always the sum of its entries' signed amounts, and
// each entry is hash-chained to the previous one so history edits are
// detectable.
type Transaction struct {
	ID               uint64
	AccountNumber    uint64
	Kind             TransactionKind
	Amount           decimal.Decimal
	RelatedAccount   *uint64
	ResultingBalance decimal.Decimal
	PrevHash         string
	EntryHash        string
	CreatedAt        time.Time
}

// SignedAmount is the entry's effect on the balance: positive for deposits
// and incoming transfers, negative for withdrawals and outgoing transfers.
func (t Transaction) SignedAmount() decimal.Decimal {
	switch t.Kind {
	case TransactionWithdraw, TransactionTransferOut:
		return t.Amount.Neg()
	}
	return t.Amount
}

// ChainHash computes the entry's position-dependent hash. PrevHash and
// EntryHash on the entry itself are ignored; the previous hash is passed
// explicitly so verification can re-walk the chain from the start.
func ChainHash(prevHash string, t Transaction) string {
	related := ""
	if t.RelatedAccount != nil {
		related = fmt.Sprintf("%d", *t.RelatedAccount)
	}

	payload := strings.Join([]string{
		prevHash,
		fmt.Sprintf("%d", t.AccountNumber),
		string(t.Kind),
		t.Amount.StringFixed(2),
		related,
		t.ResultingBalance.StringFixed(2),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
