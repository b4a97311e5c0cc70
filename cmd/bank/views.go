package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/service"
)

// View shapes match what the gateway's JSON.parse consumers already render;
// balances are emitted as bare numbers with two decimal places.

type userView struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
}

func newUserView(user domain.User) userView {
	return userView{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Phone:    user.Phone,
	}
}

type accountView struct {
	AccountNumber uint64      `json:"accountNumber"`
	Type          string      `json:"type"`
	Balance       json.Number `json:"balance"`
	Owner         string      `json:"owner"`
	Closed        bool        `json:"closed"`
}

func newAccountView(account domain.Account) accountView {
	return accountView{
		AccountNumber: account.AccountNumber,
		Type:          string(account.Type),
		Balance:       json.Number(account.Balance.StringFixed(2)),
		Owner:         account.OwnerUsername,
		Closed:        account.Closed,
	}
}

type transactionView struct {
	Timestamp      string      `json:"timestamp"`
	Type           string      `json:"type"`
	Amount         json.Number `json:"amount"`
	RelatedAccount *string     `json:"relatedAccount"`
	Balance        json.Number `json:"balance"`
}

func newTransactionView(entry domain.Transaction) transactionView {
	view := transactionView{
		Timestamp: entry.CreatedAt.UTC().Format(time.RFC3339),
		Type:      displayKind(entry.Kind),
		Amount:    json.Number(entry.SignedAmount().StringFixed(2)),
		Balance:   json.Number(entry.ResultingBalance.StringFixed(2)),
	}
	if entry.RelatedAccount != nil {
		related := relatedLabel(entry.Kind, *entry.RelatedAccount)
		view.RelatedAccount = &related
	}
	return view
}

func displayKind(kind domain.TransactionKind) string {
	switch kind {
	case domain.TransactionDeposit:
		return "Deposit"
	case domain.TransactionWithdraw:
		return "Withdrawal"
	case domain.TransactionTransferOut:
		return "Transfer Out"
	case domain.TransactionTransferIn:
		return "Transfer In"
	}
	return "Unknown"
}

func relatedLabel(kind domain.TransactionKind, account uint64) string {
	if kind == domain.TransactionTransferIn {
		return fmt.Sprintf("From %d", account)
	}
	return fmt.Sprintf("To %d", account)
}

type auditView struct {
	AccountNumber   uint64      `json:"accountNumber"`
	Valid           bool        `json:"valid"`
	Entries         int         `json:"entries"`
	ComputedBalance json.Number `json:"computedBalance"`
}

func newAuditView(report service.AuditReport) auditView {
	return auditView{
		AccountNumber:   report.AccountNumber,
		Valid:           report.Valid,
		Entries:         report.Entries,
		ComputedBalance: json.Number(report.ComputedBalance.StringFixed(2)),
	}
}
