package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/api-sage/bank-ledger-core/internal/domain"
	"github.com/api-sage/bank-ledger-core/internal/service"
)

type app struct {
	users    *service.UserService
	accounts *service.AccountService
	ledger   *service.LedgerService
}

func (a *app) dispatch(ctx context.Context, w io.Writer, name string, args []string) error {
	switch name {
	case "login":
		if err := expectArgs(name, args, "username", "password"); err != nil {
			return err
		}
		user, err := a.users.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return writeJSON(w, newUserView(user))

	case "register":
		if err := expectArgs(name, args, "name", "phone", "username", "password"); err != nil {
			return err
		}
		user, err := a.users.Register(ctx, args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "Registration successful. Customer id: %d\n", user.ID)
		return err

	case "get-user":
		if err := expectArgs(name, args, "username"); err != nil {
			return err
		}
		user, err := a.users.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return writeJSON(w, newUserView(user))

	case "update-profile":
		if err := expectArgs(name, args, "username", "name", "phone"); err != nil {
			return err
		}
		if err := a.users.UpdateProfile(ctx, args[0], args[1], args[2]); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, "Profile updated.")
		return err

	case "change-password":
		if err := expectArgs(name, args, "username", "currentPassword", "newPassword"); err != nil {
			return err
		}
		if err := a.users.ChangePassword(ctx, args[0], args[1], args[2]); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, "Password changed.")
		return err

	case "get-accounts":
		if err := expectArgs(name, args, "username"); err != nil {
			return err
		}
		accounts, err := a.accounts.List(ctx, args[0])
		if err != nil {
			return err
		}
		views := make([]accountView, 0, len(accounts))
		for _, account := range accounts {
			views = append(views, newAccountView(account))
		}
		return writeJSON(w, views)

	case "create-account":
		if err := expectArgs(name, args, "username", "password", "type", "initialBalance"); err != nil {
			return err
		}
		account, err := a.accounts.Open(ctx, args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		// The gateway extracts the number from this exact phrase.
		_, err = fmt.Fprintf(w, "Account number: %d\n", account.AccountNumber)
		return err

	case "get-account":
		if err := expectArgs(name, args, "accountNumber"); err != nil {
			return err
		}
		number, err := parseAccountNumber(args[0])
		if err != nil {
			return err
		}
		account, err := a.accounts.Get(ctx, number)
		if err != nil {
			return err
		}
		return writeJSON(w, newAccountView(account))

	case "close-account":
		if err := expectArgs(name, args, "accountNumber", "password"); err != nil {
			return err
		}
		number, err := parseAccountNumber(args[0])
		if err != nil {
			return err
		}
		if err := a.accounts.Close(ctx, number, args[1]); err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, "Account closed.")
		return err

	case "deposit":
		if err := expectArgs(name, args, "accountNumber", "amount", "password"); err != nil {
			return err
		}
		number, err := parseAccountNumber(args[0])
		if err != nil {
			return err
		}
		entry, err := a.ledger.Deposit(ctx, number, args[1], args[2])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "Deposit successful. Balance: %s\n", entry.ResultingBalance.StringFixed(2))
		return err

	case "withdraw":
		if err := expectArgs(name, args, "accountNumber", "amount", "password"); err != nil {
			return err
		}
		number, err := parseAccountNumber(args[0])
		if err != nil {
			return err
		}
		entry, err := a.ledger.Withdraw(ctx, number, args[1], args[2])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "Withdrawal successful. Balance: %s\n", entry.ResultingBalance.StringFixed(2))
		return err

	case "transfer":
		if err := expectArgs(name, args, "fromAccount", "toAccount", "amount", "password"); err != nil {
			return err
		}
		from, err := parseAccountNumber(args[0])
		if err != nil {
			return err
		}
		to, err := parseAccountNumber(args[1])
		if err != nil {
			return err
		}
		if err := a.ledger.Transfer(ctx, from, to, args[2], args[3]); err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, "Transfer successful.")
		return err

	case "get-transactions":
		if err := expectArgs(name, args, "accountNumber"); err != nil {
			return err
		}
		number, err := parseAccountNumber(args[0])
		if err != nil {
			return err
		}
		entries, err := a.ledger.Transactions(ctx, number)
		if err != nil {
			return err
		}
		views := make([]transactionView, 0, len(entries))
		for _, entry := range entries {
			views = append(views, newTransactionView(entry))
		}
		return writeJSON(w, views)

	case "verify-audit":
		if err := expectArgs(name, args, "accountNumber"); err != nil {
			return err
		}
		number, err := parseAccountNumber(args[0])
		if err != nil {
			return err
		}
		report, err := a.ledger.VerifyAudit(ctx, number)
		if err != nil {
			return err
		}
		return writeJSON(w, newAuditView(report))
	}

	return fmt.Errorf("%w: unknown operation %q", domain.ErrValidation, name)
}

func expectArgs(name string, args []string, params ...string) error {
	if len(args) != len(params) {
		usage := name
		for _, p := range params {
			usage += " <" + p + ">"
		}
		return fmt.Errorf("%w: usage: %s", domain.ErrValidation, usage)
	}
	return nil
}

func parseAccountNumber(raw string) (uint64, error) {
	number, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid account number %q", domain.ErrValidation, raw)
	}
	return number, nil
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}
