package sqldb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/api-sage/bank-ledger-core/internal/domain"
)

func testDSN(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bank.db")
	return fmt.Sprintf(
		"file:%s?_txlock=immediate&_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path,
	)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "sqlite", testDSN(t), 5*time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreateUser(t *testing.T, store *Store, username string) domain.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), domain.User{
		Username:     username,
		Name:         "Test User",
		Phone:        "1234567890",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}

func mustCreateAccount(t *testing.T, store *Store, owner, balance string) domain.Account {
	t.Helper()
	account, err := store.CreateAccount(context.Background(), domain.Account{
		OwnerUsername: owner,
		Type:          domain.AccountTypeSavings,
		Balance:       decimal.RequireFromString(balance),
		PasswordHash:  "hash",
	})
	if err != nil {
		t.Fatalf("create account for %q: %v", owner, err)
	}
	return account
}

func TestCreateUserAllocatesSequentialIDs(t *testing.T) {
	store := newTestStore(t)

	first := mustCreateUser(t, store, "alice")
	second := mustCreateUser(t, store, "bob_1")

	if first.ID == 0 {
		t.Fatal("first user id is zero")
	}
	if second.ID != first.ID+1 {
		t.Fatalf("ids not sequential: %d then %d", first.ID, second.ID)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	mustCreateUser(t, store, "alice")

	_, err := store.CreateUser(context.Background(), domain.User{
		Username:     "alice",
		Name:         "Other",
		Phone:        "0987654321",
		PasswordHash: "hash",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGetByUsernameNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetByUsername(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateAccountRequiresOwner(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateAccount(context.Background(), domain.Account{
		OwnerUsername: "ghost",
		Type:          domain.AccountTypeSavings,
		Balance:       decimal.Zero,
		PasswordHash:  "hash",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAccountNumbersNeverReused(t *testing.T) {
	store := newTestStore(t)
	mustCreateUser(t, store, "alice")

	first := mustCreateAccount(t, store, "alice", "0.00")
	if err := store.CloseAccount(context.Background(), first.AccountNumber); err != nil {
		t.Fatalf("close account: %v", err)
	}

	second := mustCreateAccount(t, store, "alice", "0.00")
	if second.AccountNumber <= first.AccountNumber {
		t.Fatalf("account number reused or regressed: %d after %d", second.AccountNumber, first.AccountNumber)
	}
}

func TestInitialBalancePostsDepositEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")

	account := mustCreateAccount(t, store, "alice", "100.00")

	entries, err := store.ListByAccount(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Kind != domain.TransactionDeposit {
		t.Fatalf("expected deposit entry, got %s", entries[0].Kind)
	}
	if entries[0].ResultingBalance.StringFixed(2) != "100.00" {
		t.Fatalf("resulting balance %s", entries[0].ResultingBalance.StringFixed(2))
	}

	zero := mustCreateAccount(t, store, "alice", "0.00")
	entries, err = store.ListByAccount(ctx, zero.AccountNumber)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("zero-balance open wrote %d entries", len(entries))
	}
}

func TestWithdrawBoundaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	account := mustCreateAccount(t, store, "alice", "50.00")

	// Withdrawing the full balance succeeds and leaves zero.
	entry, err := store.Post(ctx, account.AccountNumber, domain.TransactionWithdraw, decimal.RequireFromString("50.00"))
	if err != nil {
		t.Fatalf("withdraw full balance: %v", err)
	}
	if !entry.ResultingBalance.IsZero() {
		t.Fatalf("balance after full withdrawal: %s", entry.ResultingBalance)
	}

	// One cent over fails and leaves state untouched.
	_, err = store.Post(ctx, account.AccountNumber, domain.TransactionWithdraw, decimal.RequireFromString("0.01"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	got, err := store.GetByNumber(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !got.Balance.IsZero() {
		t.Fatalf("failed withdrawal changed balance: %s", got.Balance)
	}
	entries, err := store.ListByAccount(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("failed withdrawal wrote an entry: %d entries", len(entries))
	}
}

func TestPostOnClosedAccount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	account := mustCreateAccount(t, store, "alice", "0.00")

	if err := store.CloseAccount(ctx, account.AccountNumber); err != nil {
		t.Fatalf("close account: %v", err)
	}

	_, err := store.Post(ctx, account.AccountNumber, domain.TransactionDeposit, decimal.RequireFromString("10.00"))
	if !errors.Is(err, domain.ErrAccountClosed) {
		t.Fatalf("expected account closed, got %v", err)
	}
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	account := mustCreateAccount(t, store, "alice", "10.00")

	err := store.CloseAccount(ctx, account.AccountNumber)
	if !errors.Is(err, domain.ErrNonZeroBalance) {
		t.Fatalf("expected non-zero balance error, got %v", err)
	}

	got, err := store.GetByNumber(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Closed {
		t.Fatal("failed close marked the account closed")
	}
	if got.Balance.StringFixed(2) != "10.00" {
		t.Fatalf("failed close changed balance: %s", got.Balance.StringFixed(2))
	}
}

func TestTransferMovesFundsAndWritesBothEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	x := mustCreateAccount(t, store, "alice", "120.00")
	y := mustCreateAccount(t, store, "alice", "0.00")

	if err := store.Transfer(ctx, x.AccountNumber, y.AccountNumber, decimal.RequireFromString("50.00")); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	gotX, _ := store.GetByNumber(ctx, x.AccountNumber)
	gotY, _ := store.GetByNumber(ctx, y.AccountNumber)
	if gotX.Balance.StringFixed(2) != "70.00" {
		t.Fatalf("source balance %s", gotX.Balance.StringFixed(2))
	}
	if gotY.Balance.StringFixed(2) != "50.00" {
		t.Fatalf("destination balance %s", gotY.Balance.StringFixed(2))
	}

	outEntries, err := store.ListByAccount(ctx, x.AccountNumber)
	if err != nil {
		t.Fatalf("list source transactions: %v", err)
	}
	last := outEntries[len(outEntries)-1]
	if last.Kind != domain.TransactionTransferOut {
		t.Fatalf("source entry kind %s", last.Kind)
	}
	if last.RelatedAccount == nil || *last.RelatedAccount != y.AccountNumber {
		t.Fatalf("source entry related account %v", last.RelatedAccount)
	}

	inEntries, err := store.ListByAccount(ctx, y.AccountNumber)
	if err != nil {
		t.Fatalf("list destination transactions: %v", err)
	}
	if len(inEntries) != 1 {
		t.Fatalf("destination entries: %d", len(inEntries))
	}
	if inEntries[0].Kind != domain.TransactionTransferIn {
		t.Fatalf("destination entry kind %s", inEntries[0].Kind)
	}
	if inEntries[0].RelatedAccount == nil || *inEntries[0].RelatedAccount != x.AccountNumber {
		t.Fatalf("destination entry related account %v", inEntries[0].RelatedAccount)
	}
}

func TestTransferInsufficientFundsLeavesNoPartialEffect(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	x := mustCreateAccount(t, store, "alice", "10.00")
	y := mustCreateAccount(t, store, "alice", "5.00")

	err := store.Transfer(ctx, x.AccountNumber, y.AccountNumber, decimal.RequireFromString("10.01"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	gotX, _ := store.GetByNumber(ctx, x.AccountNumber)
	gotY, _ := store.GetByNumber(ctx, y.AccountNumber)
	if gotX.Balance.StringFixed(2) != "10.00" || gotY.Balance.StringFixed(2) != "5.00" {
		t.Fatalf("failed transfer changed balances: %s / %s",
			gotX.Balance.StringFixed(2), gotY.Balance.StringFixed(2))
	}
}

func TestTransferToMissingDestination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	x := mustCreateAccount(t, store, "alice", "10.00")

	err := store.Transfer(ctx, x.AccountNumber, x.AccountNumber+999, decimal.RequireFromString("1.00"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	gotX, _ := store.GetByNumber(ctx, x.AccountNumber)
	if gotX.Balance.StringFixed(2) != "10.00" {
		t.Fatalf("failed transfer changed source balance: %s", gotX.Balance.StringFixed(2))
	}
}

func TestLedgerEntriesAreChained(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	account := mustCreateAccount(t, store, "alice", "100.00")

	if _, err := store.Post(ctx, account.AccountNumber, domain.TransactionDeposit, decimal.RequireFromString("50.00")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := store.Post(ctx, account.AccountNumber, domain.TransactionWithdraw, decimal.RequireFromString("30.00")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	entries, err := store.ListByAccount(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	prev := ""
	for i, entry := range entries {
		if entry.PrevHash != prev {
			t.Fatalf("entry %d prev hash broken", i)
		}
		if domain.ChainHash(prev, entry) != entry.EntryHash {
			t.Fatalf("entry %d hash mismatch", i)
		}
		prev = entry.EntryHash
	}
}

func TestBalanceEqualsSumOfSignedAmounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, store, "alice")
	a := mustCreateAccount(t, store, "alice", "100.00")
	b := mustCreateAccount(t, store, "alice", "25.00")

	_, _ = store.Post(ctx, a.AccountNumber, domain.TransactionDeposit, decimal.RequireFromString("50.00"))
	_, _ = store.Post(ctx, a.AccountNumber, domain.TransactionWithdraw, decimal.RequireFromString("30.00"))
	_ = store.Transfer(ctx, a.AccountNumber, b.AccountNumber, decimal.RequireFromString("40.00"))

	for _, number := range []uint64{a.AccountNumber, b.AccountNumber} {
		account, err := store.GetByNumber(ctx, number)
		if err != nil {
			t.Fatalf("get account %d: %v", number, err)
		}
		entries, err := store.ListByAccount(ctx, number)
		if err != nil {
			t.Fatalf("list transactions %d: %v", number, err)
		}
		sum := decimal.Zero
		for _, entry := range entries {
			sum = sum.Add(entry.SignedAmount())
		}
		if !sum.Equal(account.Balance) {
			t.Fatalf("account %d: balance %s != ledger sum %s",
				number, account.Balance.StringFixed(2), sum.StringFixed(2))
		}
	}
}

func TestRebind(t *testing.T) {
	query := `SELECT a FROM t WHERE b = ? AND c = ?`
	if got := dialectSQLite.rebind(query); got != query {
		t.Fatalf("sqlite rebind altered query: %s", got)
	}
	want := `SELECT a FROM t WHERE b = $1 AND c = $2`
	if got := dialectPostgres.rebind(query); got != want {
		t.Fatalf("postgres rebind: %s", got)
	}
}
