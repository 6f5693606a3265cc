package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/model"
)

// fundWallet credits a user through the normal approval path so the cached
// wallet and the ledger stay in agreement.
func fundWallet(t *testing.T, ts *TaskStore, userID, amount int64) {
	t.Helper()
	task := createTestTask(t, ts, amount, []int64{userID}, true)
	if _, err := ts.SubmitProof(task.ID, "/uploads/userFiles/p.pdf"); err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if _, err := ts.ApproveEarning(task.ID); err != nil {
		t.Fatalf("approve earning: %v", err)
	}
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	fundWallet(t, ts, u.ID, 50)

	_, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(80))
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeInsufficientFunds {
		t.Fatalf("err = %v, want insufficient_funds", err)
	}

	finance, err := fs.UserFinance(u.ID)
	if err != nil {
		t.Fatalf("user finance: %v", err)
	}
	if len(finance.Withdrawals) != 0 {
		t.Errorf("withdrawals = %d, want 0", len(finance.Withdrawals))
	}
	if !finance.Wallet.Equal(decimal.NewFromInt(50)) {
		t.Errorf("wallet = %s, want 50", finance.Wallet)
	}
}

func TestRequestWithdrawalValidation(t *testing.T) {
	_, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)

	_, err := fs.RequestWithdrawal(u.ID, decimal.Zero)
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeValidation {
		t.Errorf("zero amount err = %v, want validation", err)
	}
	_, err = fs.RequestWithdrawal(u.ID, decimal.NewFromInt(-5))
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeValidation {
		t.Errorf("negative amount err = %v, want validation", err)
	}
	_, err = fs.RequestWithdrawal(9999, decimal.NewFromInt(5))
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeNotFound {
		t.Errorf("unknown user err = %v, want not_found", err)
	}
}

func TestApproveWithdrawalDebitsWallet(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	fundWallet(t, ts, u.ID, 100)

	w, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if w.Status != model.WithdrawalPending {
		t.Errorf("status = %q, want Pending", w.Status)
	}

	approved, err := fs.ApproveWithdrawal(w.ID)
	if err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}
	if approved.Status != model.WithdrawalApproved {
		t.Errorf("status = %q, want Approved", approved.Status)
	}

	fresh, _ := us.GetByID(u.ID)
	if !fresh.Wallet.Equal(decimal.NewFromInt(40)) {
		t.Errorf("wallet = %s, want 40", fresh.Wallet)
	}

	finance, _ := fs.UserFinance(u.ID)
	if len(finance.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(finance.Transactions))
	}
	// Newest first: the debit precedes the funding credit.
	if finance.Transactions[0].Type != model.TransactionDebit {
		t.Errorf("latest transaction type = %q, want debit", finance.Transactions[0].Type)
	}
}

func TestApproveWithdrawalTwiceConflicts(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	fundWallet(t, ts, u.ID, 100)

	w, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(30))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if _, err := fs.ApproveWithdrawal(w.ID); err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}

	_, err = fs.ApproveWithdrawal(w.ID)
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeConflict {
		t.Fatalf("second approve err = %v, want conflict", err)
	}

	fresh, _ := us.GetByID(u.ID)
	if !fresh.Wallet.Equal(decimal.NewFromInt(70)) {
		t.Errorf("wallet = %s, want 70 (single debit)", fresh.Wallet)
	}
}

func TestApproveWithdrawalRechecksBalance(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	fundWallet(t, ts, u.ID, 100)

	// Two requests that individually pass the request-time check but
	// cannot both be honored.
	w1, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(80))
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}
	w2, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(80))
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}

	if _, err := fs.ApproveWithdrawal(w1.ID); err != nil {
		t.Fatalf("approve 1: %v", err)
	}

	_, err = fs.ApproveWithdrawal(w2.ID)
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeInsufficientFunds {
		t.Fatalf("approve 2 err = %v, want insufficient_funds", err)
	}

	// The failed approval left the withdrawal pending and the wallet whole.
	fresh, _ := us.GetByID(u.ID)
	if !fresh.Wallet.Equal(decimal.NewFromInt(20)) {
		t.Errorf("wallet = %s, want 20", fresh.Wallet)
	}
	stillPending, _ := fs.GetWithdrawal(w2.ID)
	if stillPending.Status != model.WithdrawalPending {
		t.Errorf("withdrawal 2 status = %q, want Pending", stillPending.Status)
	}
}

func TestRejectWithdrawal(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	fundWallet(t, ts, u.ID, 100)

	w, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(30))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	rejected, err := fs.RejectWithdrawal(w.ID)
	if err != nil {
		t.Fatalf("reject withdrawal: %v", err)
	}
	if rejected.Status != model.WithdrawalRejected {
		t.Errorf("status = %q, want Rejected", rejected.Status)
	}

	fresh, _ := us.GetByID(u.ID)
	if !fresh.Wallet.Equal(decimal.NewFromInt(100)) {
		t.Errorf("wallet = %s, want 100 (no debit on reject)", fresh.Wallet)
	}

	// Terminal: cannot approve after rejection.
	_, err = fs.ApproveWithdrawal(w.ID)
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeConflict {
		t.Errorf("approve after reject err = %v, want conflict", err)
	}
}

func TestWalletMatchesLedger(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)

	fundWallet(t, ts, u.ID, 100)
	fundWallet(t, ts, u.ID, 25)
	w, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if _, err := fs.ApproveWithdrawal(w.ID); err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}

	fresh, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	ledger, err := fs.LedgerBalance(u.ID)
	if err != nil {
		t.Fatalf("ledger balance: %v", err)
	}
	if !fresh.Wallet.Equal(ledger) {
		t.Errorf("wallet %s != ledger %s", fresh.Wallet, ledger)
	}
	if !ledger.Equal(decimal.NewFromInt(85)) {
		t.Errorf("ledger = %s, want 85", ledger)
	}
}

func TestAdminFinanceTotals(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	a := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	b := createTestUser(t, us, "Bob", "bob@example.com", model.RoleUser)

	fundWallet(t, ts, a.ID, 100)
	fundWallet(t, ts, b.ID, 50)
	w, err := fs.RequestWithdrawal(a.ID, decimal.NewFromInt(30))
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if _, err := fs.ApproveWithdrawal(w.ID); err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}
	// A pending withdrawal does not count toward the total.
	if _, err := fs.RequestWithdrawal(b.ID, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("request pending withdrawal: %v", err)
	}

	finance, err := fs.AdminFinance()
	if err != nil {
		t.Fatalf("admin finance: %v", err)
	}
	if len(finance.Users) != 2 {
		t.Errorf("users = %d, want 2", len(finance.Users))
	}
	if !finance.TotalEarnings.Equal(decimal.NewFromInt(150)) {
		t.Errorf("total earnings = %s, want 150", finance.TotalEarnings)
	}
	if !finance.TotalWithdrawals.Equal(decimal.NewFromInt(30)) {
		t.Errorf("total withdrawals = %s, want 30", finance.TotalWithdrawals)
	}
}

func TestListWithdrawalsJoinsUser(t *testing.T) {
	ts, us, fs := setupTaskStores(t)
	u := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	fundWallet(t, ts, u.ID, 100)

	if _, err := fs.RequestWithdrawal(u.ID, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	list, err := fs.ListWithdrawals()
	if err != nil {
		t.Fatalf("list withdrawals: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].UserName != "Alice" || list[0].UserEmail != "alice@example.com" {
		t.Errorf("joined user = %q %q", list[0].UserName, list[0].UserEmail)
	}
}

func TestResolveUnknownWithdrawal(t *testing.T) {
	_, _, fs := setupTaskStores(t)

	_, err := fs.ApproveWithdrawal(9999)
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeNotFound {
		t.Errorf("approve err = %v, want not_found", err)
	}
	_, err = fs.RejectWithdrawal(9999)
	if ae := apperr.From(err); ae == nil || ae.Code != apperr.CodeNotFound {
		t.Errorf("reject err = %v, want not_found", err)
	}
}
