package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/model"
)

// FinanceStore owns the wallet ledger: transactions, withdrawals, and every
// wallet mutation outside of earning approval. The cached wallet column is a
// materialized view of the transaction log; LedgerBalance exists to check
// the two against each other.
type FinanceStore struct {
	db *sql.DB
}

func NewFinanceStore(db *sql.DB) *FinanceStore {
	return &FinanceStore{db: db}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var taskID sql.NullInt64
	err := scanner.Scan(&t.ID, &t.UserID, &taskID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if taskID.Valid {
		t.TaskID = &taskID.Int64
	}
	return &t, nil
}

const transactionCols = `id, user_id, task_id, amount, type, description, created_at`

func scanWithdrawal(scanner interface{ Scan(...any) error }) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := scanner.Scan(&w.ID, &w.UserID, &w.Amount, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const withdrawalCols = `id, user_id, amount, status, created_at, updated_at`

// RequestWithdrawal creates a pending withdrawal after checking the balance
// at request time. The balance is checked again at resolution time; between
// the two the wallet may move.
func (s *FinanceStore) RequestWithdrawal(userID int64, amount decimal.Decimal) (*model.Withdrawal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("amount must be greater than zero")
	}

	var wallet decimal.Decimal
	err := s.db.QueryRow(`SELECT wallet FROM users WHERE id = ?`, userID).Scan(&wallet)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	if wallet.LessThan(amount) {
		return nil, apperr.InsufficientFunds("insufficient balance")
	}

	result, err := s.db.Exec(
		`INSERT INTO withdrawals (user_id, amount) VALUES (?, ?)`,
		userID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetWithdrawal(id)
}

func (s *FinanceStore) GetWithdrawal(id int64) (*model.Withdrawal, error) {
	row := s.db.QueryRow(`SELECT `+withdrawalCols+` FROM withdrawals WHERE id = ?`, id)
	w, err := scanWithdrawal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// ListWithdrawals returns every withdrawal newest-first, joined with the
// requesting user for the admin review screen.
func (s *FinanceStore) ListWithdrawals() ([]model.WithdrawalWithUser, error) {
	rows, err := s.db.Query(
		`SELECT w.id, w.user_id, w.amount, w.status, w.created_at, w.updated_at, u.name, u.email, u.wallet
		 FROM withdrawals w JOIN users u ON u.id = w.user_id
		 ORDER BY w.created_at DESC, w.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []model.WithdrawalWithUser
	for rows.Next() {
		var w model.WithdrawalWithUser
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.Status, &w.CreatedAt, &w.UpdatedAt,
			&w.UserName, &w.UserEmail, &w.UserWallet,
		); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

// ApproveWithdrawal debits the wallet and marks the withdrawal approved in
// one transaction. The debit is a conditional update that only matches when
// the balance still covers the amount, so a stale request-time check can
// never drive the wallet negative.
func (s *FinanceStore) ApproveWithdrawal(id int64) (*model.Withdrawal, error) {
	w, err := s.GetWithdrawal(id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.NotFound("withdrawal not found")
	}
	if w.Status != model.WithdrawalPending {
		return nil, apperr.Conflict("withdrawal already processed")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE withdrawals SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		model.WithdrawalApproved, id, model.WithdrawalPending,
	)
	if err != nil {
		return nil, fmt.Errorf("mark approved: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, apperr.Conflict("withdrawal already processed")
	}

	result, err = tx.Exec(
		`UPDATE users SET wallet = wallet - CAST(? AS NUMERIC), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND wallet >= CAST(? AS NUMERIC)`,
		w.Amount, w.UserID, w.Amount,
	)
	if err != nil {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Rolls back the status flip too.
		return nil, apperr.InsufficientFunds("insufficient wallet balance")
	}

	if _, err := tx.Exec(
		`INSERT INTO transactions (user_id, amount, type, description) VALUES (?, ?, ?, ?)`,
		w.UserID, w.Amount, model.TransactionDebit, "Withdrawal approved",
	); err != nil {
		return nil, fmt.Errorf("insert debit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetWithdrawal(id)
}

// RejectWithdrawal marks a pending withdrawal rejected. No wallet effect.
func (s *FinanceStore) RejectWithdrawal(id int64) (*model.Withdrawal, error) {
	w, err := s.GetWithdrawal(id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.NotFound("withdrawal not found")
	}

	result, err := s.db.Exec(
		`UPDATE withdrawals SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		model.WithdrawalRejected, id, model.WithdrawalPending,
	)
	if err != nil {
		return nil, fmt.Errorf("mark rejected: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, apperr.Conflict("withdrawal already processed")
	}
	return s.GetWithdrawal(id)
}

// UserFinance returns the wallet, transaction history, and withdrawal
// history for one user, newest entries first.
func (s *FinanceStore) UserFinance(userID int64) (*model.UserFinance, error) {
	var wallet decimal.Decimal
	err := s.db.QueryRow(`SELECT wallet FROM users WHERE id = ?`, userID).Scan(&wallet)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}

	txRows, err := s.db.Query(
		`SELECT `+transactionCols+` FROM transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer txRows.Close()

	finance := &model.UserFinance{
		Wallet:       wallet,
		Transactions: []model.Transaction{},
		Withdrawals:  []model.Withdrawal{},
	}
	for txRows.Next() {
		t, err := scanTransaction(txRows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		finance.Transactions = append(finance.Transactions, *t)
	}
	if err := txRows.Err(); err != nil {
		return nil, err
	}

	wRows, err := s.db.Query(
		`SELECT `+withdrawalCols+` FROM withdrawals WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer wRows.Close()
	for wRows.Next() {
		w, err := scanWithdrawal(wRows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		finance.Withdrawals = append(finance.Withdrawals, *w)
	}
	return finance, wRows.Err()
}

// AdminFinance returns the aggregate totals and the user/wallet roster.
func (s *FinanceStore) AdminFinance() (*model.AdminFinance, error) {
	finance := &model.AdminFinance{Users: []model.User{}}

	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		finance.Users = append(finance.Users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = ?`,
		model.TransactionCredit,
	).Scan(&finance.TotalEarnings)
	if err != nil {
		return nil, fmt.Errorf("sum earnings: %w", err)
	}

	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE status = ?`,
		model.WithdrawalApproved,
	).Scan(&finance.TotalWithdrawals)
	if err != nil {
		return nil, fmt.Errorf("sum withdrawals: %w", err)
	}

	return finance, nil
}

// LedgerBalance recomputes a user's balance from the transaction log:
// credits minus debits. The cached wallet column must always equal this.
func (s *FinanceStore) LedgerBalance(userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)
		 FROM transactions WHERE user_id = ?`,
		model.TransactionCredit, userID,
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger: %w", err)
	}
	return balance, nil
}
