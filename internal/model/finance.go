package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

const (
	WithdrawalPending  = "Pending"
	WithdrawalApproved = "Approved"
	WithdrawalRejected = "Rejected"
)

// Transaction is an append-only ledger entry. TaskID survives task deletion
// as a dangling reference so financial history stays intact.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	TaskID      *int64          `json:"task_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Withdrawal struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WithdrawalWithUser joins the requesting user onto a withdrawal for the
// admin review list.
type WithdrawalWithUser struct {
	Withdrawal
	UserName   string          `json:"user_name"`
	UserEmail  string          `json:"user_email"`
	UserWallet decimal.Decimal `json:"user_wallet"`
}

// UserFinance is the per-user finance overview.
type UserFinance struct {
	Wallet       decimal.Decimal `json:"wallet"`
	Transactions []Transaction   `json:"transactions"`
	Withdrawals  []Withdrawal    `json:"withdrawals"`
}

// AdminFinance is the aggregate finance overview.
type AdminFinance struct {
	Users            []User          `json:"users"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
}
