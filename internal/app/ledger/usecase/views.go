package usecase

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
)

// TransactionView is a transaction resolved with account display names for
// presentation. Names are looked up, never embedded in the entity.
type TransactionView struct {
	ID              int64           `json:"id"`
	RefID           uuid.UUID       `json:"refId"`
	AccountID       int64           `json:"accountId"`
	AccountName     string          `json:"accountName"`
	ToAccountID     *int64          `json:"toAccountId,omitempty"`
	ToAccountName   string          `json:"toAccountName,omitempty"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Kind            domain.Kind     `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transactionDate"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// CategoryExpense is one row of the per-category expense breakdown.
// Percentage is computed from the stored sums, never persisted.
type CategoryExpense struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
}

// MonthlyReport aggregates one chosen month's activity.
type MonthlyReport struct {
	Month             int               `json:"month"`
	Year              int               `json:"year"`
	TotalIncome       decimal.Decimal   `json:"totalIncome"`
	TotalExpense      decimal.Decimal   `json:"totalExpense"`
	NetSavings        decimal.Decimal   `json:"netSavings"`
	ExpenseByCategory []CategoryExpense `json:"expenseByCategory"`
}

// Summary is the dashboard aggregate for one user.
type Summary struct {
	TotalBalance       decimal.Decimal   `json:"totalBalance"`
	MonthlyIncome      decimal.Decimal   `json:"monthlyIncome"`
	MonthlyExpense     decimal.Decimal   `json:"monthlyExpense"`
	Accounts           []domain.Account  `json:"accounts"`
	RecentTransactions []TransactionView `json:"recentTransactions"`
	ExpenseByCategory  []CategoryExpense `json:"expenseByCategory"`
}
