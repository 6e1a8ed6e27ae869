package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
)

// Reports serves the read-only aggregation views over the ledger. Percentages
// and totals are pure functions of stored sums, computed on every call.
type Reports struct {
	store Store
}

func NewReports(store Store) *Reports {
	return &Reports{store: store}
}

// ExpensesByCategory returns per-category expense sums for the given month
// with each category's share of the total, descending by amount.
func (r *Reports) ExpensesByCategory(ctx context.Context, userID uuid.UUID, month time.Month, year int) ([]CategoryExpense, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := r.store.ExpensesByCategory(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	for i := range rows {
		if total.Sign() > 0 {
			rows[i].Percentage, _ = rows[i].Amount.Div(total).Mul(decimal.NewFromInt(100)).Float64()
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Amount.GreaterThan(rows[j].Amount)
	})
	return rows, nil
}

// MonthlyReport returns the income and expense totals for the chosen month
// along with the per-category expense breakdown.
func (r *Reports) MonthlyReport(ctx context.Context, userID uuid.UUID, month time.Month, year int) (*MonthlyReport, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	income, err := r.store.SumAmountByKind(ctx, userID, domain.KindIncome, from, to)
	if err != nil {
		return nil, err
	}
	expense, err := r.store.SumAmountByKind(ctx, userID, domain.KindExpense, from, to)
	if err != nil {
		return nil, err
	}
	byCategory, err := r.ExpensesByCategory(ctx, userID, month, year)
	if err != nil {
		return nil, err
	}

	return &MonthlyReport{
		Month:             int(month),
		Year:              year,
		TotalIncome:       income,
		TotalExpense:      expense,
		NetSavings:        income.Sub(expense),
		ExpenseByCategory: byCategory,
	}, nil
}

// Summary builds the dashboard aggregate for the current month.
func (r *Reports) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	total, err := r.store.TotalBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	income, err := r.store.SumAmountByKind(ctx, userID, domain.KindIncome, from, to)
	if err != nil {
		return nil, err
	}
	expense, err := r.store.SumAmountByKind(ctx, userID, domain.KindExpense, from, to)
	if err != nil {
		return nil, err
	}
	accounts, err := r.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := r.store.ListTransactions(ctx, userID, ListFilter{Limit: 10})
	if err != nil {
		return nil, err
	}
	byCategory, err := r.ExpensesByCategory(ctx, userID, now.Month(), now.Year())
	if err != nil {
		return nil, err
	}

	return &Summary{
		TotalBalance:       total,
		MonthlyIncome:      income,
		MonthlyExpense:     expense,
		Accounts:           accounts,
		RecentTransactions: recent,
		ExpenseByCategory:  byCategory,
	}, nil
}
