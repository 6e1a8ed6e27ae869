package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
)

// ListFilter narrows transaction listings. Zero fields mean "no filter".
type ListFilter struct {
	From      *time.Time
	To        *time.Time
	AccountID *int64
	Limit     int
}

// Tx is the handle a unit of work receives inside Store.RunAtomic. Reads see
// a consistent snapshot; writes become visible only when the unit commits.
type Tx interface {
	// AccountsForUpdate loads the given accounts with exclusive row access
	// for the remainder of the unit. Absent ids are simply missing from the
	// returned map. Callers must pass ids in ascending order (Transaction.LockIDs).
	AccountsForUpdate(ctx context.Context, userID uuid.UUID, ids ...int64) (map[int64]*domain.Account, error)
	SaveAccount(ctx context.Context, account *domain.Account) error
	DeleteAccount(ctx context.Context, userID uuid.UUID, id int64) error
	// CountAccountRefs counts transactions referencing the account as source
	// or destination.
	CountAccountRefs(ctx context.Context, userID uuid.UUID, accountID int64) (int64, error)

	Transaction(ctx context.Context, userID uuid.UUID, id int64) (*domain.Transaction, error)
	// TransactionByRef resolves a transaction by its external reference,
	// returning domain.ErrTransactionNotFound when absent.
	TransactionByRef(ctx context.Context, userID uuid.UUID, refID uuid.UUID) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, tran *domain.Transaction) error
	UpdateTransaction(ctx context.Context, tran *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
}

// Store is the ledger persistence port. RunAtomic executes fn as one
// all-or-nothing unit and transparently re-runs it from scratch on transient
// storage failures, so fn must be free of side effects outside the store.
type Store interface {
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error

	GetAccount(ctx context.Context, userID uuid.UUID, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	CreateAccount(ctx context.Context, account *domain.Account) error
	TotalBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)

	GetTransaction(ctx context.Context, userID uuid.UUID, id int64) (*TransactionView, error)
	// ListTransactions returns views ordered newest transaction-date first.
	ListTransactions(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]TransactionView, error)
	// ExpensesByCategory sums expense amounts per category over [from, to).
	ExpensesByCategory(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]CategoryExpense, error)
	// SumAmountByKind sums transaction amounts of one kind over [from, to).
	SumAmountByKind(ctx context.Context, userID uuid.UUID, kind domain.Kind, from, to time.Time) (decimal.Decimal, error)
}
