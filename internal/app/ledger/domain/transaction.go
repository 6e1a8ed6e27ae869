package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of transaction kinds. Unknown values are rejected
// at the boundary and never reach the coordinator.
type Kind string

const (
	KindIncome   Kind = "income"
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"
)

// ParseKind maps a caller-supplied string onto the closed kind set.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIncome:
		return KindIncome, nil
	case KindExpense:
		return KindExpense, nil
	case KindTransfer:
		return KindTransfer, nil
	default:
		return "", ErrInvalidTransactionKind
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransfer:
		return true
	}
	return false
}

// Transaction is one ledger entry. AccountID is the source account;
// ToAccountID is set only for transfers.
type Transaction struct {
	ID              int64           `json:"id"`
	RefID           uuid.UUID       `json:"refId"` // external idempotency reference
	UserID          uuid.UUID       `json:"userId"`
	AccountID       int64           `json:"accountId"`
	ToAccountID     *int64          `json:"toAccountId,omitempty"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Kind            Kind            `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transactionDate"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// LockIDs returns the account ids this transaction touches, ascending,
// so concurrent units always lock rows in the same order.
func (t *Transaction) LockIDs() []int64 {
	ids := make([]int64, 0, 2)
	if t.Kind == KindTransfer && t.ToAccountID != nil {
		if t.AccountID < *t.ToAccountID {
			ids = append(ids, t.AccountID, *t.ToAccountID)
		} else {
			ids = append(ids, *t.ToAccountID, t.AccountID)
		}
		return ids
	}
	return append(ids, t.AccountID)
}
