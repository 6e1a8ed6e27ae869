package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
)

type createTransactionRequest struct {
	RefID           string          `json:"refId"`
	AccountID       int64           `json:"accountId"`
	ToAccountID     *int64          `json:"toAccountId"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transactionDate"`
	Notes           string          `json:"notes"`
}

// updateTransactionRequest keeps the balance-affecting fields as pointers so
// their mere presence in a patch can be rejected.
type updateTransactionRequest struct {
	Description     *string          `json:"description"`
	Category        *string          `json:"category"`
	TransactionDate *time.Time       `json:"transactionDate"`
	Notes           *string          `json:"notes"`
	Amount          *decimal.Decimal `json:"amount"`
	Type            *string          `json:"type"`
	AccountID       *int64           `json:"accountId"`
	ToAccountID     *int64           `json:"toAccountId"`
}

type createAccountRequest struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
	Color   string          `json:"color"`
}

type updateAccountRequest struct {
	Name    *string          `json:"name"`
	Type    *string          `json:"type"`
	Balance *decimal.Decimal `json:"balance"`
	Color   *string          `json:"color"`
}

type accountResponse struct {
	ID        int64           `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Color     string          `json:"color"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Type:      a.Type,
		Balance:   a.Balance,
		Color:     a.Color,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAccountResponses(accounts []domain.Account) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, toAccountResponse(&accounts[i]))
	}
	return out
}
