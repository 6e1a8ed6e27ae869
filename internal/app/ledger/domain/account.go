package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultAccountColor is applied when the caller does not pick one.
const DefaultAccountColor = "#3b82f6"

// Account is a single mutable balance owned by one user. Transactions
// reference accounts by id; an account never embeds its transactions.
type Account struct {
	ID        int64           `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Name      string          `json:"name"`
	Type      string          `json:"type"` // checking, savings, ewallet, cash, investment
	Balance   decimal.Decimal `json:"balance"`
	Color     string          `json:"color"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func NewAccount(userID uuid.UUID, name, accountType string, balance decimal.Decimal, color string) *Account {
	if color == "" {
		color = DefaultAccountColor
	}
	return &Account{
		UserID:  userID,
		Name:    name,
		Type:    accountType,
		Balance: balance,
		Color:   color,
	}
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Debit subtracts amount from the balance, refusing to overdraw.
func (a *Account) Debit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// ValidateAmount enforces the money contract: strictly positive, at most
// two fractional digits. The semantic sign is derived from the transaction
// kind, never stored negative.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrAmountMustBePositive
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrAmountPrecision
	}
	return nil
}
