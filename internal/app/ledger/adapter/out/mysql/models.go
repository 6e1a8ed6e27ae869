package mysql

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
)

// sqlAccount maps the accounts table.
type sqlAccount struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	UserID    string          `gorm:"column:user_id;type:char(36);index"`
	Name      string          `gorm:"size:100"`
	Type      string          `gorm:"size:50"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2)"`
	Color     string          `gorm:"size:7"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction maps the transactions table. It references accounts twice:
// account_id is the source, to_account_id the transfer destination.
type sqlTransaction struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	RefID           string          `gorm:"column:ref_id;type:char(36);uniqueIndex"`
	UserID          string          `gorm:"column:user_id;type:char(36);index"`
	AccountID       int64           `gorm:"index"`
	ToAccountID     *int64          `gorm:"index"`
	Description     string          `gorm:"size:200"`
	Category        string          `gorm:"size:50;index"`
	Kind            string          `gorm:"column:type;size:20"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)"`
	TransactionDate time.Time       `gorm:"index"`
	Notes           string          `gorm:"size:500"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

func (a *sqlAccount) toDomain() (*domain.Account, error) {
	userID, err := uuid.Parse(a.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:        a.ID,
		UserID:    userID,
		Name:      a.Name,
		Type:      a.Type,
		Balance:   a.Balance,
		Color:     a.Color,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}, nil
}

func accountToSQL(a *domain.Account) *sqlAccount {
	return &sqlAccount{
		ID:        a.ID,
		UserID:    a.UserID.String(),
		Name:      a.Name,
		Type:      a.Type,
		Balance:   a.Balance,
		Color:     a.Color,
		CreatedAt: a.CreatedAt,
	}
}

func (t *sqlTransaction) toDomain() (*domain.Transaction, error) {
	refID, err := uuid.Parse(t.RefID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(t.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		ID:              t.ID,
		RefID:           refID,
		UserID:          userID,
		AccountID:       t.AccountID,
		ToAccountID:     t.ToAccountID,
		Description:     t.Description,
		Category:        t.Category,
		Kind:            domain.Kind(t.Kind),
		Amount:          t.Amount,
		TransactionDate: t.TransactionDate,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}, nil
}

func transactionToSQL(t *domain.Transaction) *sqlTransaction {
	return &sqlTransaction{
		ID:              t.ID,
		RefID:           t.RefID.String(),
		UserID:          t.UserID.String(),
		AccountID:       t.AccountID,
		ToAccountID:     t.ToAccountID,
		Description:     t.Description,
		Category:        t.Category,
		Kind:            string(t.Kind),
		Amount:          t.Amount,
		TransactionDate: t.TransactionDate,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
	}
}
