// Package mysql is the MySQL-backed ledger store. Atomic units run inside a
// database transaction with row-level locks on the touched accounts; the
// whole unit is transparently re-run on transient failures.
package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
	"github.com/fintrackhq/fintrack/internal/app/ledger/usecase"
	"github.com/fintrackhq/fintrack/pkg/backoff"
	"github.com/fintrackhq/fintrack/pkg/mysql"
)

type Store struct {
	client *mysql.Client
	retry  backoff.Policy
	log    zerolog.Logger
}

func NewStore(client *mysql.Client, retry backoff.Policy, log zerolog.Logger) *Store {
	return &Store{
		client: client,
		retry:  retry,
		log:    log,
	}
}

// RunAtomic executes fn inside a database transaction. On deadlock, lock wait
// timeout or a dropped connection the transaction is rolled back and fn is
// re-run from scratch, bounded by the retry policy.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx usecase.Tx) error) error {
	attempt := 0
	return backoff.Retry(ctx, s.retry, IsTransient, func() error {
		attempt++
		if attempt > 1 {
			s.log.Warn().Int("attempt", attempt).Msg("re-running atomic unit after transient failure")
		}
		return s.client.DB().WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return fn(&storeTx{db: db})
		})
	})
}

// storeTx adapts one open gorm transaction to the usecase.Tx port.
type storeTx struct {
	db *gorm.DB
}

func (t *storeTx) AccountsForUpdate(ctx context.Context, userID uuid.UUID, ids ...int64) (map[int64]*domain.Account, error) {
	var rows []sqlAccount
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ? AND user_id = ?", ids, userID.String()).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	accounts := make(map[int64]*domain.Account, len(rows))
	for i := range rows {
		account, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		accounts[account.ID] = account
	}
	return accounts, nil
}

func (t *storeTx) SaveAccount(ctx context.Context, account *domain.Account) error {
	return t.db.WithContext(ctx).Save(accountToSQL(account)).Error
}

func (t *storeTx) DeleteAccount(ctx context.Context, userID uuid.UUID, id int64) error {
	result := t.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID.String()).
		Delete(&sqlAccount{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (t *storeTx) CountAccountRefs(ctx context.Context, userID uuid.UUID, accountID int64) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).
		Model(&sqlTransaction{}).
		Where("user_id = ? AND (account_id = ? OR to_account_id = ?)", userID.String(), accountID, accountID).
		Count(&count).Error
	return count, err
}

func (t *storeTx) Transaction(ctx context.Context, userID uuid.UUID, id int64) (*domain.Transaction, error) {
	var row sqlTransaction
	err := t.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (t *storeTx) TransactionByRef(ctx context.Context, userID uuid.UUID, refID uuid.UUID) (*domain.Transaction, error) {
	var row sqlTransaction
	err := t.db.WithContext(ctx).
		Where("ref_id = ? AND user_id = ?", refID.String(), userID.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (t *storeTx) CreateTransaction(ctx context.Context, tran *domain.Transaction) error {
	row := transactionToSQL(tran)
	row.ID = 0
	if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
		if IsDuplicateKey(err) {
			return domain.ErrDuplicateReference
		}
		return err
	}
	tran.ID = row.ID
	return nil
}

func (t *storeTx) UpdateTransaction(ctx context.Context, tran *domain.Transaction) error {
	return t.db.WithContext(ctx).Save(transactionToSQL(tran)).Error
}

func (t *storeTx) DeleteTransaction(ctx context.Context, id int64) error {
	result := t.db.WithContext(ctx).Delete(&sqlTransaction{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, userID uuid.UUID, id int64) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	var rows []sqlAccount
	err := s.client.DB().WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(rows))
	for i := range rows {
		account, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	row := accountToSQL(account)
	row.ID = 0
	if err := s.client.DB().WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	account.ID = row.ID
	account.CreatedAt = row.CreatedAt
	account.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) TotalBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.client.DB().WithContext(ctx).
		Model(&sqlAccount{}).
		Select("COALESCE(SUM(balance), 0)").
		Where("user_id = ?", userID.String()).
		Scan(&total).Error
	return total, err
}

// transactionViewRow is the join shape used to resolve account display names.
type transactionViewRow struct {
	sqlTransaction
	AccountName   string
	ToAccountName *string
}

func (s *Store) viewQuery(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return s.client.DB().WithContext(ctx).
		Table("transactions AS t").
		Select("t.*, a.name AS account_name, b.name AS to_account_name").
		Joins("JOIN accounts a ON a.id = t.account_id").
		Joins("LEFT JOIN accounts b ON b.id = t.to_account_id").
		Where("t.user_id = ?", userID.String())
}

func (row *transactionViewRow) toView() (*usecase.TransactionView, error) {
	tran, err := row.sqlTransaction.toDomain()
	if err != nil {
		return nil, err
	}
	view := &usecase.TransactionView{
		ID:              tran.ID,
		RefID:           tran.RefID,
		AccountID:       tran.AccountID,
		AccountName:     row.AccountName,
		ToAccountID:     tran.ToAccountID,
		Description:     tran.Description,
		Category:        tran.Category,
		Kind:            tran.Kind,
		Amount:          tran.Amount,
		TransactionDate: tran.TransactionDate,
		Notes:           tran.Notes,
		CreatedAt:       tran.CreatedAt,
	}
	if row.ToAccountName != nil {
		view.ToAccountName = *row.ToAccountName
	}
	return view, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID uuid.UUID, id int64) (*usecase.TransactionView, error) {
	var rows []transactionViewRow
	err := s.viewQuery(ctx, userID).
		Where("t.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return rows[0].toView()
}

func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, filter usecase.ListFilter) ([]usecase.TransactionView, error) {
	query := s.viewQuery(ctx, userID)
	if filter.From != nil {
		query = query.Where("t.transaction_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("t.transaction_date <= ?", *filter.To)
	}
	if filter.AccountID != nil {
		query = query.Where("t.account_id = ? OR t.to_account_id = ?", *filter.AccountID, *filter.AccountID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []transactionViewRow
	if err := query.Order("t.transaction_date DESC, t.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]usecase.TransactionView, 0, len(rows))
	for i := range rows {
		view, err := rows[i].toView()
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *Store) ExpensesByCategory(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]usecase.CategoryExpense, error) {
	var rows []usecase.CategoryExpense
	err := s.client.DB().WithContext(ctx).
		Model(&sqlTransaction{}).
		Select("category, SUM(amount) AS amount").
		Where("user_id = ? AND type = ? AND transaction_date >= ? AND transaction_date < ?",
			userID.String(), string(domain.KindExpense), from, to).
		Group("category").
		Scan(&rows).Error
	return rows, err
}

func (s *Store) SumAmountByKind(ctx context.Context, userID uuid.UUID, kind domain.Kind, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.client.DB().WithContext(ctx).
		Model(&sqlTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND transaction_date >= ? AND transaction_date < ?",
			userID.String(), string(kind), from, to).
		Scan(&total).Error
	return total, err
}

var _ usecase.Store = (*Store)(nil)
