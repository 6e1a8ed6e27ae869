// Package memory is the in-memory ledger store. A single mutex serializes
// atomic units, so a unit never observes another unit's partial writes; each
// unit stages copies and commits by swapping them in. Committed change-sets
// are appended to an optional WAL and replayed on startup.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
	"github.com/fintrackhq/fintrack/internal/app/ledger/usecase"
	"github.com/fintrackhq/fintrack/pkg/wal"
)

type Store struct {
	mu                sync.RWMutex
	accounts          map[int64]*domain.Account
	transactions      map[int64]*domain.Transaction
	byRef             map[uuid.UUID]int64
	nextAccountID     int64
	nextTransactionID int64

	wal *wal.WAL
	log zerolog.Logger
}

// changeSet is one committed unit, as persisted to the WAL.
type changeSet struct {
	Accounts            []domain.Account     `json:"accounts,omitempty"`
	DeletedAccounts     []int64              `json:"deletedAccounts,omitempty"`
	Transactions        []domain.Transaction `json:"transactions,omitempty"`
	DeletedTransactions []int64              `json:"deletedTransactions,omitempty"`
}

// NewStore builds a store, replaying journal when non-nil.
func NewStore(journal *wal.WAL, log zerolog.Logger) (*Store, error) {
	s := &Store{
		accounts:          make(map[int64]*domain.Account),
		transactions:      make(map[int64]*domain.Transaction),
		byRef:             make(map[uuid.UUID]int64),
		nextAccountID:     1,
		nextTransactionID: 1,
		wal:               journal,
		log:               log,
	}
	if journal != nil {
		if err := s.recover(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) recover() error {
	replayed := 0
	err := s.wal.ReadAll(func(raw []byte) error {
		var cs changeSet
		if err := json.Unmarshal(raw, &cs); err != nil {
			return err
		}
		s.apply(&cs)
		replayed++
		return nil
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		s.log.Info().Int("change_sets", replayed).Msg("ledger state recovered from journal")
	}
	return nil
}

// apply installs one committed change-set. Callers hold the write lock, or
// run single-threaded during recovery.
func (s *Store) apply(cs *changeSet) {
	for i := range cs.Accounts {
		account := cs.Accounts[i]
		s.accounts[account.ID] = &account
		if account.ID >= s.nextAccountID {
			s.nextAccountID = account.ID + 1
		}
	}
	for _, id := range cs.DeletedAccounts {
		delete(s.accounts, id)
	}
	for i := range cs.Transactions {
		tran := cs.Transactions[i]
		s.transactions[tran.ID] = &tran
		s.byRef[tran.RefID] = tran.ID
		if tran.ID >= s.nextTransactionID {
			s.nextTransactionID = tran.ID + 1
		}
	}
	for _, id := range cs.DeletedTransactions {
		if tran, ok := s.transactions[id]; ok {
			delete(s.byRef, tran.RefID)
			delete(s.transactions, id)
		}
	}
}

// RunAtomic runs fn under the store lock against staged copies. On error the
// staged writes are discarded; on success they are journaled and swapped in.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx usecase.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{
		store:           s,
		accounts:        make(map[int64]*domain.Account),
		dirtyAccounts:   make(map[int64]bool),
		written:         make(map[int64]*domain.Transaction),
		deletedTrans:    make(map[int64]struct{}),
		deletedAccounts: make(map[int64]struct{}),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *storeTx) error {
	now := time.Now().UTC()

	cs := changeSet{}
	for _, account := range tx.accounts {
		if !tx.dirtyAccounts[account.ID] {
			continue
		}
		account.UpdatedAt = now
		cs.Accounts = append(cs.Accounts, *account)
	}
	for _, tran := range tx.written {
		tran.UpdatedAt = now
		if tran.CreatedAt.IsZero() {
			tran.CreatedAt = now
		}
		cs.Transactions = append(cs.Transactions, *tran)
	}
	for id := range tx.deletedTrans {
		cs.DeletedTransactions = append(cs.DeletedTransactions, id)
	}
	for id := range tx.deletedAccounts {
		cs.DeletedAccounts = append(cs.DeletedAccounts, id)
	}

	if s.wal != nil {
		if err := s.wal.Append(&cs); err != nil {
			return err
		}
	}
	s.apply(&cs)
	return nil
}

// storeTx stages a unit's reads and writes. All methods run with the store
// lock held by RunAtomic.
type storeTx struct {
	store           *Store
	accounts        map[int64]*domain.Account
	dirtyAccounts   map[int64]bool
	written         map[int64]*domain.Transaction
	deletedTrans    map[int64]struct{}
	deletedAccounts map[int64]struct{}
}

func (t *storeTx) AccountsForUpdate(ctx context.Context, userID uuid.UUID, ids ...int64) (map[int64]*domain.Account, error) {
	out := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		if _, gone := t.deletedAccounts[id]; gone {
			continue
		}
		if staged, ok := t.accounts[id]; ok {
			out[id] = staged
			continue
		}
		stored, ok := t.store.accounts[id]
		if !ok || stored.UserID != userID {
			continue
		}
		copied := *stored
		t.accounts[id] = &copied
		out[id] = &copied
	}
	return out, nil
}

func (t *storeTx) SaveAccount(ctx context.Context, account *domain.Account) error {
	t.accounts[account.ID] = account
	t.dirtyAccounts[account.ID] = true
	return nil
}

func (t *storeTx) DeleteAccount(ctx context.Context, userID uuid.UUID, id int64) error {
	stored, ok := t.store.accounts[id]
	if _, staged := t.accounts[id]; !staged && (!ok || stored.UserID != userID) {
		return domain.ErrAccountNotFound
	}
	delete(t.accounts, id)
	delete(t.dirtyAccounts, id)
	t.deletedAccounts[id] = struct{}{}
	return nil
}

func (t *storeTx) CountAccountRefs(ctx context.Context, userID uuid.UUID, accountID int64) (int64, error) {
	refs := func(tran *domain.Transaction) bool {
		if tran.UserID != userID {
			return false
		}
		if tran.AccountID == accountID {
			return true
		}
		return tran.ToAccountID != nil && *tran.ToAccountID == accountID
	}

	var count int64
	for id, tran := range t.store.transactions {
		if _, gone := t.deletedTrans[id]; gone {
			continue
		}
		if _, rewritten := t.written[id]; rewritten {
			continue
		}
		if refs(tran) {
			count++
		}
	}
	for _, tran := range t.written {
		if refs(tran) {
			count++
		}
	}
	return count, nil
}

func (t *storeTx) Transaction(ctx context.Context, userID uuid.UUID, id int64) (*domain.Transaction, error) {
	if _, gone := t.deletedTrans[id]; gone {
		return nil, domain.ErrTransactionNotFound
	}
	if staged, ok := t.written[id]; ok {
		if staged.UserID != userID {
			return nil, domain.ErrTransactionNotFound
		}
		return staged, nil
	}
	stored, ok := t.store.transactions[id]
	if !ok || stored.UserID != userID {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *stored
	return &copied, nil
}

func (t *storeTx) TransactionByRef(ctx context.Context, userID uuid.UUID, refID uuid.UUID) (*domain.Transaction, error) {
	for _, tran := range t.written {
		if tran.RefID == refID && tran.UserID == userID {
			return tran, nil
		}
	}
	id, ok := t.store.byRef[refID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return t.Transaction(ctx, userID, id)
}

func (t *storeTx) CreateTransaction(ctx context.Context, tran *domain.Transaction) error {
	// The reference is unique across all users, like the ref_id unique index
	// in the relational schema. TransactionByRef scopes by owner, so another
	// user's ref must be rejected here rather than silently remapped.
	if id, ok := t.store.byRef[tran.RefID]; ok {
		if _, gone := t.deletedTrans[id]; !gone {
			return domain.ErrDuplicateReference
		}
	}
	for _, staged := range t.written {
		if staged.RefID == tran.RefID {
			return domain.ErrDuplicateReference
		}
	}

	tran.ID = t.store.nextTransactionID
	t.store.nextTransactionID++
	t.written[tran.ID] = tran
	return nil
}

func (t *storeTx) UpdateTransaction(ctx context.Context, tran *domain.Transaction) error {
	t.written[tran.ID] = tran
	return nil
}

func (t *storeTx) DeleteTransaction(ctx context.Context, id int64) error {
	if _, staged := t.written[id]; staged {
		delete(t.written, id)
		return nil
	}
	if _, ok := t.store.transactions[id]; !ok {
		return domain.ErrTransactionNotFound
	}
	t.deletedTrans[id] = struct{}{}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, userID uuid.UUID, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok || account.UserID != userID {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]domain.Account, 0)
	for _, account := range s.accounts {
		if account.UserID == userID {
			accounts = append(accounts, *account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Name < accounts[j].Name
	})
	return accounts, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	account.ID = s.nextAccountID
	s.nextAccountID++
	account.CreatedAt = now
	account.UpdatedAt = now

	cs := changeSet{Accounts: []domain.Account{*account}}
	if s.wal != nil {
		if err := s.wal.Append(&cs); err != nil {
			return err
		}
	}
	s.apply(&cs)
	return nil
}

func (s *Store) TotalBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, account := range s.accounts {
		if account.UserID == userID {
			total = total.Add(account.Balance)
		}
	}
	return total, nil
}

func (s *Store) toView(tran *domain.Transaction) *usecase.TransactionView {
	view := &usecase.TransactionView{
		ID:              tran.ID,
		RefID:           tran.RefID,
		AccountID:       tran.AccountID,
		ToAccountID:     tran.ToAccountID,
		Description:     tran.Description,
		Category:        tran.Category,
		Kind:            tran.Kind,
		Amount:          tran.Amount,
		TransactionDate: tran.TransactionDate,
		Notes:           tran.Notes,
		CreatedAt:       tran.CreatedAt,
	}
	if account, ok := s.accounts[tran.AccountID]; ok {
		view.AccountName = account.Name
	}
	if tran.ToAccountID != nil {
		if account, ok := s.accounts[*tran.ToAccountID]; ok {
			view.ToAccountName = account.Name
		}
	}
	return view
}

func (s *Store) GetTransaction(ctx context.Context, userID uuid.UUID, id int64) (*usecase.TransactionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tran, ok := s.transactions[id]
	if !ok || tran.UserID != userID {
		return nil, domain.ErrTransactionNotFound
	}
	return s.toView(tran), nil
}

func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, filter usecase.ListFilter) ([]usecase.TransactionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]usecase.TransactionView, 0)
	for _, tran := range s.transactions {
		if tran.UserID != userID {
			continue
		}
		if filter.From != nil && tran.TransactionDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tran.TransactionDate.After(*filter.To) {
			continue
		}
		if filter.AccountID != nil {
			touches := tran.AccountID == *filter.AccountID ||
				(tran.ToAccountID != nil && *tran.ToAccountID == *filter.AccountID)
			if !touches {
				continue
			}
		}
		views = append(views, *s.toView(tran))
	}

	sort.Slice(views, func(i, j int) bool {
		if !views[i].TransactionDate.Equal(views[j].TransactionDate) {
			return views[i].TransactionDate.After(views[j].TransactionDate)
		}
		return views[i].ID > views[j].ID
	})
	if filter.Limit > 0 && len(views) > filter.Limit {
		views = views[:filter.Limit]
	}
	return views, nil
}

func (s *Store) ExpensesByCategory(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]usecase.CategoryExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]decimal.Decimal)
	for _, tran := range s.transactions {
		if tran.UserID != userID || tran.Kind != domain.KindExpense {
			continue
		}
		if tran.TransactionDate.Before(from) || !tran.TransactionDate.Before(to) {
			continue
		}
		sums[tran.Category] = sums[tran.Category].Add(tran.Amount)
	}

	rows := make([]usecase.CategoryExpense, 0, len(sums))
	for category, amount := range sums {
		rows = append(rows, usecase.CategoryExpense{Category: category, Amount: amount})
	}
	return rows, nil
}

func (s *Store) SumAmountByKind(ctx context.Context, userID uuid.UUID, kind domain.Kind, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tran := range s.transactions {
		if tran.UserID != userID || tran.Kind != kind {
			continue
		}
		if tran.TransactionDate.Before(from) || !tran.TransactionDate.Before(to) {
			continue
		}
		total = total.Add(tran.Amount)
	}
	return total, nil
}

var _ usecase.Store = (*Store)(nil)
