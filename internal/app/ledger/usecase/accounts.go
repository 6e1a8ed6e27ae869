package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
)

// AccountService handles account metadata CRUD. Balance mutation driven by
// transactions belongs to the Coordinator; this service only covers direct
// edits and the caller-supplied initial balance.
type AccountService struct {
	store Store
	log   zerolog.Logger
}

func NewAccountService(store Store, log zerolog.Logger) *AccountService {
	return &AccountService{
		store: store,
		log:   log,
	}
}

type CreateAccountRequest struct {
	Name    string
	Type    string
	Balance decimal.Decimal
	Color   string
}

type UpdateAccountRequest struct {
	Name    *string
	Type    *string
	Balance *decimal.Decimal
	Color   *string
}

func (s *AccountService) Create(ctx context.Context, userID uuid.UUID, req CreateAccountRequest) (*domain.Account, error) {
	if !req.Balance.Equal(req.Balance.Round(2)) {
		return nil, domain.ErrAmountPrecision
	}
	account := domain.NewAccount(userID, req.Name, req.Type, req.Balance, req.Color)
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.log.Info().Int64("account_id", account.ID).Str("name", account.Name).Msg("account created")
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, userID uuid.UUID, id int64) (*domain.Account, error) {
	return s.store.GetAccount(ctx, userID, id)
}

func (s *AccountService) List(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

// Update applies direct edits, including a balance override. An override is a
// deliberate correction and bypasses the posting protocol.
func (s *AccountService) Update(ctx context.Context, userID uuid.UUID, id int64, req UpdateAccountRequest) (*domain.Account, error) {
	if req.Balance != nil && !req.Balance.Equal(req.Balance.Round(2)) {
		return nil, domain.ErrAmountPrecision
	}
	err := s.store.RunAtomic(ctx, func(tx Tx) error {
		accounts, err := tx.AccountsForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		account, ok := accounts[id]
		if !ok {
			return domain.ErrAccountNotFound
		}
		if req.Name != nil {
			account.Name = *req.Name
		}
		if req.Type != nil {
			account.Type = *req.Type
		}
		if req.Balance != nil {
			account.Balance = *req.Balance
		}
		if req.Color != nil {
			account.Color = *req.Color
		}
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, userID, id)
}

// Delete removes an account, refusing while any transaction still references
// it as source or destination.
func (s *AccountService) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	return s.store.RunAtomic(ctx, func(tx Tx) error {
		accounts, err := tx.AccountsForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if _, ok := accounts[id]; !ok {
			return domain.ErrAccountNotFound
		}
		refs, err := tx.CountAccountRefs(ctx, userID, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrAccountHasTransactions
		}
		return tx.DeleteAccount(ctx, userID, id)
	})
}

// TotalBalance sums all account balances for one user.
func (s *AccountService) TotalBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.store.TotalBalance(ctx, userID)
}
