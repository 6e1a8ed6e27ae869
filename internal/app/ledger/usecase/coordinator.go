package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
)

// Coordinator applies the posting protocol: every balance mutation and its
// transaction record change together inside one atomic unit, or not at all.
type Coordinator struct {
	store Store
	log   zerolog.Logger
}

func NewCoordinator(store Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store: store,
		log:   log,
	}
}

// CreateRequest carries a validated posting request. RefID is an optional
// client idempotency reference; when zero a fresh one is assigned.
type CreateRequest struct {
	RefID           uuid.UUID
	AccountID       int64
	ToAccountID     *int64
	Description     string
	Category        string
	Kind            domain.Kind
	Amount          decimal.Decimal
	TransactionDate time.Time
	Notes           string
}

// UpdateRequest patches the non-balance-affecting fields of a transaction.
// Amount, Kind and the account references are carried only so that a caller
// attempting to change them gets an explicit rejection.
type UpdateRequest struct {
	Description     *string
	Category        *string
	TransactionDate *time.Time
	Notes           *string

	Amount      *decimal.Decimal
	Kind        *string
	AccountID   *int64
	ToAccountID *int64
}

// Create posts a transaction and applies its balance effect atomically.
// Validation failures are detected before any write is issued.
func (c *Coordinator) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*TransactionView, error) {
	if !req.Kind.Valid() {
		return nil, domain.ErrInvalidTransactionKind
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Kind == domain.KindTransfer {
		if req.ToAccountID == nil {
			return nil, domain.ErrDestinationAccountMissing
		}
		if *req.ToAccountID == req.AccountID {
			return nil, domain.ErrSameAccountTransfer
		}
	}

	refID := req.RefID
	if refID == uuid.Nil {
		refID = uuid.New()
	}

	template := domain.Transaction{
		RefID:           refID,
		UserID:          userID,
		AccountID:       req.AccountID,
		Description:     req.Description,
		Category:        req.Category,
		Kind:            req.Kind,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate,
		Notes:           req.Notes,
	}
	if req.Kind == domain.KindTransfer {
		template.ToAccountID = req.ToAccountID
	}

	var created int64
	err := c.store.RunAtomic(ctx, func(tx Tx) error {
		// Idempotent replay: a retried request with the same reference must
		// not apply its balance effect twice.
		existing, err := tx.TransactionByRef(ctx, userID, refID)
		if err == nil {
			created = existing.ID
			return nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return err
		}

		accounts, err := tx.AccountsForUpdate(ctx, userID, template.LockIDs()...)
		if err != nil {
			return err
		}
		source, ok := accounts[req.AccountID]
		if !ok {
			return domain.ErrAccountNotFound
		}

		switch req.Kind {
		case domain.KindIncome:
			if err := source.Credit(req.Amount); err != nil {
				return err
			}
		case domain.KindExpense:
			if err := source.Debit(req.Amount); err != nil {
				return err
			}
		case domain.KindTransfer:
			destination, ok := accounts[*req.ToAccountID]
			if !ok {
				return domain.ErrAccountNotFound
			}
			if err := source.Debit(req.Amount); err != nil {
				return err
			}
			if err := destination.Credit(req.Amount); err != nil {
				return err
			}
			if err := tx.SaveAccount(ctx, destination); err != nil {
				return err
			}
		}

		if err := tx.SaveAccount(ctx, source); err != nil {
			return err
		}

		// Copy the template so a retried attempt starts from scratch.
		tran := template
		if err := tx.CreateTransaction(ctx, &tran); err != nil {
			return err
		}
		created = tran.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Int64("transaction_id", created).
		Str("kind", string(req.Kind)).
		Str("amount", req.Amount.String()).
		Msg("transaction posted")

	return c.store.GetTransaction(ctx, userID, created)
}

// Update patches description, category, date and notes. Any attempt to change
// amount, kind or account references is rejected: correcting those requires
// delete and recreate, so the balance effect is never silently stale.
func (c *Coordinator) Update(ctx context.Context, userID uuid.UUID, id int64, req UpdateRequest) (*TransactionView, error) {
	if req.Amount != nil || req.Kind != nil || req.AccountID != nil || req.ToAccountID != nil {
		return nil, domain.ErrImmutableField
	}

	err := c.store.RunAtomic(ctx, func(tx Tx) error {
		tran, err := tx.Transaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if req.Description != nil {
			tran.Description = *req.Description
		}
		if req.Category != nil {
			tran.Category = *req.Category
		}
		if req.TransactionDate != nil {
			tran.TransactionDate = *req.TransactionDate
		}
		if req.Notes != nil {
			tran.Notes = *req.Notes
		}
		return tx.UpdateTransaction(ctx, tran)
	})
	if err != nil {
		return nil, err
	}
	return c.store.GetTransaction(ctx, userID, id)
}

// Delete reverses the transaction's balance effect and removes the record in
// one atomic unit. Reversal uses plain arithmetic: undoing an income may
// legitimately drive a balance negative when the funds were already spent.
func (c *Coordinator) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	err := c.store.RunAtomic(ctx, func(tx Tx) error {
		tran, err := tx.Transaction(ctx, userID, id)
		if err != nil {
			return err
		}

		accounts, err := tx.AccountsForUpdate(ctx, userID, tran.LockIDs()...)
		if err != nil {
			return err
		}
		source, ok := accounts[tran.AccountID]
		if !ok {
			return domain.ErrLedgerInconsistency
		}

		switch tran.Kind {
		case domain.KindIncome:
			source.Balance = source.Balance.Sub(tran.Amount)
		case domain.KindExpense:
			source.Balance = source.Balance.Add(tran.Amount)
		case domain.KindTransfer:
			if tran.ToAccountID == nil {
				return domain.ErrLedgerInconsistency
			}
			destination, ok := accounts[*tran.ToAccountID]
			if !ok {
				// Destination vanished out-of-band. Refusing beats a
				// partial reversal.
				return domain.ErrLedgerInconsistency
			}
			source.Balance = source.Balance.Add(tran.Amount)
			destination.Balance = destination.Balance.Sub(tran.Amount)
			if err := tx.SaveAccount(ctx, destination); err != nil {
				return err
			}
		default:
			return domain.ErrLedgerInconsistency
		}

		if err := tx.SaveAccount(ctx, source); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, tran.ID)
	})
	if err != nil {
		return err
	}

	c.log.Info().Int64("transaction_id", id).Msg("transaction deleted")
	return nil
}

// Get returns one transaction view scoped by owner.
func (c *Coordinator) Get(ctx context.Context, userID uuid.UUID, id int64) (*TransactionView, error) {
	return c.store.GetTransaction(ctx, userID, id)
}

// List returns transaction views, newest transaction-date first.
func (c *Coordinator) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]TransactionView, error) {
	return c.store.ListTransactions(ctx, userID, filter)
}
