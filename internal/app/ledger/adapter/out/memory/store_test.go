package memory

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
	"github.com/fintrackhq/fintrack/internal/app/ledger/usecase"
	"github.com/fintrackhq/fintrack/internal/logger"
	"github.com/fintrackhq/fintrack/pkg/wal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func seed(t *testing.T, store *Store, userID uuid.UUID, name, balance string) *domain.Account {
	t.Helper()
	account := domain.NewAccount(userID, name, "checking", dec(t, balance), "")
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func TestRunAtomicDiscardsStagedWritesOnError(t *testing.T) {
	store, err := NewStore(nil, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)
	userID := uuid.New()
	account := seed(t, store, userID, "Checking", "100.00")

	boom := errors.New("boom")
	err = store.RunAtomic(context.Background(), func(tx usecase.Tx) error {
		accounts, err := tx.AccountsForUpdate(context.Background(), userID, account.ID)
		require.NoError(t, err)
		staged := accounts[account.ID]
		staged.Balance = dec(t, "0.01")
		require.NoError(t, tx.SaveAccount(context.Background(), staged))

		require.NoError(t, tx.CreateTransaction(context.Background(), &domain.Transaction{
			RefID:     uuid.New(),
			UserID:    userID,
			AccountID: account.ID,
			Kind:      domain.KindExpense,
			Amount:    dec(t, "1.00"),
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the aborted unit is visible.
	loaded, err := store.GetAccount(context.Background(), userID, account.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(dec(t, "100.00")))

	views, err := store.ListTransactions(context.Background(), userID, usecase.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRunAtomicReadsItsOwnWrites(t *testing.T) {
	store, err := NewStore(nil, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)
	userID := uuid.New()
	account := seed(t, store, userID, "Checking", "100.00")

	err = store.RunAtomic(context.Background(), func(tx usecase.Tx) error {
		ref := uuid.New()
		tran := &domain.Transaction{
			RefID:     ref,
			UserID:    userID,
			AccountID: account.ID,
			Kind:      domain.KindIncome,
			Amount:    dec(t, "5.00"),
		}
		if err := tx.CreateTransaction(context.Background(), tran); err != nil {
			return err
		}

		found, err := tx.TransactionByRef(context.Background(), userID, ref)
		if err != nil {
			return err
		}
		assert.Equal(t, tran.ID, found.ID)

		refs, err := tx.CountAccountRefs(context.Background(), userID, account.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), refs)
		return nil
	})
	require.NoError(t, err)
}

func TestRunAtomicRespectsCancelledContext(t *testing.T) {
	store, err := NewStore(nil, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.RunAtomic(ctx, func(tx usecase.Tx) error {
		t.Fatal("unit must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJournalRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	userID := uuid.New()

	journal, err := wal.Open(path)
	require.NoError(t, err)
	store, err := NewStore(journal, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)

	account := seed(t, store, userID, "Checking", "100.00")
	err = store.RunAtomic(context.Background(), func(tx usecase.Tx) error {
		accounts, err := tx.AccountsForUpdate(context.Background(), userID, account.ID)
		if err != nil {
			return err
		}
		staged := accounts[account.ID]
		if err := staged.Credit(dec(t, "25.00")); err != nil {
			return err
		}
		if err := tx.SaveAccount(context.Background(), staged); err != nil {
			return err
		}
		return tx.CreateTransaction(context.Background(), &domain.Transaction{
			RefID:           uuid.New(),
			UserID:          userID,
			AccountID:       account.ID,
			Kind:            domain.KindIncome,
			Amount:          dec(t, "25.00"),
			TransactionDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		})
	})
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	// A fresh store replaying the same journal sees the committed state.
	journal, err = wal.Open(path)
	require.NoError(t, err)
	defer journal.Close()
	recovered, err := NewStore(journal, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)

	loaded, err := recovered.GetAccount(context.Background(), userID, account.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(dec(t, "125.00")))

	views, err := recovered.ListTransactions(context.Background(), userID, usecase.ListFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Checking", views[0].AccountName)
}

func TestOwnershipScoping(t *testing.T) {
	store, err := NewStore(nil, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)
	owner := uuid.New()
	intruder := uuid.New()
	account := seed(t, store, owner, "Checking", "100.00")

	_, err = store.GetAccount(context.Background(), intruder, account.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	err = store.RunAtomic(context.Background(), func(tx usecase.Tx) error {
		accounts, err := tx.AccountsForUpdate(context.Background(), intruder, account.ID)
		require.NoError(t, err)
		assert.Empty(t, accounts)
		return nil
	})
	require.NoError(t, err)
}
