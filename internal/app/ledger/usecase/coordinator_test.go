package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrackhq/fintrack/internal/app/ledger/adapter/out/memory"
	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
	"github.com/fintrackhq/fintrack/internal/app/ledger/usecase"
	"github.com/fintrackhq/fintrack/internal/logger"
	"github.com/fintrackhq/fintrack/pkg/backoff"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func assertBalance(t *testing.T, store usecase.Store, userID uuid.UUID, accountID int64, want string) {
	t.Helper()
	account, err := store.GetAccount(context.Background(), userID, accountID)
	require.NoError(t, err)
	assert.Truef(t, account.Balance.Equal(dec(t, want)),
		"account %d balance: want %s, got %s", accountID, want, account.Balance)
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewStore(nil, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)
	return store
}

func seedAccount(t *testing.T, store usecase.Store, userID uuid.UUID, name, balance string) *domain.Account {
	t.Helper()
	svc := usecase.NewAccountService(store, logger.NewWithWriter(io.Discard))
	account, err := svc.Create(context.Background(), userID, usecase.CreateAccountRequest{
		Name:    name,
		Type:    "checking",
		Balance: dec(t, balance),
	})
	require.NoError(t, err)
	return account
}

func newCoordinator(store usecase.Store) *usecase.Coordinator {
	return usecase.NewCoordinator(store, logger.NewWithWriter(io.Discard))
}

func createReq(accountID int64, kind domain.Kind, amount string, t *testing.T) usecase.CreateRequest {
	return usecase.CreateRequest{
		AccountID:       accountID,
		Description:     "test",
		Category:        "Misc",
		Kind:            kind,
		Amount:          dec(t, amount),
		TransactionDate: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateIncome(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "100.00")
	coordinator := newCoordinator(store)

	view, err := coordinator.Create(context.Background(), userID, createReq(account.ID, domain.KindIncome, "49.99", t))
	require.NoError(t, err)

	assert.Equal(t, "Checking", view.AccountName)
	assert.Equal(t, domain.KindIncome, view.Kind)
	assert.NotEqual(t, uuid.Nil, view.RefID)
	assertBalance(t, store, userID, account.ID, "149.99")
}

func TestCreateExpenseInsufficientBalance(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "50.00")
	coordinator := newCoordinator(store)

	_, err := coordinator.Create(context.Background(), userID, createReq(account.ID, domain.KindExpense, "75.00", t))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Balance unchanged, no transaction recorded.
	assertBalance(t, store, userID, account.ID, "50.00")
	views, err := coordinator.List(context.Background(), userID, usecase.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestTransferConservesTotal(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	source := seedAccount(t, store, userID, "Checking", "100.00")
	destination := seedAccount(t, store, userID, "Savings", "40.00")
	coordinator := newCoordinator(store)

	req := createReq(source.ID, domain.KindTransfer, "30.00", t)
	req.ToAccountID = &destination.ID

	view, err := coordinator.Create(context.Background(), userID, req)
	require.NoError(t, err)
	assert.Equal(t, "Checking", view.AccountName)
	assert.Equal(t, "Savings", view.ToAccountName)

	assertBalance(t, store, userID, source.ID, "70.00")
	assertBalance(t, store, userID, destination.ID, "70.00")

	total, err := store.TotalBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec(t, "140.00")))
}

func TestTransferValidation(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "100.00")
	coordinator := newCoordinator(store)

	t.Run("missing destination", func(t *testing.T) {
		req := createReq(account.ID, domain.KindTransfer, "10.00", t)
		_, err := coordinator.Create(context.Background(), userID, req)
		assert.ErrorIs(t, err, domain.ErrDestinationAccountMissing)
	})

	t.Run("same account", func(t *testing.T) {
		req := createReq(account.ID, domain.KindTransfer, "10.00", t)
		req.ToAccountID = &account.ID
		_, err := coordinator.Create(context.Background(), userID, req)
		assert.ErrorIs(t, err, domain.ErrSameAccountTransfer)
	})

	t.Run("unknown destination", func(t *testing.T) {
		missing := int64(9999)
		req := createReq(account.ID, domain.KindTransfer, "10.00", t)
		req.ToAccountID = &missing
		_, err := coordinator.Create(context.Background(), userID, req)
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("invalid kind", func(t *testing.T) {
		req := createReq(account.ID, domain.Kind("loan"), "10.00", t)
		_, err := coordinator.Create(context.Background(), userID, req)
		assert.ErrorIs(t, err, domain.ErrInvalidTransactionKind)
	})

	// No failure above may have touched the balance.
	assertBalance(t, store, userID, account.ID, "100.00")
}

func TestCreateUnknownAccount(t *testing.T) {
	store := newStore(t)
	coordinator := newCoordinator(store)

	_, err := coordinator.Create(context.Background(), uuid.New(), createReq(42, domain.KindIncome, "10.00", t))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestCreateScopedByOwner(t *testing.T) {
	store := newStore(t)
	owner := uuid.New()
	account := seedAccount(t, store, owner, "Checking", "100.00")
	coordinator := newCoordinator(store)

	// Another user cannot post against someone else's account.
	_, err := coordinator.Create(context.Background(), uuid.New(), createReq(account.ID, domain.KindIncome, "10.00", t))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assertBalance(t, store, owner, account.ID, "100.00")
}

func TestCreateThenDeleteIsNoOp(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	source := seedAccount(t, store, userID, "Checking", "100.00")
	destination := seedAccount(t, store, userID, "Savings", "40.00")
	coordinator := newCoordinator(store)

	tests := []struct {
		name string
		req  func() usecase.CreateRequest
	}{
		{name: "income", req: func() usecase.CreateRequest {
			return createReq(source.ID, domain.KindIncome, "12.34", t)
		}},
		{name: "expense", req: func() usecase.CreateRequest {
			return createReq(source.ID, domain.KindExpense, "12.34", t)
		}},
		{name: "transfer", req: func() usecase.CreateRequest {
			req := createReq(source.ID, domain.KindTransfer, "12.34", t)
			req.ToAccountID = &destination.ID
			return req
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := coordinator.Create(context.Background(), userID, tt.req())
			require.NoError(t, err)
			require.NoError(t, coordinator.Delete(context.Background(), userID, view.ID))

			assertBalance(t, store, userID, source.ID, "100.00")
			assertBalance(t, store, userID, destination.ID, "40.00")

			_, err = coordinator.Get(context.Background(), userID, view.ID)
			assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
		})
	}
}

func TestDeleteNotFound(t *testing.T) {
	store := newStore(t)
	coordinator := newCoordinator(store)

	err := coordinator.Delete(context.Background(), uuid.New(), 123)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestDeleteTransferWithVanishedDestination(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	source := seedAccount(t, store, userID, "Checking", "100.00")
	destination := seedAccount(t, store, userID, "Savings", "0.00")
	coordinator := newCoordinator(store)

	req := createReq(source.ID, domain.KindTransfer, "25.00", t)
	req.ToAccountID = &destination.ID
	view, err := coordinator.Create(context.Background(), userID, req)
	require.NoError(t, err)

	// Remove the destination behind the coordinator's back.
	err = store.RunAtomic(context.Background(), func(tx usecase.Tx) error {
		return tx.DeleteAccount(context.Background(), userID, destination.ID)
	})
	require.NoError(t, err)

	err = coordinator.Delete(context.Background(), userID, view.ID)
	assert.ErrorIs(t, err, domain.ErrLedgerInconsistency)

	// Nothing was reversed and the record is still there.
	assertBalance(t, store, userID, source.ID, "75.00")
	_, err = coordinator.Get(context.Background(), userID, view.ID)
	assert.NoError(t, err)
}

func TestUpdatePatchesNonBalanceFields(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "100.00")
	coordinator := newCoordinator(store)

	view, err := coordinator.Create(context.Background(), userID, createReq(account.ID, domain.KindExpense, "10.00", t))
	require.NoError(t, err)

	description := "groceries"
	category := "Food"
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	notes := "weekly shop"

	updated, err := coordinator.Update(context.Background(), userID, view.ID, usecase.UpdateRequest{
		Description:     &description,
		Category:        &category,
		TransactionDate: &date,
		Notes:           &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "groceries", updated.Description)
	assert.Equal(t, "Food", updated.Category)
	assert.True(t, updated.TransactionDate.Equal(date))
	assert.Equal(t, "weekly shop", updated.Notes)
	assert.True(t, updated.Amount.Equal(dec(t, "10.00")))

	// A pure metadata edit never moves balances.
	assertBalance(t, store, userID, account.ID, "90.00")
}

func TestUpdateRejectsImmutableFields(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "100.00")
	coordinator := newCoordinator(store)

	view, err := coordinator.Create(context.Background(), userID, createReq(account.ID, domain.KindExpense, "10.00", t))
	require.NoError(t, err)

	amount := dec(t, "99.99")
	kind := "income"
	otherAccount := int64(2)

	tests := []struct {
		name string
		req  usecase.UpdateRequest
	}{
		{name: "amount", req: usecase.UpdateRequest{Amount: &amount}},
		{name: "kind", req: usecase.UpdateRequest{Kind: &kind}},
		{name: "account", req: usecase.UpdateRequest{AccountID: &otherAccount}},
		{name: "destination", req: usecase.UpdateRequest{ToAccountID: &otherAccount}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coordinator.Update(context.Background(), userID, view.ID, tt.req)
			assert.ErrorIs(t, err, domain.ErrImmutableField)
		})
	}
	assertBalance(t, store, userID, account.ID, "90.00")
}

func TestUpdateNotFound(t *testing.T) {
	store := newStore(t)
	coordinator := newCoordinator(store)

	description := "x"
	_, err := coordinator.Update(context.Background(), uuid.New(), 55, usecase.UpdateRequest{Description: &description})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestConcurrentExpensesNeverLoseAnUpdate(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "100.00")
	coordinator := newCoordinator(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coordinator.Create(context.Background(), userID, createReq(account.ID, domain.KindExpense, "10.00", t))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assertBalance(t, store, userID, account.ID, "80.00")
}

func TestIdempotentReplayByRef(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "100.00")
	coordinator := newCoordinator(store)

	req := createReq(account.ID, domain.KindIncome, "10.00", t)
	req.RefID = uuid.New()

	first, err := coordinator.Create(context.Background(), userID, req)
	require.NoError(t, err)
	second, err := coordinator.Create(context.Background(), userID, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// The balance effect applied exactly once.
	assertBalance(t, store, userID, account.ID, "110.00")
}

func TestReferenceIsUniqueAcrossUsers(t *testing.T) {
	store := newStore(t)
	alice := uuid.New()
	bob := uuid.New()
	aliceAccount := seedAccount(t, store, alice, "Checking", "100.00")
	bobAccount := seedAccount(t, store, bob, "Checking", "100.00")
	coordinator := newCoordinator(store)

	req := createReq(aliceAccount.ID, domain.KindIncome, "10.00", t)
	req.RefID = uuid.New()

	_, err := coordinator.Create(context.Background(), alice, req)
	require.NoError(t, err)

	// Another user reusing the reference must be rejected, not remap it.
	stolen := createReq(bobAccount.ID, domain.KindIncome, "10.00", t)
	stolen.RefID = req.RefID
	_, err = coordinator.Create(context.Background(), bob, stolen)
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	assertBalance(t, store, bob, bobAccount.ID, "100.00")

	// The owner's replay still resolves to the original posting.
	_, err = coordinator.Create(context.Background(), alice, req)
	require.NoError(t, err)
	assertBalance(t, store, alice, aliceAccount.ID, "110.00")
}

func TestListNewestFirstWithFilters(t *testing.T) {
	store := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, store, userID, "Checking", "1000.00")
	coordinator := newCoordinator(store)

	post := func(day int, amount string) {
		req := createReq(account.ID, domain.KindExpense, amount, t)
		req.TransactionDate = time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC)
		_, err := coordinator.Create(context.Background(), userID, req)
		require.NoError(t, err)
	}
	post(5, "1.00")
	post(20, "2.00")
	post(12, "3.00")

	views, err := coordinator.List(context.Background(), userID, usecase.ListFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, 20, views[0].TransactionDate.Day())
	assert.Equal(t, 12, views[1].TransactionDate.Day())
	assert.Equal(t, 5, views[2].TransactionDate.Day())

	from := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	views, err = coordinator.List(context.Background(), userID, usecase.ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 12, views[0].TransactionDate.Day())
}

// flakyStore simulates the SQL adapter's retry behavior: the unit runs to
// completion, its writes are thrown away on a transient commit failure, and
// the whole unit is re-run from scratch.
type flakyStore struct {
	usecase.Store
	failures int
}

var errTransient = errors.New("deadlock detected")

func (f *flakyStore) RunAtomic(ctx context.Context, fn func(tx usecase.Tx) error) error {
	policy := backoff.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	transient := func(err error) bool { return errors.Is(err, errTransient) }
	return backoff.Retry(ctx, policy, transient, func() error {
		return f.Store.RunAtomic(ctx, func(tx usecase.Tx) error {
			if err := fn(tx); err != nil {
				return err
			}
			if f.failures > 0 {
				f.failures--
				return errTransient
			}
			return nil
		})
	})
}

func TestCreateRetriesTransientFailures(t *testing.T) {
	inner := newStore(t)
	userID := uuid.New()
	account := seedAccount(t, inner, userID, "Checking", "100.00")

	store := &flakyStore{Store: inner, failures: 2}
	coordinator := newCoordinator(store)

	view, err := coordinator.Create(context.Background(), userID, createReq(account.ID, domain.KindIncome, "10.00", t))
	require.NoError(t, err)

	// Applied exactly once despite the aborted attempts.
	assertBalance(t, inner, userID, account.ID, "110.00")
	views, err := coordinator.List(context.Background(), userID, usecase.ListFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, view.ID, views[0].ID)
}
