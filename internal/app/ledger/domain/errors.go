package domain

import "errors"

var (
	// ErrAmountMustBePositive rejects zero or negative amounts.
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrAmountPrecision rejects amounts with more than two fractional digits.
	ErrAmountPrecision = errors.New("amount must have at most two fractional digits")

	// ErrInsufficientBalance means the source account cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountNotFound means no account matches (id, owner).
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound means no transaction matches (id, owner).
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDestinationAccountMissing means a transfer request carries no destination.
	ErrDestinationAccountMissing = errors.New("transfer requires a destination account")

	// ErrSameAccountTransfer rejects transfers where source equals destination.
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")

	// ErrInvalidTransactionKind rejects kinds outside income/expense/transfer.
	ErrInvalidTransactionKind = errors.New("invalid transaction kind")

	// ErrDuplicateReference means the idempotency reference already belongs to
	// another transaction.
	ErrDuplicateReference = errors.New("transaction reference already in use")

	// ErrImmutableField rejects updates to amount, kind or account references.
	ErrImmutableField = errors.New("amount, kind and account references are immutable")

	// ErrAccountHasTransactions blocks deleting an account that is still referenced.
	ErrAccountHasTransactions = errors.New("cannot delete account with existing transactions")

	// ErrLedgerInconsistency means stored records contradict each other,
	// e.g. reversing a transfer whose destination account no longer exists.
	ErrLedgerInconsistency = errors.New("ledger state is inconsistent")
)
