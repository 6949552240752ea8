/*
store.go - Persistence interfaces for accounts and the transaction log

APPEND-ONLY CONTRACT:
  The transaction log has exactly one write operation, Append. No Update,
  no Delete. The account row is the only mutable record; a balance change
  may only be written together with its matching Append inside WithTx.

IDEMPOTENCY:
  Transactions may carry an idempotency key. The store rejects a duplicate
  key with ErrDuplicateTransaction; the unique index is the last line of
  defense behind the engine's in-transaction pre-check.

IMPLEMENTATIONS:
  - store/sqlite: production store; tests use it with ":memory:"
*/
package wallet

import "context"

// Store handles persistence of accounts and transactions.
type Store interface {
	// UserExists reports whether the user is known to the system.
	// Mutations on unknown users must fail with ErrAccountNotFound.
	UserExists(ctx context.Context, userID UserID) (bool, error)

	// GetAccount returns the account row, or nil when the user has no
	// wallet activity yet. Absence is not an error.
	GetAccount(ctx context.Context, userID UserID) (*Account, error)

	// SaveAccount writes balance, points, and currency. Inside WithTx
	// this is atomic with the Append documenting the change.
	SaveAccount(ctx context.Context, acct Account) error

	// Append adds one transaction to the log. Returns
	// ErrDuplicateTransaction if the idempotency key exists.
	// This is the ONLY write operation on the log.
	Append(ctx context.Context, tx Transaction) error

	// HasIdempotencyKey checks whether a key is already committed.
	HasIdempotencyKey(ctx context.Context, key string) (bool, error)

	// Transactions returns a page of the account's log, newest first,
	// plus the total count regardless of the page window. A missing
	// history table yields an empty result, not an error.
	Transactions(ctx context.Context, userID UserID, limit, offset int) ([]Transaction, int64, error)

	// Stats aggregates earned/spent totals and the row count.
	Stats(ctx context.Context, userID UserID) (Stats, error)
}

// TxStore wraps Store with transaction support. Every mutation runs its
// read-validate-write-append sequence inside WithTx so balance, points,
// and log entry commit or roll back together.
type TxStore interface {
	Store

	// WithTx executes fn within one storage transaction.
	// If fn returns an error, everything rolls back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
