/*
errors.go - Centralized error types for the wallet engine

ERROR CATEGORIES:
  1. Validation errors - rejected before any lock is acquired
  2. Insufficiency errors - detected inside the locked critical section,
     against the freshest balance/points
  3. Not-found errors - unknown user on a mutation path
  4. Contention errors - per-account lock not acquired in time (retryable)
  5. Store errors - persistence failures, surfaced as-is

USAGE:
  Callers classify with errors.Is or the helpers below:

    if wallet.IsRetryable(err) {
        // back off and retry
    }
*/
package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for non-positive amounts, or for point
	// conversions below the policy minimum.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidType is returned when a mutation names a transaction type
	// outside the taxonomy, or a debit type on the credit path.
	ErrInvalidType = errors.New("invalid transaction type")

	// ErrInsufficientBalance is returned when a debit exceeds the balance
	// read inside the critical section.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientPoints is returned when a conversion exceeds the
	// points read inside the critical section.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrAccountNotFound is returned when the referenced user does not
	// exist. The wallet never creates accounts for unknown users.
	ErrAccountNotFound = errors.New("account not found")

	// ErrMissingOrderRef is returned when a purchase carries no related
	// order id, which breaks purchase/refund correlation.
	ErrMissingOrderRef = errors.New("purchase requires a related order id")

	// ErrDuplicateTransaction is returned when an idempotency key has
	// already been committed. Expected behavior for client retries.
	ErrDuplicateTransaction = errors.New("transaction already processed")

	// ErrContention is returned when the per-account lock cannot be
	// acquired within the bounded wait. Retryable with backoff.
	ErrContention = errors.New("account busy, retry later")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the values seen inside the lock
// =============================================================================

// InsufficientBalanceError reports a debit that would overdraw the account.
type InsufficientBalanceError struct {
	UserID    UserID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s",
		e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InsufficientPointsError reports a conversion that exceeds the points held.
type InsufficientPointsError struct {
	UserID    UserID
	Available int64
	Requested int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: available %d, requested %d",
		e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry
// with no caller-side correction.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention)
}

// IsClientError returns true if the error is due to invalid client input
// or account state the client can observe.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrMissingOrderRef) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrDuplicateTransaction)
}

// IsNotFound returns true if the error indicates a missing user.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsDuplicate returns true if the error indicates an already-committed
// idempotency key. Safe for callers to treat as success on retry.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateTransaction)
}
