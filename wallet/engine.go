/*
engine.go - Balance Mutator and Conversion Engine

PURPOSE:
  The Engine is the only path by which balance and points change. Every
  mutation runs as one atomic unit: acquire the per-account lock, open a
  storage transaction, read the freshest state, validate, write the new
  values, append exactly one log entry, commit. Any failure anywhere in
  the unit leaves balance, points, and log unchanged.

TOCTOU:
  Insufficiency checks happen INSIDE the locked critical section, never
  against a pre-lock read. Two concurrent debits (or conversions) on the
  same account are serialized by the Guard, so the second one re-validates
  against the committed result of the first.

VALIDATION ORDER:
  Cheap input validation (non-positive amount, bad type, below conversion
  minimum) rejects before any lock is acquired. State-dependent checks
  (funds, points, user existence, idempotency) happen under the lock.
*/
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Currency string
	Policy   ConversionPolicy
	LockWait time.Duration
}

// Engine funnels all balance/points mutations through the per-account
// Guard and the store's transactional boundary.
type Engine struct {
	store    TxStore
	guard    *Guard
	policy   ConversionPolicy
	currency string
	log      *logrus.Logger
}

func NewEngine(store TxStore, opts Options, log *logrus.Logger) *Engine {
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Policy.PointsPerUnit <= 0 {
		opts.Policy = DefaultConversionPolicy
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		store:    store,
		guard:    NewGuard(opts.LockWait),
		policy:   opts.Policy,
		currency: opts.Currency,
		log:      log,
	}
}

// Policy returns the active conversion policy.
func (e *Engine) Policy() ConversionPolicy { return e.policy }

// =============================================================================
// READS
// =============================================================================

// GetBalance returns the current balance, points, and currency. A known
// user with no wallet activity gets zeros and the default currency; this
// never creates an account row.
func (e *Engine) GetBalance(ctx context.Context, userID UserID) (BalanceSnapshot, error) {
	acct, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("get balance: %w", err)
	}
	if acct == nil {
		return BalanceSnapshot{Balance: decimal.Zero, Points: 0, Currency: e.currency}, nil
	}
	return BalanceSnapshot{Balance: acct.Balance, Points: acct.Points, Currency: acct.Currency}, nil
}

// =============================================================================
// BALANCE MUTATOR
// =============================================================================

// Credit increases the balance by amount and logs one transaction of the
// given credit type.
func (e *Engine) Credit(ctx context.Context, userID UserID, amount decimal.Decimal, txType TransactionType, d TxDetail) (decimal.Decimal, error) {
	if !txType.IsCredit() {
		return decimal.Zero, fmt.Errorf("%q is not a credit type: %w", txType, ErrInvalidType)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("credit amount must be positive: %w", ErrInvalidAmount)
	}

	var newBalance decimal.Decimal
	err := e.withAccount(ctx, userID, d.IdempotencyKey, func(acct *Account) (Transaction, error) {
		acct.Balance = acct.Balance.Add(amount)
		newBalance = acct.Balance
		return e.newTransaction(acct, txType, amount, d), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	e.log.WithFields(logrus.Fields{
		"user":    userID,
		"type":    txType,
		"amount":  amount.String(),
		"balance": newBalance.String(),
	}).Info("balance credited")
	return newBalance, nil
}

// Debit decreases the balance by amount, rejecting overdrafts, and logs
// one WITHDRAWAL transaction.
func (e *Engine) Debit(ctx context.Context, userID UserID, amount decimal.Decimal, d TxDetail) (decimal.Decimal, error) {
	return e.debit(ctx, userID, amount, TxWithdrawal, d)
}

// Purchase is a debit logged as PURCHASE, correlated to an order.
func (e *Engine) Purchase(ctx context.Context, userID UserID, amount decimal.Decimal, d TxDetail) (decimal.Decimal, error) {
	if d.RelatedOrderID == "" {
		return decimal.Zero, ErrMissingOrderRef
	}
	return e.debit(ctx, userID, amount, TxPurchase, d)
}

func (e *Engine) debit(ctx context.Context, userID UserID, amount decimal.Decimal, txType TransactionType, d TxDetail) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("debit amount must be positive: %w", ErrInvalidAmount)
	}

	var newBalance decimal.Decimal
	err := e.withAccount(ctx, userID, d.IdempotencyKey, func(acct *Account) (Transaction, error) {
		// Freshest balance: the guard serializes us behind any
		// concurrent mutation on this account.
		if acct.Balance.LessThan(amount) {
			return Transaction{}, &InsufficientBalanceError{
				UserID:    userID,
				Available: acct.Balance,
				Requested: amount,
			}
		}
		acct.Balance = acct.Balance.Sub(amount)
		newBalance = acct.Balance
		return e.newTransaction(acct, txType, amount, d), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	e.log.WithFields(logrus.Fields{
		"user":    userID,
		"type":    txType,
		"amount":  amount.String(),
		"balance": newBalance.String(),
	}).Info("balance debited")
	return newBalance, nil
}

// AwardPoints grants loyalty points and logs one POINTS_AWARD
// transaction carrying the points count. The row keeps points grants
// auditable and gives the idempotency key a home, so a redelivered
// grant is rejected instead of double-awarded; it contributes zero to
// balance replay.
func (e *Engine) AwardPoints(ctx context.Context, userID UserID, points int64, d TxDetail) (int64, error) {
	if points <= 0 {
		return 0, fmt.Errorf("points must be positive: %w", ErrInvalidAmount)
	}

	var newPoints int64
	err := e.withAccount(ctx, userID, d.IdempotencyKey, func(acct *Account) (Transaction, error) {
		acct.Points += points
		newPoints = acct.Points
		return e.newTransaction(acct, TxPointsAward, decimal.NewFromInt(points), d), nil
	})
	if err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{
		"user":   userID,
		"points": points,
		"total":  newPoints,
	}).Info("points awarded")
	return newPoints, nil
}

// =============================================================================
// CONVERSION ENGINE
// =============================================================================

// ConvertPoints exchanges points for balance at the policy rate. The
// points decrement, balance increment, and POINTS_CONVERSION log entry
// commit as one atomic unit, so a crash or concurrent conflict can never
// leave points deducted without the balance credited, or vice versa.
func (e *Engine) ConvertPoints(ctx context.Context, userID UserID, points int64, idempotencyKey string) (ConversionResult, error) {
	if points <= 0 {
		return ConversionResult{}, fmt.Errorf("points must be positive: %w", ErrInvalidAmount)
	}
	if points < e.policy.MinPoints {
		return ConversionResult{}, fmt.Errorf("minimum conversion is %d points: %w", e.policy.MinPoints, ErrInvalidAmount)
	}

	var res ConversionResult
	err := e.withAccount(ctx, userID, idempotencyKey, func(acct *Account) (Transaction, error) {
		// Re-checked inside the lock, not just at request entry.
		if acct.Points < points {
			return Transaction{}, &InsufficientPointsError{
				UserID:    userID,
				Available: acct.Points,
				Requested: points,
			}
		}

		added := e.policy.BalanceAdded(points)
		acct.Points -= points
		acct.Balance = acct.Balance.Add(added)
		res = ConversionResult{
			BalanceAdded:   added,
			PointsDeducted: points,
			NewBalance:     acct.Balance,
			NewPoints:      acct.Points,
		}
		return e.newTransaction(acct, TxPointsConversion, added, TxDetail{
			Description:    fmt.Sprintf("Converted %d points", points),
			IdempotencyKey: idempotencyKey,
		}), nil
	})
	if err != nil {
		return ConversionResult{}, err
	}

	e.log.WithFields(logrus.Fields{
		"user":    userID,
		"points":  points,
		"added":   res.BalanceAdded.String(),
		"balance": res.NewBalance.String(),
	}).Info("points converted")
	return res, nil
}

// =============================================================================
// CRITICAL SECTION
// =============================================================================

// withAccount runs fn inside the account's lock and one storage
// transaction. fn receives the freshest account state, mutates it, and
// returns the transaction documenting the change.
func (e *Engine) withAccount(ctx context.Context, userID UserID, idempotencyKey string, fn func(acct *Account) (Transaction, error)) error {
	release, err := e.guard.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	return e.store.WithTx(ctx, func(s Store) error {
		exists, err := s.UserExists(ctx, userID)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return fmt.Errorf("user %q: %w", userID, ErrAccountNotFound)
		}

		if idempotencyKey != "" {
			dup, err := s.HasIdempotencyKey(ctx, idempotencyKey)
			if err != nil {
				return err
			}
			if dup {
				return ErrDuplicateTransaction
			}
		}

		acct, err := s.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if acct == nil {
			// Lazy creation on first mutation for a known user.
			now := time.Now().UTC()
			acct = &Account{
				UserID:    userID,
				Balance:   decimal.Zero,
				Currency:  e.currency,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}

		tx, err := fn(acct)
		if err != nil {
			return err
		}

		acct.UpdatedAt = time.Now().UTC()
		if err := s.SaveAccount(ctx, *acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		return s.Append(ctx, tx)
	})
}

func (e *Engine) newTransaction(acct *Account, txType TransactionType, amount decimal.Decimal, d TxDetail) Transaction {
	return Transaction{
		ID:             NewTransactionID(),
		AccountID:      acct.UserID,
		Type:           txType,
		Amount:         amount,
		Currency:       acct.Currency,
		Description:    d.Description,
		RelatedOrderID: d.RelatedOrderID,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
}
