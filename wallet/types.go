/*
Package wallet implements the dual-currency account ledger: every account
holds a monetary balance and a loyalty-points balance, and all changes to
either are atomic, auditable, and race-free under concurrent access.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: per-user record of balance, points, and currency
  - Transaction: an immutable ledger entry recording one mutation
  - TransactionType: the fixed taxonomy of mutations (credit vs debit side)
  - ConversionPolicy: the points-to-balance exchange policy

DESIGN PRINCIPLES:
  1. Immutability: transactions are never modified after commit
  2. Precision: decimal.Decimal for money, never float64
  3. Replayability: the stored balance always equals the net signed effect
     of all committed transactions for the account (ledger-replay invariant)

SEE ALSO:
  - engine.go: the only paths that mutate balance/points
  - store.go: persistence interfaces
  - errors.go: error taxonomy
*/
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when an account has never been written.
// Kept as an explicit policy constant rather than null-coalescing at
// call sites; overridable via Options.Currency.
const DefaultCurrency = "USD"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string

// NewTransactionID generates a write-time transaction id.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// =============================================================================
// TRANSACTION TYPES - Fixed taxonomy, split into credit and debit sides
// =============================================================================

type TransactionType string

const (
	TxDeposit          TransactionType = "DEPOSIT"
	TxWithdrawal       TransactionType = "WITHDRAWAL"
	TxPointsConversion TransactionType = "POINTS_CONVERSION"
	TxGameReward       TransactionType = "GAME_REWARD"
	TxPurchase         TransactionType = "PURCHASE"
	TxRefund           TransactionType = "REFUND"

	// TxPointsAward documents a loyalty-points grant. Non-monetary: the
	// Amount column carries the points count and never enters balance
	// replay or earned/spent totals.
	TxPointsAward TransactionType = "POINTS_AWARD"
)

// IsCredit reports whether this type increases the balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TxDeposit, TxGameReward, TxRefund, TxPointsConversion:
		return true
	}
	return false
}

// IsDebit reports whether this type decreases the balance.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TxWithdrawal, TxPurchase:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t.IsCredit() || t.IsDebit() || t == TxPointsAward
}

// ParseCreditType returns the credit type named by s.
// Only types accepted by Engine.Credit parse successfully.
func ParseCreditType(s string) (TransactionType, bool) {
	t := TransactionType(s)
	if t.IsCredit() {
		return t, true
	}
	return "", false
}

// ParseDebitType returns the debit type named by s. An empty string
// parses as WITHDRAWAL, the default debit.
func ParseDebitType(s string) (TransactionType, bool) {
	if s == "" {
		return TxWithdrawal, true
	}
	t := TransactionType(s)
	if t.IsDebit() {
		return t, true
	}
	return "", false
}

// =============================================================================
// ACCOUNT - Materialized view over the transaction log
// =============================================================================

// Account is the per-user wallet record. Balance and Points are a cached
// projection of the ledger; they are only ever written together with the
// matching transaction row, inside one storage transaction.
type Account struct {
	UserID    UserID
	Balance   decimal.Decimal
	Points    int64
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BalanceSnapshot is the read-only view returned to callers.
type BalanceSnapshot struct {
	Balance  decimal.Decimal
	Points   int64
	Currency string
}

// =============================================================================
// TRANSACTION - One row per mutation, append-only
// =============================================================================

// Transaction documents exactly one balance mutation. Amount is the
// unsigned magnitude; the sign is derived from Type.
type Transaction struct {
	ID             TransactionID
	AccountID      UserID
	Type           TransactionType
	Amount         decimal.Decimal
	Currency       string
	Description    string
	RelatedOrderID string
	IdempotencyKey string
	CreatedAt      time.Time
}

// Signed returns the balance delta this transaction represents:
// positive for credit types, negative for debit types, zero for
// non-monetary rows such as points awards.
func (tx Transaction) Signed() decimal.Decimal {
	switch {
	case tx.Type.IsDebit():
		return tx.Amount.Neg()
	case tx.Type.IsCredit():
		return tx.Amount
	}
	return decimal.Zero
}

// TxDetail carries the optional metadata of a mutation.
type TxDetail struct {
	Description    string
	RelatedOrderID string
	IdempotencyKey string
}

// =============================================================================
// STATS - Aggregates over the transaction log
// =============================================================================

type Stats struct {
	TotalEarned       decimal.Decimal
	TotalSpent        decimal.Decimal
	TotalTransactions int64
}

// =============================================================================
// CONVERSION POLICY - Points-to-balance exchange
// =============================================================================

// ConversionPolicy fixes the points exchange: PointsPerUnit points buy one
// unit of currency, and conversions below MinPoints are rejected.
type ConversionPolicy struct {
	PointsPerUnit int64
	MinPoints     int64
}

// DefaultConversionPolicy: 100 points = 1 unit, minimum 100 points.
var DefaultConversionPolicy = ConversionPolicy{PointsPerUnit: 100, MinPoints: 100}

// BalanceAdded returns the currency amount that points convert to.
func (p ConversionPolicy) BalanceAdded(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Div(decimal.NewFromInt(p.PointsPerUnit))
}

// ConversionResult reports a completed points conversion.
type ConversionResult struct {
	BalanceAdded   decimal.Decimal
	PointsDeducted int64
	NewBalance     decimal.Decimal
	NewPoints      int64
}
