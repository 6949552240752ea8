/*
dto.go - Data Transfer Objects for API requests and responses

Decouples the wallet domain model from the external JSON contract.
Monetary fields use decimal.Decimal, which marshals as a quoted string
so clients never see float rounding.

Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// WALLET (user-facing)
// =============================================================================

// BalanceDTO is the response to the balance view.
type BalanceDTO struct {
	Balance  decimal.Decimal `json:"balance"`
	Points   int64           `json:"points"`
	Currency string          `json:"currency"`
}

// ConvertRequest asks to convert loyalty points into balance.
type ConvertRequest struct {
	Points         int64  `json:"points"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ConvertResponse reports a completed conversion.
type ConvertResponse struct {
	BalanceAdded   decimal.Decimal `json:"balance_added"`
	PointsDeducted int64           `json:"points_deducted"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	NewPoints      int64           `json:"new_points"`
}

// TransactionDTO represents one ledger entry.
type TransactionDTO struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
	RelatedOrderID string          `json:"related_order_id,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// HistoryResponse is one page of transaction history plus the full count.
type HistoryResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int64            `json:"total"`
}

// StatsDTO aggregates the account's ledger.
type StatsDTO struct {
	TotalEarned       decimal.Decimal `json:"total_earned"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
	TotalTransactions int64           `json:"total_transactions"`
}

// =============================================================================
// INTERNAL (backend subsystems)
// =============================================================================

// CreditRequest credits a user's balance with a named credit type.
type CreditRequest struct {
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type"`
	Description    string          `json:"description"`
	RelatedOrderID string          `json:"related_order_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// DebitRequest withdraws from a user's balance. Type defaults to
// WITHDRAWAL; order settlement names PURCHASE explicitly. The order ref
// is pure correlation and never changes the transaction type.
type DebitRequest struct {
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type,omitempty"`
	Description    string          `json:"description"`
	RelatedOrderID string          `json:"related_order_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// AwardPointsRequest grants loyalty points.
type AwardPointsRequest struct {
	UserID         string `json:"user_id"`
	Points         int64  `json:"points"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// MutationResponse is returned by internal credit/debit.
type MutationResponse struct {
	NewBalance decimal.Decimal `json:"new_balance"`
}

// PointsResponse is returned by internal points grants.
type PointsResponse struct {
	NewPoints int64 `json:"new_points"`
}

// ErrorResponse carries an error to the client.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
