/*
reader.go - History & Stats Reader

Read-only projections over the transaction log. These never acquire the
per-account lock: they observe some committed serialization of the
mutations, and absence of data is a normal state for a new account, so
read paths degrade to empty results rather than erroring.
*/
package wallet

import (
	"context"
	"fmt"
)

const (
	// DefaultHistoryLimit applies when callers pass limit <= 0.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps a single page.
	MaxHistoryLimit = 100
)

// TransactionHistory returns a page of the account's log, newest first,
// and the total row count regardless of the page window.
func (e *Engine) TransactionHistory(ctx context.Context, userID UserID, limit, offset int) ([]Transaction, int64, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	txs, total, err := e.store.Transactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction history: %w", err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, total, nil
}

// WalletStats aggregates the account's log: totalEarned over credit
// types, totalSpent over debit types, and the row count.
func (e *Engine) WalletStats(ctx context.Context, userID UserID) (Stats, error) {
	stats, err := e.store.Stats(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("wallet stats: %w", err)
	}
	return stats, nil
}
