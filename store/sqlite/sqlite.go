/*
Package sqlite provides the SQLite-backed implementation of the wallet
storage interfaces. In production the same patterns apply to PostgreSQL
(the read-check-write-append unit becomes SELECT ... FOR UPDATE); only
SQL dialect differences change.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist against the transactions table.

KEY TABLES:
  users:        registry of known users (mutations on unknown users fail)
  accounts:     per-user balance/points/currency, written only inside WithTx
  transactions: immutable ledger of all balance changes

CONCURRENCY:
  The database is opened in WAL mode with a busy timeout; serialization
  of same-account mutations happens upstream in wallet.Guard. An
  in-memory database is pinned to a single connection, because every
  pooled connection to ":memory:" would otherwise get its own database.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/wallet-engine/wallet"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds. RFC3339Nano
// strips trailing fractional zeros, which breaks lexicographic ordering
// of the TEXT column ("...00.123Z" sorts after "...00.1234Z"); the
// fixed-width form keeps byte order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements wallet.TxStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (append-only ledger). No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		description TEXT,
		related_order_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Hot path: newest-first history pages per account
	CREATE INDEX IF NOT EXISTS idx_transactions_account_created
		ON transactions(account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_idempotency
		ON transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_order
		ON transactions(related_order_id) WHERE related_order_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so every operation works both
// standalone and inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// USER REGISTRY
// =============================================================================

// User is a known user of the surrounding application. The wallet only
// needs existence; everything else lives outside this subsystem.
type User struct {
	ID        wallet.UserID
	Name      string
	CreatedAt time.Time
}

// CreateUser registers a user. Idempotent on id.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		u.ID, u.Name, time.Now().UTC().Format(timeLayout),
	)
	return err
}

func (s *Store) UserExists(ctx context.Context, userID wallet.UserID) (bool, error) {
	return userExists(ctx, s.db, userID)
}

func userExists(ctx context.Context, q querier, userID wallet.UserID) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE id = ?", userID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, userID wallet.UserID) (*wallet.Account, error) {
	return getAccount(ctx, s.db, userID)
}

func getAccount(ctx context.Context, q querier, userID wallet.UserID) (*wallet.Account, error) {
	var (
		acct                 wallet.Account
		balance              string
		createdAt, updatedAt string
	)

	err := q.QueryRowContext(ctx,
		"SELECT user_id, balance, points, currency, created_at, updated_at FROM accounts WHERE user_id = ?",
		userID,
	).Scan(&acct.UserID, &balance, &acct.Points, &acct.Currency, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	acct.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance for account %s: %w", userID, err)
	}
	acct.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	acct.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &acct, nil
}

func (s *Store) SaveAccount(ctx context.Context, acct wallet.Account) error {
	return saveAccount(ctx, s.db, acct)
}

func saveAccount(ctx context.Context, q querier, acct wallet.Account) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance, points, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = excluded.balance,
			points = excluded.points,
			updated_at = excluded.updated_at`,
		acct.UserID,
		acct.Balance.String(),
		acct.Points,
		acct.Currency,
		acct.CreatedAt.UTC().Format(timeLayout),
		acct.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, tx wallet.Transaction) error {
	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, q querier, tx wallet.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, account_id, tx_type, amount, currency, description, related_order_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.AccountID,
		tx.Type,
		tx.Amount.String(),
		tx.Currency,
		tx.Description,
		nullString(tx.RelatedOrderID),
		nullString(tx.IdempotencyKey),
		tx.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		// UNIQUE index on idempotency_key is the last line of defense
		// behind the engine's in-transaction pre-check.
		if isUniqueConstraintError(err) {
			return wallet.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) HasIdempotencyKey(ctx context.Context, key string) (bool, error) {
	return hasIdempotencyKey(ctx, s.db, key)
}

func hasIdempotencyKey(ctx context.Context, q querier, key string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?", key,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Transactions returns a page of the account's log, newest first, plus
// the total count. A missing transactions table reads as empty history:
// absence of data is a normal state for a brand-new deployment, never an
// error on the read path.
func (s *Store) Transactions(ctx context.Context, userID wallet.UserID, limit, offset int) ([]wallet.Transaction, int64, error) {
	return loadTransactions(ctx, s.db, userID, limit, offset)
}

func loadTransactions(ctx context.Context, q querier, userID wallet.UserID, limit, offset int) ([]wallet.Transaction, int64, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE account_id = ?", userID,
	).Scan(&total)
	if err != nil {
		if isMissingTableError(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, tx_type, amount, currency, description, related_order_id, idempotency_key, created_at
		FROM transactions
		WHERE account_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []wallet.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	return txs, total, rows.Err()
}

func scanTransaction(rows *sql.Rows) (wallet.Transaction, error) {
	var (
		tx             wallet.Transaction
		amount         string
		description    sql.NullString
		relatedOrderID sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)

	err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &amount, &tx.Currency,
		&description, &relatedOrderID, &idempotencyKey, &createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return tx, fmt.Errorf("corrupt amount in transaction %s: %w", tx.ID, err)
	}
	tx.Description = description.String
	tx.RelatedOrderID = relatedOrderID.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return tx, nil
}

// Stats aggregates earned/spent totals in Go with decimal arithmetic
// rather than SQL SUM, which would coerce the TEXT amounts to floats.
func (s *Store) Stats(ctx context.Context, userID wallet.UserID) (wallet.Stats, error) {
	return loadStats(ctx, s.db, userID)
}

func loadStats(ctx context.Context, q querier, userID wallet.UserID) (wallet.Stats, error) {
	stats := wallet.Stats{
		TotalEarned: decimal.Zero,
		TotalSpent:  decimal.Zero,
	}

	rows, err := q.QueryContext(ctx,
		"SELECT tx_type, amount FROM transactions WHERE account_id = ?", userID,
	)
	if err != nil {
		if isMissingTableError(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txType wallet.TransactionType
			raw    string
		)
		if err := rows.Scan(&txType, &raw); err != nil {
			return stats, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return stats, fmt.Errorf("corrupt amount in stats for %s: %w", userID, err)
		}

		stats.TotalTransactions++
		switch {
		case txType.IsCredit():
			stats.TotalEarned = stats.TotalEarned.Add(amount)
		case txType.IsDebit():
			stats.TotalSpent = stats.TotalSpent.Add(amount)
		}
	}
	return stats, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (wallet.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(wallet.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) UserExists(ctx context.Context, userID wallet.UserID) (bool, error) {
	return userExists(ctx, ts.tx, userID)
}

func (ts *txStore) GetAccount(ctx context.Context, userID wallet.UserID) (*wallet.Account, error) {
	return getAccount(ctx, ts.tx, userID)
}

func (ts *txStore) SaveAccount(ctx context.Context, acct wallet.Account) error {
	return saveAccount(ctx, ts.tx, acct)
}

func (ts *txStore) Append(ctx context.Context, tx wallet.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) HasIdempotencyKey(ctx context.Context, key string) (bool, error) {
	return hasIdempotencyKey(ctx, ts.tx, key)
}

func (ts *txStore) Transactions(ctx context.Context, userID wallet.UserID, limit, offset int) ([]wallet.Transaction, int64, error) {
	return loadTransactions(ctx, ts.tx, userID, limit, offset)
}

func (ts *txStore) Stats(ctx context.Context, userID wallet.UserID) (wallet.Stats, error) {
	return loadStats(ctx, ts.tx, userID)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isMissingTableError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
