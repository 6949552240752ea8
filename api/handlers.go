/*
handlers.go - HTTP handlers for the wallet API

PATTERN:
  1. Parse and validate request
  2. Call the wallet engine
  3. Serialize response
  4. Map engine errors to HTTP status

ERROR HANDLING:
  - 400: validation errors (invalid amount/type, missing order ref)
  - 404: unknown user on a mutation path
  - 409: insufficiency and duplicate-idempotency-key conflicts
  - 503: per-account lock contention (Retry-After set; retryable)
  - 500: store failures

The user-facing routes take the account id from the authenticated
channel (see identity.go); the internal routes name the user in the
body and are only reachable by backend subsystems.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/wallet-engine/wallet"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *wallet.Engine
	Log    *logrus.Logger
}

// NewHandler creates a handler around the wallet engine.
func NewHandler(engine *wallet.Engine, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{Engine: engine, Log: log}
}

// =============================================================================
// WALLET ENDPOINTS (authenticated user)
// =============================================================================

// GetBalance returns the caller's balance, points, and currency.
// Always succeeds for an authenticated caller: a wallet with no activity
// reads as zeros.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Engine.GetBalance(r.Context(), userFrom(r))
	if err != nil {
		h.writeEngineError(w, err, "Failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		Balance:  snap.Balance,
		Points:   snap.Points,
		Currency: snap.Currency,
	})
}

// ConvertPoints converts the caller's loyalty points into balance.
func (h *Handler) ConvertPoints(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Engine.ConvertPoints(r.Context(), userFrom(r), req.Points, req.IdempotencyKey)
	if err != nil {
		h.writeEngineError(w, err, "Conversion failed")
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		BalanceAdded:   res.BalanceAdded,
		PointsDeducted: res.PointsDeducted,
		NewBalance:     res.NewBalance,
		NewPoints:      res.NewPoints,
	})
}

// GetTransactions returns a newest-first page of the caller's history.
// An account with no history gets an empty list, not an error.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, total, err := h.Engine.TransactionHistory(r.Context(), userFrom(r), limit, offset)
	if err != nil {
		h.writeEngineError(w, err, "Failed to load transactions")
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = TransactionDTO{
			ID:             string(tx.ID),
			Type:           string(tx.Type),
			Amount:         tx.Amount,
			Currency:       tx.Currency,
			Description:    tx.Description,
			RelatedOrderID: tx.RelatedOrderID,
			CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Transactions: dtos, Total: total})
}

// GetStats returns earned/spent totals and the transaction count.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.WalletStats(r.Context(), userFrom(r))
	if err != nil {
		h.writeEngineError(w, err, "Failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		TotalEarned:       stats.TotalEarned,
		TotalSpent:        stats.TotalSpent,
		TotalTransactions: stats.TotalTransactions,
	})
}

// =============================================================================
// INTERNAL ENDPOINTS (backend subsystems)
// =============================================================================

// InternalCredit credits a user. Callers: reward granting, refund
// issuance, deposit settlement.
func (h *Handler) InternalCredit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	txType, ok := wallet.ParseCreditType(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid credit type", wallet.ErrInvalidType)
		return
	}

	newBalance, err := h.Engine.Credit(r.Context(), wallet.UserID(req.UserID), req.Amount, txType, wallet.TxDetail{
		Description:    req.Description,
		RelatedOrderID: req.RelatedOrderID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeEngineError(w, err, "Credit failed")
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{NewBalance: newBalance})
}

// InternalDebit withdraws from a user. The transaction type is exactly
// what the caller asked for: WITHDRAWAL unless the request explicitly
// names PURCHASE, regardless of any order ref carried for correlation.
func (h *Handler) InternalDebit(w http.ResponseWriter, r *http.Request) {
	var req DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	txType, ok := wallet.ParseDebitType(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid debit type", wallet.ErrInvalidType)
		return
	}

	detail := wallet.TxDetail{
		Description:    req.Description,
		RelatedOrderID: req.RelatedOrderID,
		IdempotencyKey: req.IdempotencyKey,
	}

	var (
		newBalance decimal.Decimal
		err        error
	)
	if txType == wallet.TxPurchase {
		newBalance, err = h.Engine.Purchase(r.Context(), wallet.UserID(req.UserID), req.Amount, detail)
	} else {
		newBalance, err = h.Engine.Debit(r.Context(), wallet.UserID(req.UserID), req.Amount, detail)
	}
	if err != nil {
		h.writeEngineError(w, err, "Debit failed")
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{NewBalance: newBalance})
}

// InternalAwardPoints grants loyalty points to a user.
func (h *Handler) InternalAwardPoints(w http.ResponseWriter, r *http.Request) {
	var req AwardPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	newPoints, err := h.Engine.AwardPoints(r.Context(), wallet.UserID(req.UserID), req.Points, wallet.TxDetail{
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeEngineError(w, err, "Points grant failed")
		return
	}

	writeJSON(w, http.StatusOK, PointsResponse{NewPoints: newPoints})
}

// =============================================================================
// ERROR MAPPING & HELPERS
// =============================================================================

func (h *Handler) writeEngineError(w http.ResponseWriter, err error, message string) {
	switch {
	case wallet.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Account busy, retry with backoff", err)
	case wallet.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Account not found", err)
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrInvalidType),
		errors.Is(err, wallet.ErrMissingOrderRef):
		writeError(w, http.StatusBadRequest, message, err)
	case wallet.IsClientError(err):
		// Insufficiency and duplicate-key conflicts.
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
