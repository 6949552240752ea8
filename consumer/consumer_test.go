package consumer

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// FAKE LEDGER
// =============================================================================

type ledgerCall struct {
	op     string
	userID wallet.UserID
	amount decimal.Decimal
	txType wallet.TransactionType
	points int64
	detail wallet.TxDetail
}

type fakeLedger struct {
	calls []ledgerCall
	err   error
}

func (f *fakeLedger) Credit(_ context.Context, userID wallet.UserID, amount decimal.Decimal, txType wallet.TransactionType, d wallet.TxDetail) (decimal.Decimal, error) {
	f.calls = append(f.calls, ledgerCall{op: "credit", userID: userID, amount: amount, txType: txType, detail: d})
	return amount, f.err
}

func (f *fakeLedger) Purchase(_ context.Context, userID wallet.UserID, amount decimal.Decimal, d wallet.TxDetail) (decimal.Decimal, error) {
	f.calls = append(f.calls, ledgerCall{op: "purchase", userID: userID, amount: amount, detail: d})
	return decimal.Zero, f.err
}

func (f *fakeLedger) AwardPoints(_ context.Context, userID wallet.UserID, points int64, d wallet.TxDetail) (int64, error) {
	f.calls = append(f.calls, ledgerCall{op: "points", userID: userID, points: points, detail: d})
	return points, f.err
}

func newTestConsumer(ledger *fakeLedger) *Consumer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Consumer{ledger: ledger, log: log}
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestDispatch_GameReward_Credits(t *testing.T) {
	// The event id becomes the idempotency key, so a redelivery can be
	// recognized by the engine.

	ledger := &fakeLedger{}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID:     "evt-1",
		UserID:      "u-1",
		Kind:        KindGameReward,
		Amount:      decimal.NewFromInt(25),
		Description: "tournament prize",
	})
	require.NoError(t, err)

	require.Len(t, ledger.calls, 1)
	call := ledger.calls[0]
	assert.Equal(t, "credit", call.op)
	assert.Equal(t, wallet.UserID("u-1"), call.userID)
	assert.Equal(t, wallet.TxGameReward, call.txType)
	assert.Equal(t, "evt-1", call.detail.IdempotencyKey)
}

func TestDispatch_OrderRefund_Credits(t *testing.T) {
	ledger := &fakeLedger{}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID: "evt-2",
		UserID:  "u-1",
		Kind:    KindOrderRefund,
		Amount:  decimal.NewFromInt(10),
		OrderID: "order-7",
	})
	require.NoError(t, err)

	require.Len(t, ledger.calls, 1)
	assert.Equal(t, wallet.TxRefund, ledger.calls[0].txType)
	assert.Equal(t, "order-7", ledger.calls[0].detail.RelatedOrderID)
}

func TestDispatch_OrderPurchase_Debits(t *testing.T) {
	ledger := &fakeLedger{}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID: "evt-3",
		UserID:  "u-1",
		Kind:    KindOrderPurchase,
		Amount:  decimal.NewFromInt(15),
		OrderID: "order-7",
	})
	require.NoError(t, err)

	require.Len(t, ledger.calls, 1)
	assert.Equal(t, "purchase", ledger.calls[0].op)
	assert.Equal(t, "order-7", ledger.calls[0].detail.RelatedOrderID)
}

func TestDispatch_PointsEarned_AwardsPoints(t *testing.T) {
	ledger := &fakeLedger{}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID: "evt-4",
		UserID:  "u-1",
		Kind:    KindPointsEarned,
		Points:  120,
	})
	require.NoError(t, err)

	require.Len(t, ledger.calls, 1)
	assert.Equal(t, "points", ledger.calls[0].op)
	assert.Equal(t, int64(120), ledger.calls[0].points)
	assert.Equal(t, "evt-4", ledger.calls[0].detail.IdempotencyKey,
		"the event id keys the grant so redelivery cannot double-award")
}

func TestDispatch_RedeliveredPointsEvent_TreatedAsSuccess(t *testing.T) {
	ledger := &fakeLedger{err: wallet.ErrDuplicateTransaction}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID: "evt-4",
		UserID:  "u-1",
		Kind:    KindPointsEarned,
		Points:  120,
	})
	assert.NoError(t, err, "duplicate grant acks instead of requeueing")
}

func TestDispatch_UnknownKind_Rejected(t *testing.T) {
	ledger := &fakeLedger{}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID: "evt-5",
		UserID:  "u-1",
		Kind:    "cashback",
	})
	assert.ErrorIs(t, err, wallet.ErrInvalidType)
	assert.Empty(t, ledger.calls, "unknown kinds never reach the ledger")
}

func TestDispatch_MissingUser_Rejected(t *testing.T) {
	ledger := &fakeLedger{}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{EventID: "evt-6", Kind: KindGameReward})
	assert.Error(t, err)
	assert.True(t, wallet.IsClientError(err))
	assert.Empty(t, ledger.calls)
}

func TestDispatch_DuplicateEvent_TreatedAsSuccess(t *testing.T) {
	// GIVEN: The engine reports the idempotency key as already committed
	// WHEN: Dispatching the redelivered event
	// THEN: No error, so the delivery is acked instead of requeued

	ledger := &fakeLedger{err: wallet.ErrDuplicateTransaction}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID: "evt-7",
		UserID:  "u-1",
		Kind:    KindGameReward,
		Amount:  decimal.NewFromInt(5),
	})
	assert.NoError(t, err)
}

func TestDispatch_EngineError_Propagated(t *testing.T) {
	ledger := &fakeLedger{err: wallet.ErrContention}
	c := newTestConsumer(ledger)

	err := c.Dispatch(context.Background(), Event{
		EventID: "evt-8",
		UserID:  "u-1",
		Kind:    KindGameReward,
		Amount:  decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, wallet.ErrContention)
}
