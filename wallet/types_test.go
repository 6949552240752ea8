package wallet

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionType_CreditDebitSplit(t *testing.T) {
	// Every type belongs to exactly one side of the ledger.

	for _, txType := range []TransactionType{TxDeposit, TxGameReward, TxRefund, TxPointsConversion} {
		assert.True(t, txType.IsCredit(), "%s", txType)
		assert.False(t, txType.IsDebit(), "%s", txType)
	}
	for _, txType := range []TransactionType{TxWithdrawal, TxPurchase} {
		assert.True(t, txType.IsDebit(), "%s", txType)
		assert.False(t, txType.IsCredit(), "%s", txType)
	}

	// POINTS_AWARD is a valid row on neither side of the balance.
	assert.False(t, TxPointsAward.IsCredit())
	assert.False(t, TxPointsAward.IsDebit())
	assert.True(t, TxPointsAward.Valid())

	assert.False(t, TransactionType("CASHBACK").Valid())
}

func TestParseCreditType(t *testing.T) {
	txType, ok := ParseCreditType("GAME_REWARD")
	assert.True(t, ok)
	assert.Equal(t, TxGameReward, txType)

	_, ok = ParseCreditType("WITHDRAWAL")
	assert.False(t, ok, "debit types never parse as credits")

	_, ok = ParseCreditType("bogus")
	assert.False(t, ok)
}

func TestParseDebitType(t *testing.T) {
	txType, ok := ParseDebitType("")
	assert.True(t, ok)
	assert.Equal(t, TxWithdrawal, txType, "empty defaults to the plain withdrawal")

	txType, ok = ParseDebitType("PURCHASE")
	assert.True(t, ok)
	assert.Equal(t, TxPurchase, txType)

	_, ok = ParseDebitType("DEPOSIT")
	assert.False(t, ok, "credit types never parse as debits")
}

func TestTransaction_Signed(t *testing.T) {
	amount := decimal.RequireFromString("12.5")

	credit := Transaction{Type: TxDeposit, Amount: amount}
	assert.Equal(t, "12.5", credit.Signed().String())

	debit := Transaction{Type: TxPurchase, Amount: amount}
	assert.Equal(t, "-12.5", debit.Signed().String())

	award := Transaction{Type: TxPointsAward, Amount: decimal.RequireFromString("120")}
	assert.True(t, award.Signed().IsZero(), "points rows never move the balance")
}

func TestConversionPolicy_BalanceAdded(t *testing.T) {
	p := DefaultConversionPolicy

	assert.Equal(t, "1", p.BalanceAdded(100).String())
	assert.Equal(t, "2.5", p.BalanceAdded(250).String())
	assert.Equal(t, "0.5", p.BalanceAdded(50).String())
}
