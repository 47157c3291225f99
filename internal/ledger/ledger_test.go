package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hati/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger() *Ledger {
	return New("ETH", "USD", []Seed{
		{Account: "alice", Base: d("10"), Quote: d("50000")},
		{Account: "bob", Base: d("10"), Quote: d("50000")},
	})
}

func balance(t *testing.T, l *Ledger, account, asset string) string {
	t.Helper()
	balances, err := l.Balances(account)
	require.NoError(t, err)
	return balances[asset].String()
}

// --- Tests ------------------------------------------------------------------

func TestCanAfford(t *testing.T) {
	l := newTestLedger()

	// Buy needs price*quantity of the quote asset.
	assert.NoError(t, l.CanAfford("alice", common.Buy, d("1000"), d("50")))
	err := l.CanAfford("alice", common.Buy, d("1000"), d("50.1"))
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "USD")

	// Sell needs quantity of the base asset.
	assert.NoError(t, l.CanAfford("alice", common.Sell, d("1000"), d("10")))
	err = l.CanAfford("alice", common.Sell, d("1000"), d("10.5"))
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "ETH")

	assert.ErrorIs(t, l.CanAfford("carol", common.Buy, d("1"), d("1")), common.ErrAccountNotFound)
}

func TestTransfer_TakerBuy(t *testing.T) {
	l := newTestLedger()

	// bob buys 2 ETH from alice at 1400.9.
	require.NoError(t, l.Transfer("alice", "bob", d("1400.9"), d("2"), common.Buy))

	assert.Equal(t, "8", balance(t, l, "alice", "ETH"))
	assert.Equal(t, "52801.8", balance(t, l, "alice", "USD"))
	assert.Equal(t, "12", balance(t, l, "bob", "ETH"))
	assert.Equal(t, "47198.2", balance(t, l, "bob", "USD"))
}

func TestTransfer_TakerSell(t *testing.T) {
	l := newTestLedger()

	// bob sells 3 ETH to alice at 1500.
	require.NoError(t, l.Transfer("alice", "bob", d("1500"), d("3"), common.Sell))

	assert.Equal(t, "13", balance(t, l, "alice", "ETH"))
	assert.Equal(t, "45500", balance(t, l, "alice", "USD"))
	assert.Equal(t, "7", balance(t, l, "bob", "ETH"))
	assert.Equal(t, "54500", balance(t, l, "bob", "USD"))
}

func TestTransfer_ConservesTotals(t *testing.T) {
	l := newTestLedger()

	require.NoError(t, l.Transfer("alice", "bob", d("1400.9"), d("0.37"), common.Buy))
	require.NoError(t, l.Transfer("bob", "alice", d("1399.05"), d("1.13"), common.Sell))
	require.NoError(t, l.Transfer("alice", "bob", d("1402.2"), d("4.5"), common.Sell))

	assert.Equal(t, "20", l.Total("ETH").String())
	assert.Equal(t, "100000", l.Total("USD").String())
}

func TestTransfer_UnknownAccount(t *testing.T) {
	l := newTestLedger()

	assert.ErrorIs(t, l.Transfer("carol", "bob", d("1"), d("1"), common.Buy), common.ErrAccountNotFound)
	assert.ErrorIs(t, l.Transfer("alice", "carol", d("1"), d("1"), common.Buy), common.ErrAccountNotFound)

	// Failed transfers must not move anything.
	assert.Equal(t, "10", balance(t, l, "alice", "ETH"))
	assert.Equal(t, "50000", balance(t, l, "bob", "USD"))
}

func TestReset_RestoresSeeds(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Transfer("alice", "bob", d("2000"), d("5"), common.Buy))

	l.Reset()

	for _, account := range []string{"alice", "bob"} {
		assert.Equal(t, "10", balance(t, l, account, "ETH"))
		assert.Equal(t, "50000", balance(t, l, account, "USD"))
	}
}

func TestBalances_UnknownAccountAndCopySemantics(t *testing.T) {
	l := newTestLedger()

	_, err := l.Balances("carol")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)

	// Mutating the returned map must not touch ledger state.
	balances, err := l.Balances("alice")
	require.NoError(t, err)
	balances["ETH"] = d("0")
	assert.Equal(t, "10", balance(t, l, "alice", "ETH"))
}
