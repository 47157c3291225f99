package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"hati/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newOrder(id string, side common.Side, price, qty string, seq uint64, owner string) *common.Order {
	return &common.Order{
		UUID:     id,
		Side:     side,
		Price:    d(price),
		Quantity: d(qty),
		Sequence: seq,
		Owner:    owner,
	}
}

func uuids(orders []*common.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.UUID
	}
	return out
}

// --- Tests ------------------------------------------------------------------

func TestInsert_Rejections(t *testing.T) {
	b := New()

	assert.ErrorIs(t, b.Insert(newOrder("o1", common.Side(7), "100", "1", 1, "alice")), common.ErrInvalidOrder)
	assert.ErrorIs(t, b.Insert(newOrder("o2", common.Buy, "0", "1", 2, "alice")), common.ErrInvalidOrder)
	assert.ErrorIs(t, b.Insert(newOrder("o3", common.Buy, "-5", "1", 3, "alice")), common.ErrInvalidOrder)
	assert.ErrorIs(t, b.Insert(newOrder("o4", common.Buy, "100", "0", 4, "alice")), common.ErrInvalidOrder)
	assert.Equal(t, 0, b.Len())

	assert.NoError(t, b.Insert(newOrder("o5", common.Buy, "100", "1", 5, "alice")))
	assert.ErrorIs(t, b.Insert(newOrder("o5", common.Buy, "101", "1", 6, "alice")), common.ErrInvalidOrder)
	assert.Equal(t, 1, b.Len())
}

func TestOpposite_PriceTimeOrdering(t *testing.T) {
	b := New()

	// Bids inserted out of priority order.
	assert.NoError(t, b.Insert(newOrder("b1", common.Buy, "98", "1", 1, "alice")))
	assert.NoError(t, b.Insert(newOrder("b2", common.Buy, "99", "1", 2, "alice")))
	assert.NoError(t, b.Insert(newOrder("b3", common.Buy, "99", "1", 3, "bob")))
	assert.NoError(t, b.Insert(newOrder("b4", common.Buy, "100", "1", 4, "bob")))

	// Asks likewise.
	assert.NoError(t, b.Insert(newOrder("a1", common.Sell, "103", "1", 5, "alice")))
	assert.NoError(t, b.Insert(newOrder("a2", common.Sell, "101", "1", 6, "bob")))
	assert.NoError(t, b.Insert(newOrder("a3", common.Sell, "101", "1", 7, "alice")))

	// A seller consumes bids: best (highest) price first, earliest first on ties.
	assert.Equal(t, []string{"b4", "b2", "b3", "b1"}, uuids(b.Opposite(common.Sell)))
	// A buyer consumes asks: lowest price first, earliest first on ties.
	assert.Equal(t, []string{"a2", "a3", "a1"}, uuids(b.Opposite(common.Buy)))
}

func TestOpposite_StableUnderChurn(t *testing.T) {
	b := New()

	assert.NoError(t, b.Insert(newOrder("a1", common.Sell, "100", "1", 1, "alice")))
	assert.NoError(t, b.Insert(newOrder("a2", common.Sell, "100", "1", 2, "alice")))
	assert.NoError(t, b.Insert(newOrder("a3", common.Sell, "99", "1", 3, "bob")))

	// Removing and re-adding other orders must not disturb priority.
	removed, err := b.Remove("a2", "alice")
	assert.NoError(t, err)
	assert.Equal(t, "a2", removed.UUID)
	assert.NoError(t, b.Insert(newOrder("a4", common.Sell, "100", "1", 4, "alice")))

	assert.Equal(t, []string{"a3", "a1", "a4"}, uuids(b.Opposite(common.Buy)))
}

func TestRemove_Ownership(t *testing.T) {
	b := New()
	assert.NoError(t, b.Insert(newOrder("o1", common.Buy, "100", "1", 1, "alice")))

	// Wrong owner looks exactly like absence.
	_, err := b.Remove("o1", "bob")
	assert.ErrorIs(t, err, common.ErrOrderNotFound)
	assert.Equal(t, 1, b.Len())

	removed, err := b.Remove("o1", "alice")
	assert.NoError(t, err)
	assert.Equal(t, "o1", removed.UUID)

	_, err = b.Remove("o1", "alice")
	assert.ErrorIs(t, err, common.ErrOrderNotFound)

	_, err = b.Remove("missing", "alice")
	assert.ErrorIs(t, err, common.ErrOrderNotFound)
}

func TestDepth_AggregatesPerLevel(t *testing.T) {
	b := New()
	assert.NoError(t, b.Insert(newOrder("b1", common.Buy, "99", "2", 1, "alice")))
	assert.NoError(t, b.Insert(newOrder("b2", common.Buy, "99", "3", 2, "bob")))
	assert.NoError(t, b.Insert(newOrder("a1", common.Sell, "101", "4", 3, "alice")))
	assert.NoError(t, b.Insert(newOrder("a2", common.Sell, "102.5", "1.5", 4, "bob")))

	depth := b.Depth()
	assert.Len(t, depth, 3)

	assert.Equal(t, common.Buy, depth["99"].Side)
	assert.Equal(t, "5", depth["99"].Quantity.String())
	assert.Equal(t, common.Sell, depth["101"].Side)
	assert.Equal(t, "4", depth["101"].Quantity.String())
	assert.Equal(t, common.Sell, depth["102.5"].Side)
	assert.Equal(t, "1.5", depth["102.5"].Quantity.String())
}
