// Package book holds the resting orders for the instrument: one ordered
// collection per side, iterated in matching priority order.
package book

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"hati/internal/common"
)

// OrderTree keeps one side's resting orders sorted by the side's priority
// comparator, so insert and remove are logarithmic and an in-order scan is
// already the matching order. No re-sort ever happens on a mutation.
type OrderTree = btree.BTreeG[*common.Order]

// byPriceTime builds the priority comparator for a side: price first
// (ascending for asks, descending for bids), arrival sequence as the
// tie-break. No two resting orders on a side share (price, sequence).
func byPriceTime(ascending bool) func(a, b *common.Order) bool {
	return func(a, b *common.Order) bool {
		if cmp := a.Price.Cmp(b.Price); cmp != 0 {
			if ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return a.Sequence < b.Sequence
	}
}

type Book struct {
	bids *OrderTree
	asks *OrderTree

	// byID maps resting order uuids to the order for removal by id.
	byID map[string]*common.Order
}

func New() *Book {
	return &Book{
		// Bids sorted greatest price first, asks least price first.
		bids: btree.NewBTreeG(byPriceTime(false)),
		asks: btree.NewBTreeG(byPriceTime(true)),
		byID: make(map[string]*common.Order),
	}
}

// Insert adds a resting order to its side. The ordering invariant holds as
// soon as Insert returns; there is no other side effect.
func (b *Book) Insert(order *common.Order) error {
	if !order.Side.Valid() {
		return fmt.Errorf("%w: unknown side %d", common.ErrInvalidOrder, order.Side)
	}
	if !order.Price.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", common.ErrInvalidOrder, order.Price)
	}
	if !order.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity %s must be positive", common.ErrInvalidOrder, order.Quantity)
	}
	if _, exists := b.byID[order.UUID]; exists {
		return fmt.Errorf("%w: duplicate uuid %s", common.ErrInvalidOrder, order.UUID)
	}

	b.side(order.Side).Set(order)
	b.byID[order.UUID] = order
	return nil
}

// Remove takes an order off the book by id, but only for its owner. An
// ownership mismatch is reported exactly like absence, so a caller cannot
// probe for other accounts' order ids.
func (b *Book) Remove(orderID, owner string) (*common.Order, error) {
	order, ok := b.byID[orderID]
	if !ok || order.Owner != owner {
		return nil, fmt.Errorf("%w: %s", common.ErrOrderNotFound, orderID)
	}
	b.Delist(order)
	return order, nil
}

// Delist drops a resting order without an ownership check. The engine
// calls it for makers it has fully consumed during a matching pass.
func (b *Book) Delist(order *common.Order) {
	b.side(order.Side).Delete(order)
	delete(b.byID, order.UUID)
}

// Opposite returns the resting orders a taker with the given side would
// consume, as a snapshot slice in matching priority order. The engine
// mutates quantities through the shared pointers and Delists consumed
// makers while it walks the slice; the snapshot keeps that safe.
func (b *Book) Opposite(takerSide common.Side) []*common.Order {
	tree := b.side(takerSide.Opposite())
	orders := make([]*common.Order, 0, tree.Len())
	tree.Scan(func(order *common.Order) bool {
		orders = append(orders, order)
		return true
	})
	return orders
}

// DepthLevel aggregates the resting quantity at one price on one side.
type DepthLevel struct {
	Price    decimal.Decimal
	Side     common.Side
	Quantity decimal.Decimal
}

// Depth sums remaining quantities per distinct price level on both sides,
// keyed by the rendering of the first order seen at that price. Scans are
// price-ordered, so equal prices of different scale (1400.9 vs 1400.90)
// arrive adjacent and merge into one level. Read-only and deterministic.
func (b *Book) Depth() map[string]DepthLevel {
	depth := make(map[string]DepthLevel)
	for _, side := range []common.Side{common.Buy, common.Sell} {
		var current *DepthLevel
		b.side(side).Scan(func(order *common.Order) bool {
			if current == nil || !current.Price.Equal(order.Price) {
				if current != nil {
					depth[current.Price.String()] = *current
				}
				current = &DepthLevel{Price: order.Price, Side: side, Quantity: decimal.Zero}
			}
			current.Quantity = current.Quantity.Add(order.Quantity)
			return true
		})
		if current != nil {
			depth[current.Price.String()] = *current
		}
	}
	return depth
}

// Len reports the number of resting orders across both sides.
func (b *Book) Len() int {
	return b.bids.Len() + b.asks.Len()
}

func (b *Book) side(s common.Side) *OrderTree {
	if s == common.Buy {
		return b.bids
	}
	return b.asks
}
